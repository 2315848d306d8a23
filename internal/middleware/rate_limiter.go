package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// window counts requests from one client address until end.
type window struct {
	count int
	end   time.Time
}

// limiter is a fixed-window request counter keyed by client IP.
type limiter struct {
	name    string
	limit   int
	period  time.Duration
	message string

	mu      sync.Mutex
	clients map[string]*window
}

var (
	limiters   []*limiter
	limitersMu sync.Mutex
)

func newLimiter(name string, limit int, period time.Duration, message string) *limiter {
	l := &limiter{name: name, limit: limit, period: period, message: message, clients: make(map[string]*window)}
	limitersMu.Lock()
	limiters = append(limiters, l)
	limitersMu.Unlock()
	return l
}

// allow records one request from ip and reports whether it is within the
// limit, with the end of the current window.
func (l *limiter) allow(ip string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.clients[ip]
	if !ok || now.After(w.end) {
		w = &window{end: now.Add(l.period)}
		l.clients[ip] = w
	}
	w.count++
	return w.count <= l.limit, w.end
}

func (l *limiter) purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, w := range l.clients {
		if now.After(w.end) {
			delete(l.clients, ip)
			n++
		}
	}
	return n
}

func (l *limiter) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, end := l.allow(c.ClientIP(), time.Now())
		if !ok {
			c.Header("Retry-After", end.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(l.message))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter allows 20 login attempts per minute per IP. Token
// logins share the budget with password logins.
func LoginRateLimiter() gin.HandlerFunc {
	return newLimiter("login", 20, time.Minute, "too many login attempts; try again in a minute").handler()
}

// PasswordLoginRateLimiter allows 5 password logins per minute per IP on
// top of LoginRateLimiter. A password-only login may compare the password
// against every user that has one.
func PasswordLoginRateLimiter() gin.HandlerFunc {
	return newLimiter("password_login", 5, time.Minute, "too many password attempts; try again in a minute").handler()
}

// RateLimiter caps every client at limit requests per period.
func RateLimiter(limit int, period time.Duration) gin.HandlerFunc {
	return newLimiter("api", limit, period, "too many requests; try again shortly").handler()
}

const purgeInterval = 5 * time.Minute

func init() {
	go purgeExpiredEntries()
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for now := range ticker.C {
		limitersMu.Lock()
		ls := append([]*limiter(nil), limiters...)
		limitersMu.Unlock()
		for _, l := range ls {
			if n := l.purge(now); n > 0 {
				log.Debug().Str("limiter", l.name).Int("purged", n).Msg("rate limiter entries purged")
			}
		}
	}
}
