package middleware

import (
	"net/http"
	"strings"

	"github.com/sde1000/quicktill-sub001/internal/apierror"
	"github.com/sde1000/quicktill-sub001/internal/permission"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	ClaimsKey = "claims"
)

// JWTClaims are the custom claims embedded in every access token. The
// permission list is fixed at login; changed grants apply from the next
// login.
type JWTClaims struct {
	UserID      int64    `json:"user_id"`
	Name        string   `json:"name"`
	Superuser   bool     `json:"superuser"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims

	perms map[string]bool
}

func (c *JWTClaims) IsSuperuser() bool { return c.Superuser }

func (c *JWTClaims) HasPermission(id string) bool {
	if c.perms == nil {
		c.perms = make(map[string]bool, len(c.Permissions))
		for _, p := range c.Permissions {
			c.perms[p] = true
		}
	}
	return c.perms[id]
}

// JWTAuth validates the Bearer token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("authentication required"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("token is invalid or has expired"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequirePermission rejects requests from users who don't hold p.
// Superusers pass every check.
func RequirePermission(p permission.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !permission.Allowed(claims, p) {
			log.Warn().
				Str("request_id", c.GetString(RequestIDKey)).
				Str("permission", p.ID).
				Str("path", c.FullPath()).
				Msg("permission denied")
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New(p.Description+": permission "+p.ID+" required"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}
