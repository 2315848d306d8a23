package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/infra"
	"github.com/sde1000/quicktill-sub001/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity and reports the accounts breaker and
// the takings jobs given up on. Neither makes the till unhealthy.
func Health(db *gorm.DB, rdb *redis.Client, accountsCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb == nil {
			redisStatus = "disabled"
		} else if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
		}
		if accountsCB != nil {
			body["accounts"] = accountsCB.State().String()
		}
		if redisStatus == "connected" {
			if counts, err := worker.NewFailedJobs(rdb).Counts(ctx); err == nil {
				body["failed_jobs"] = counts
			}
		}
		c.JSON(status, body)
	}
}
