package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"purchasing/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status.
// It also places log on the request context so domain code logs through it.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		entry := log.WithContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			entry.Warnw("http request", fields...)
			return
		}
		entry.Infow("http request", fields...)
	}
}
