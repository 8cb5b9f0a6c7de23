package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navarrastar/newsletter-signup/pkg/logging"
)

// Logger writes one line per request.
func Logger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("[HTTP] %d | %15s | %-7s | %s | %s | %s",
			c.Writer.Status(),
			c.ClientIP(),
			c.Request.Method,
			c.Request.URL.Path,
			time.Since(start),
			c.GetString(RequestIDKey),
		)
	}
}
