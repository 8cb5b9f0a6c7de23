package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/navarrastar/newsletter-signup/pkg/logging"
	"github.com/navarrastar/newsletter-signup/pkg/models"
)

// Recovery turns a panic into the same 500 body the handlers use, carrying
// the panic value as the message.
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("[PANIC] %s %s | %s | %s | %v\n%s",
					c.Request.Method,
					c.Request.URL.Path,
					c.ClientIP(),
					c.GetString(RequestIDKey),
					err,
					debug.Stack(),
				)

				message := fmt.Sprint(err)
				if message == "" {
					message = "Internal error"
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
					OK:      false,
					Message: message,
				})
			}
		}()

		c.Next()
	}
}
