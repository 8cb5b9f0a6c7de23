package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/navarrastar/newsletter-signup/pkg/logging"
	"github.com/navarrastar/newsletter-signup/pkg/middleware"
	"github.com/navarrastar/newsletter-signup/pkg/models"
)

const SubscribePath = "/api/subscribe"

// NewRouter wires middleware and routes onto a fresh gin engine.
func NewRouter(handlers *Handlers, logger *logging.Logger, serviceName string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	// Every method is routed here so the handler can answer 405 itself.
	router.Any(SubscribePath, handlers.HandleSubscribe)
	router.GET("/health", handlers.HealthCheck)

	// Any covers only the standard verbs; the rest land in NoRoute.
	router.NoRoute(func(c *gin.Context) {
		if c.Request.URL.Path == SubscribePath {
			c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Message: MsgMethodNotAllowed})
			return
		}
		c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Not found"})
	})

	return router
}
