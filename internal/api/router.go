package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nferrante/accesshub/internal/handlers"
	"github.com/nferrante/accesshub/pkg/logger"
)

// Options tunes the assembled router.
type Options struct {
	MetricsEnabled  bool
	MetricsEndpoint string
}

// NewRouter assembles the gin engine with all HTTP routes.
func NewRouter(
	invitations *handlers.InvitationHandler,
	notifications *handlers.NotificationHandler,
	opts Options,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.MetricsEnabled {
		endpoint := opts.MetricsEndpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		engine.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	apiGroup := engine.Group("/api")

	if invitations != nil {
		accounts := apiGroup.Group("/accounts/:accountID")
		accounts.POST("/invitations", invitations.Create)
		accounts.GET("/invitations", invitations.List)
		accounts.POST("/invitations/:invitationID/revoke", invitations.Revoke)

		apiGroup.GET("/invitations/:invitationID", invitations.Get)
		apiGroup.POST("/invitations/:invitationID/accept", invitations.Accept)
		apiGroup.POST("/invitations/:invitationID/decline", invitations.Decline)
	}

	if notifications != nil {
		apiGroup.GET("/notifications", notifications.List)
		apiGroup.POST("/notifications/:notificationID/read", notifications.MarkRead)
	}

	return engine
}

func requestLogger() gin.HandlerFunc {
	log := logger.WithModule("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
