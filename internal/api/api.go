// Package api exposes transfer detection over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"transfer-reconciliation-service/internal/reconciler"
	"transfer-reconciliation-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Detector runs one detection request.
type Detector interface {
	Run(ctx context.Context, req *reconciler.Request) (*reconciler.Result, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Api struct {
	detector Detector
	health   Pinger
	logger   logger.Logger
	router   *gin.Engine
}

// NewAPI builds the router. health may be nil, in which case /healthz only
// reports that the process is up.
func NewAPI(detector Detector, health Pinger, log logger.Logger) *Api {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("http_api")

	r := gin.New()
	r.Use(requestLogger(log), gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithField("panic", recovered).WithField("path", c.Request.URL.Path).Error("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}))

	return &Api{
		detector: detector,
		health:   health,
		logger:   log,
		router:   r,
	}
}

func (a *Api) Router() *gin.Engine {
	router := a.router
	router.GET("/healthz", a.Healthz)
	router.POST("/transfers/detect", a.DetectTransfers)
	return router
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logger.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Request served")
	}
}
