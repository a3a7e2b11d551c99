package api

import (
	"context"
	"net/http"
	"time"

	"transfer-reconciliation-service/internal/reconciler"
	apperrors "transfer-reconciliation-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// DetectTransfers runs one detection pass and returns its summary and
// decided candidates.
func (a *Api) DetectTransfers(c *gin.Context) {
	var req reconciler.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed request body: " + err.Error()})
		return
	}

	result, err := a.detector.Run(c.Request.Context(), &req)
	if err != nil {
		status := apperrors.StatusFor(err)
		if status >= http.StatusInternalServerError {
			a.logger.WithError(err).Error("Transfer detection failed")
		}
		c.JSON(status, gin.H{"success": false, "error": apperrors.PublicMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"dry_run":      result.DryRun,
		"summary":      result.Summary,
		"auto_linked":  result.AutoLinked,
		"pending_hitl": result.PendingHITL,
	})
}

func (a *Api) Healthz(c *gin.Context) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := a.health.Ping(ctx); err != nil {
			a.logger.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
