package reconciler

import (
	"context"

	"transfer-reconciliation-service/internal/models"
	apperrors "transfer-reconciliation-service/pkg/errors"
	"transfer-reconciliation-service/pkg/logger"
)

// updateBatch records the run counters on the parent batch. Failures are
// logged and never fail the run.
func (e *Engine) updateBatch(ctx context.Context, r *run) {
	if r.req.BatchID == nil || r.req.DryRun {
		return
	}

	counters := models.BatchCounters{
		TransfersDetected:    r.summary.Candidates,
		TransfersAutoLinked:  r.summary.AutoLinked,
		TransfersPendingHITL: r.summary.PendingHITL,
	}

	if err := e.deps.Batches.UpdateBatchCounters(ctx, *r.req.BatchID, counters); err != nil {
		r.op.Warning(apperrors.PersistenceError(apperrors.CodeBatchUpdateFailed, "batch_progress", err),
			"Batch counters not updated")
		return
	}
	r.op.Step("batch", logger.Fields{"batch_id": *r.req.BatchID})
}
