package store

import (
	"context"

	"transfer-reconciliation-service/internal/models"

	"go.opentelemetry.io/otel"
)

// UpdateBatchCounters writes the transfer counters onto a reanalysis batch.
func (d *Datasource) UpdateBatchCounters(ctx context.Context, batchID string, counters models.BatchCounters) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Updating batch counters")
	defer span.End()

	res, err := d.Conn.ExecContext(ctx, `
		UPDATE reanalyze_batches
		SET transfers_detected = $2, transfers_auto_linked = $3, transfers_pending_hitl = $4, updated_at = now()
		WHERE id = $1`,
		batchID, counters.TransfersDetected, counters.TransfersAutoLinked, counters.TransfersPendingHITL,
	)
	if err != nil {
		span.RecordError(err)
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBatchNotFound
	}
	return nil
}
