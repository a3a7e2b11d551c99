package store

import (
	"context"
	"encoding/json"

	"transfer-reconciliation-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// UpsertCandidates queues candidates for human review. Pairs that are already
// queued are left untouched. It returns the number of new rows.
func (d *Datasource) UpsertCandidates(ctx context.Context, candidates []*models.TransferCandidate, batchID *string) (int, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Queueing transfer candidates")
	defer span.End()

	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	inserted := 0
	for _, c := range candidates {
		factors, err := json.Marshal(c.Factors)
		if err != nil {
			rollback(tx)
			return 0, err
		}

		var rate decimal.NullDecimal
		if c.ExchangeRate != nil {
			rate = decimal.NewNullDecimal(*c.ExchangeRate)
		}
		var linkError *string
		if c.LinkError != "" {
			linkError = &c.LinkError
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO transfer_candidates (
				id, from_transaction_id, to_transaction_id, confidence_score, confidence_factors,
				exchange_rate, exchange_rate_source, is_cross_company, link_error, status, batch_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (from_transaction_id, to_transaction_id) DO NOTHING`,
			uuid.NewString(), c.FromTransactionID, c.ToTransactionID, c.ConfidenceScore, string(factors),
			rate, c.ExchangeRateSource, c.IsCrossCompany, linkError, string(models.CandidateStatusPending), batchID,
		)
		if err != nil {
			rollback(tx)
			span.RecordError(err)
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(
		attribute.Int("candidates.submitted", len(candidates)),
		attribute.Int("candidates.inserted", inserted),
	)
	return inserted, nil
}
