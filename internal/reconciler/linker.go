package reconciler

import (
	"context"

	"transfer-reconciliation-service/internal/matcher"
	"transfer-reconciliation-service/internal/models"
	apperrors "transfer-reconciliation-service/pkg/errors"
	"transfer-reconciliation-service/pkg/logger"
)

// decide writes the selected links and queues everything else for review.
//
// A selected candidate whose link write fails is demoted to review with the
// failure recorded on it. Unselected candidates are queued even when one of
// their legs was just linked, so a reviewer can still correct a wrong link.
// Review items are queued in discovery order.
func (e *Engine) decide(ctx context.Context, r *run, pairing *matcher.PairingResult) (autoLinked, hitl []*models.TransferCandidate, err error) {
	autoLinked = make([]*models.TransferCandidate, 0, len(pairing.Selected))
	hitl = make([]*models.TransferCandidate, 0)

	demoted := make(map[*models.TransferCandidate]bool)
	selected := make(map[*models.TransferCandidate]bool, len(pairing.Selected))

	for _, c := range pairing.Selected {
		selected[c] = true

		if !r.req.DryRun {
			if err := e.deps.Links.LinkTransfer(ctx, c.FromTransactionID, c.ToTransactionID, r.categoryID); err != nil {
				linkErr := apperrors.PersistenceError(apperrors.CodeLinkPersistFailed, "auto_link", err)
				e.logger.WithError(linkErr).WithFields(logger.Fields{
					"from_transaction_id": c.FromTransactionID,
					"to_transaction_id":   c.ToTransactionID,
					"confidence_score":    c.ConfidenceScore,
				}).Warn("Auto-link failed; candidate queued for review")

				c.LinkError = linkErr.Message
				demoted[c] = true
				continue
			}
		}

		autoLinked = append(autoLinked, c)
	}

	for _, c := range pairing.Candidates {
		if selected[c] && !demoted[c] {
			continue
		}
		hitl = append(hitl, c)
	}

	if !r.req.DryRun && len(hitl) > 0 {
		inserted, err := e.deps.Candidates.UpsertCandidates(ctx, hitl, r.req.BatchID)
		if err != nil {
			return nil, nil, apperrors.PersistenceError(apperrors.CodeCandidatePersistFailed, "review_queue", err).
				WithSuggestion("retry the run; queued candidates are deduplicated")
		}
		r.op.Step("review_queue", logger.Fields{"submitted": len(hitl), "inserted": inserted})
	}

	r.op.Step("link_decision", logger.Fields{
		"auto_linked":  len(autoLinked),
		"demoted":      len(demoted),
		"pending_hitl": len(hitl),
	})

	return autoLinked, hitl, nil
}
