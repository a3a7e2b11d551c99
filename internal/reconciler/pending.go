package reconciler

import (
	"context"

	"transfer-reconciliation-service/internal/matcher"
	"transfer-reconciliation-service/internal/models"
	"transfer-reconciliation-service/internal/store"
	apperrors "transfer-reconciliation-service/pkg/errors"
	"transfer-reconciliation-service/pkg/logger"
)

// matchPending assigns unlinked transactions to open pending transfers and
// persists the assignments. It returns the ids that must not be paired.
//
// Transactions already holding a slot of a loaded transfer are never paired,
// and neither is the peer of a transfer completed here. An assignment whose
// write fails is dropped from the counters and its transaction goes back into
// the pairing pool. Later assignments to the same transfer are dropped too,
// since their state builds on the failed one.
func (e *Engine) matchPending(ctx context.Context, r *run, txs []*models.Transaction) (map[string]bool, error) {
	consumed := make(map[string]bool)
	if len(txs) == 0 {
		return consumed, nil
	}

	transfers, err := e.deps.Pending.OpenPendingTransfers(ctx, accountIDs(txs))
	if err != nil {
		return nil, apperrors.LoadFailure("pending transfers", err)
	}
	if len(transfers) == 0 {
		return consumed, nil
	}

	result := matcher.NewPendingMatcher(r.config, e.logger).Match(txs, transfers)
	for id := range result.Reserved {
		consumed[id] = true
	}

	failed := make(map[string]bool)
	for _, outcome := range result.Outcomes {
		transferID := outcome.Transfer.ID

		if failed[transferID] {
			continue
		}

		if !r.req.DryRun {
			err := e.deps.Pending.ApplyPendingUpdate(ctx, store.PendingUpdate{
				Transfer:      outcome.Transfer,
				TransactionID: outcome.Transaction.ID,
				PeerID:        outcome.PeerID,
				CategoryID:    r.categoryID,
			})
			if err != nil {
				failed[transferID] = true
				persistErr := apperrors.PersistenceError(apperrors.CodePendingPersistFailed, "pending_match", err)
				e.logger.WithError(persistErr).WithFields(logger.Fields{
					"pending_transfer_id": transferID,
					"transaction_id":      outcome.Transaction.ID,
				}).Warn("Pending transfer update failed; transaction returns to pairing")
				continue
			}
		}

		consumed[outcome.Transaction.ID] = true
		if outcome.PeerID != "" {
			consumed[outcome.PeerID] = true
		}
		if outcome.Completed() {
			r.summary.PendingTransfersMatched++
		} else {
			r.summary.PendingTransfersPartial++
		}
	}

	r.op.Step("pending_transfers", logger.Fields{
		"open":     len(transfers),
		"reserved": len(result.Reserved),
		"matched":  r.summary.PendingTransfersMatched,
		"partial":  r.summary.PendingTransfersPartial,
		"failed":   len(failed),
	})

	return consumed, nil
}
