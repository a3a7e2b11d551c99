package matcher

import (
	"transfer-reconciliation-service/internal/models"
	"transfer-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// PendingSlot names which side of a pending transfer a transaction fills.
type PendingSlot string

const (
	SlotFrom PendingSlot = "from"
	SlotTo   PendingSlot = "to"
)

// PendingOutcome records one transaction being assigned to a pending transfer.
type PendingOutcome struct {
	// Transfer is the transfer state after the assignment
	Transfer *models.PendingTransfer

	// Transaction is the transaction that filled Slot
	Transaction *models.Transaction
	Slot        PendingSlot

	// PeerID is the transaction in the other slot when the transfer completed
	PeerID string
}

// Completed reports whether the assignment filled the second slot.
func (o *PendingOutcome) Completed() bool {
	return o.Transfer.Status == models.PendingStatusMatched
}

// PendingMatchResult is the outcome of matching transactions to pending transfers.
type PendingMatchResult struct {
	Outcomes []*PendingOutcome
	Matched  int
	Partial  int

	// Consumed holds the ids of transactions that filled a slot
	Consumed map[string]bool

	// Reserved holds the ids already sitting in a slot of one of the
	// transfers before this pass. They never fill another slot.
	Reserved map[string]bool
}

// PendingMatcher assigns transactions to operator-declared pending transfers.
// It never mutates its inputs.
type PendingMatcher struct {
	defaultDays   int
	defaultAmount decimal.Decimal
	logger        logger.Logger
}

// NewPendingMatcher creates a matcher using the config's fallback tolerances.
func NewPendingMatcher(config *TransferConfig, log logger.Logger) *PendingMatcher {
	if config == nil {
		config = DefaultTransferConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &PendingMatcher{
		defaultDays:   config.PendingToleranceDays,
		defaultAmount: config.PendingToleranceAmount,
		logger:        log.WithComponent("pending_matcher"),
	}
}

// Match walks txs in load order. Each unlinked transaction fills the first
// open transfer on its account that accepts it.
func (pm *PendingMatcher) Match(txs []*models.Transaction, transfers []*models.PendingTransfer) *PendingMatchResult {
	result := &PendingMatchResult{
		Consumed: make(map[string]bool),
		Reserved: make(map[string]bool),
	}
	if len(transfers) == 0 {
		return result
	}

	byAccount := make(map[string][]*models.PendingTransfer)
	for _, t := range transfers {
		if t.FromTransactionID != nil {
			result.Reserved[*t.FromTransactionID] = true
		}
		if t.ToTransactionID != nil {
			result.Reserved[*t.ToTransactionID] = true
		}

		working := t.Clone()
		byAccount[working.FromAccountID] = append(byAccount[working.FromAccountID], working)
		if working.ToAccountID != working.FromAccountID {
			byAccount[working.ToAccountID] = append(byAccount[working.ToAccountID], working)
		}
	}

	for _, tx := range txs {
		if tx.IsLinked() || result.Consumed[tx.ID] || result.Reserved[tx.ID] {
			continue
		}

		for _, transfer := range byAccount[tx.BankAccountID] {
			slot, ok := pm.accepts(transfer, tx)
			if !ok {
				continue
			}

			outcome := pm.assign(transfer, tx, slot)
			result.Outcomes = append(result.Outcomes, outcome)
			result.Consumed[tx.ID] = true

			if outcome.Completed() {
				result.Matched++
			} else {
				result.Partial++
			}

			pm.logger.WithFields(logger.Fields{
				"pending_transfer_id": transfer.ID,
				"transaction_id":      tx.ID,
				"slot":                slot,
				"status":              transfer.Status,
			}).Debug("Transaction matched to pending transfer")
			break
		}
	}

	return result
}

// accepts checks the date window, amount tolerance, direction and slot.
func (pm *PendingMatcher) accepts(transfer *models.PendingTransfer, tx *models.Transaction) (PendingSlot, bool) {
	if !transfer.IsOpen() {
		return "", false
	}

	days := models.DaysBetween(tx.TransactionDate, transfer.TransferDate)
	if days > transfer.EffectiveToleranceDays(pm.defaultDays) {
		return "", false
	}

	tolerance := transfer.EffectiveToleranceAmount(pm.defaultAmount)
	if !models.CompareAmountsWithTolerance(transfer.Amount.Abs(), tx.AbsAmount(), tolerance) {
		return "", false
	}

	switch {
	case tx.IsDebit() && transfer.FromAccountID == tx.BankAccountID && transfer.FromTransactionID == nil:
		return SlotFrom, true
	case tx.IsCredit() && transfer.ToAccountID == tx.BankAccountID && transfer.ToTransactionID == nil:
		return SlotTo, true
	default:
		return "", false
	}
}

func (pm *PendingMatcher) assign(transfer *models.PendingTransfer, tx *models.Transaction, slot PendingSlot) *PendingOutcome {
	id := tx.ID
	if slot == SlotFrom {
		transfer.FromTransactionID = &id
	} else {
		transfer.ToTransactionID = &id
	}

	outcome := &PendingOutcome{Transaction: tx, Slot: slot}

	if transfer.FromTransactionID != nil && transfer.ToTransactionID != nil {
		transfer.Status = models.PendingStatusMatched
		if slot == SlotFrom {
			outcome.PeerID = *transfer.ToTransactionID
		} else {
			outcome.PeerID = *transfer.FromTransactionID
		}
	} else {
		transfer.Status = models.PendingStatusPartial
	}

	outcome.Transfer = transfer.Clone()
	return outcome
}
