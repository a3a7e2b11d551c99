package matcher

import (
	"sort"
	"time"

	"transfer-reconciliation-service/internal/models"
)

// CreditIndex buckets credits by calendar day so a debit only scans the
// credits inside its date window. Window results keep load order.
type CreditIndex struct {
	// DateIndex maps date strings (YYYY-MM-DD) to load positions
	DateIndex map[string][]int

	// AllCredits holds the indexed credits in load order
	AllCredits []*models.Transaction
}

// NewCreditIndex creates a new index from credits in load order
func NewCreditIndex(credits []*models.Transaction) *CreditIndex {
	index := &CreditIndex{
		DateIndex:  make(map[string][]int),
		AllCredits: credits,
	}

	for pos, tx := range credits {
		key := dateKey(tx.TransactionDate)
		index.DateIndex[key] = append(index.DateIndex[key], pos)
	}

	return index
}

func dateKey(t time.Time) string {
	return models.DateOnly(t).Format(models.DateLayout)
}

// Window returns the credits within toleranceDays of the debit's date that
// belong to a different bank account, in load order.
func (ci *CreditIndex) Window(debit *models.Transaction, toleranceDays int) []*models.Transaction {
	day := models.DateOnly(debit.TransactionDate)

	var positions []int
	for offset := -toleranceDays; offset <= toleranceDays; offset++ {
		positions = append(positions, ci.DateIndex[dateKey(day.AddDate(0, 0, offset))]...)
	}
	sort.Ints(positions)

	result := make([]*models.Transaction, 0, len(positions))
	for _, pos := range positions {
		credit := ci.AllCredits[pos]
		if credit.BankAccountID == debit.BankAccountID {
			continue
		}
		result = append(result, credit)
	}
	return result
}

// Len returns the number of indexed credits
func (ci *CreditIndex) Len() int {
	return len(ci.AllCredits)
}

// GetIndexStats returns statistics about the index
func (ci *CreditIndex) GetIndexStats() IndexStats {
	return IndexStats{
		TotalCredits: len(ci.AllCredits),
		UniqueDates:  len(ci.DateIndex),
	}
}

// IndexStats provides statistics about index usage
type IndexStats struct {
	TotalCredits int
	UniqueDates  int
}
