package matcher

import (
	"testing"
	"time"

	"transfer-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

type txOption func(*models.Transaction)

func withCompany(id string) txOption {
	return func(tx *models.Transaction) { tx.CompanyID = &id }
}

func withCurrency(cur string) txOption {
	return func(tx *models.Transaction) { tx.Currency = cur }
}

func withDescription(desc string) txOption {
	return func(tx *models.Transaction) { tx.Description = desc }
}

func withLinkedTo(id string) txOption {
	return func(tx *models.Transaction) { tx.LinkedTo = &id }
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

// newTx builds a CAD transaction owned by company-x unless options say otherwise.
func newTx(t *testing.T, id string, dir models.Direction, account, amount, date string, opts ...txOption) *models.Transaction {
	t.Helper()
	value := decimal.RequireFromString(amount)
	signed := value
	if dir == models.DirectionDebit {
		signed = value.Neg()
	}

	company := "company-x"
	tx := &models.Transaction{
		ID:              id,
		Amount:          signed,
		TotalAmount:     value,
		Direction:       dir,
		TransactionDate: mustDate(t, date),
		BankAccountID:   account,
		CompanyID:       &company,
		Currency:        "CAD",
	}
	for _, opt := range opts {
		opt(tx)
	}
	return tx
}

func newTestGenerator(t *testing.T, mutate func(*TransferConfig)) *Generator {
	t.Helper()
	config := DefaultTransferConfig()
	if mutate != nil {
		mutate(config)
	}
	g, err := NewGenerator(config, nil)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	return g
}
