package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	base := Transaction{
		ID:              "tx-1",
		Direction:       DirectionDebit,
		BankAccountID:   "acct-a",
		TransactionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr bool
	}{
		{"valid", func(tx *Transaction) {}, false},
		{"empty id", func(tx *Transaction) { tx.ID = " " }, true},
		{"no direction", func(tx *Transaction) { tx.Direction = "" }, true},
		{"no account", func(tx *Transaction) { tx.BankAccountID = "" }, true},
		{"no date", func(tx *Transaction) { tx.TransactionDate = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base
			tt.mutate(&tx)
			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAbsAmountPrefersTotal(t *testing.T) {
	tx := &Transaction{Amount: decimal.NewFromFloat(-120.5)}
	if !tx.AbsAmount().Equal(decimal.NewFromFloat(120.5)) {
		t.Errorf("expected 120.5 from signed amount, got %s", tx.AbsAmount())
	}

	tx.TotalAmount = decimal.NewFromFloat(121)
	if !tx.AbsAmount().Equal(decimal.NewFromFloat(121)) {
		t.Errorf("expected total amount to win, got %s", tx.AbsAmount())
	}
}

func TestSameCompany(t *testing.T) {
	x, y := "company-x", "company-y"
	tests := []struct {
		name string
		a, b *string
		want bool
	}{
		{"same", &x, &x, true},
		{"different", &x, &y, false},
		{"left missing", nil, &x, false},
		{"both missing", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Transaction{CompanyID: tt.a}
			b := &Transaction{CompanyID: tt.b}
			if got := a.SameCompany(b); got != tt.want {
				t.Errorf("SameCompany() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewTransferCandidateCrossCompany(t *testing.T) {
	x, y := "company-x", "company-y"
	debit := &Transaction{ID: "d", BankAccountID: "a", CompanyID: &x, TransactionDate: time.Now()}
	credit := &Transaction{ID: "c", BankAccountID: "b", CompanyID: &y, TransactionDate: time.Now()}

	c := NewTransferCandidate(debit, credit)
	if !c.IsCrossCompany {
		t.Error("expected different companies to be cross-company")
	}
	if c.Key() != "d:c" {
		t.Errorf("unexpected key %s", c.Key())
	}

	credit.CompanyID = &x
	if NewTransferCandidate(debit, credit).IsCrossCompany {
		t.Error("same company must not be cross-company")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 3, 4, 0, 1, 0, 0, time.UTC)

	if got := DaysBetween(a, b); got != 3 {
		t.Errorf("expected 3 calendar days, got %d", got)
	}
	if got := DaysBetween(b, a); got != 3 {
		t.Errorf("expected symmetric result, got %d", got)
	}
	if got := DaysBetween(a, a); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestPendingTransferTolerances(t *testing.T) {
	p := &PendingTransfer{}
	if p.EffectiveToleranceDays(5) != 5 {
		t.Error("expected default tolerance days")
	}
	if !p.EffectiveToleranceAmount(decimal.NewFromFloat(0.5)).Equal(decimal.NewFromFloat(0.5)) {
		t.Error("expected default tolerance amount")
	}

	days := 3
	amount := decimal.NewFromInt(1)
	p.ToleranceDays = &days
	p.ToleranceAmount = &amount
	if p.EffectiveToleranceDays(5) != 3 || !p.EffectiveToleranceAmount(decimal.Zero).Equal(amount) {
		t.Error("expected per-transfer tolerances to win")
	}
}

func TestPendingTransferCloneIsIndependent(t *testing.T) {
	from := "tx-1"
	p := &PendingTransfer{ID: "p1", FromTransactionID: &from, Status: PendingStatusPartial}

	c := p.Clone()
	*c.FromTransactionID = "tx-2"
	c.Status = PendingStatusMatched

	if *p.FromTransactionID != "tx-1" || p.Status != PendingStatusPartial {
		t.Error("clone must not alias the original")
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2024-02-30"); err == nil {
		t.Error("expected invalid calendar date to fail")
	}
	d, err := ParseDate(" 2024-02-29 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Format(DateLayout) != "2024-02-29" {
		t.Errorf("unexpected date %s", d)
	}
}
