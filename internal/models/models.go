package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for transaction and rate dates.
const DateLayout = "2006-01-02"

// Direction is the side of the ledger a transaction posts to.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// IsValid checks if the direction is one the reconciler works with
func (d Direction) IsValid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// LinkType describes how a transaction is linked to its peer.
type LinkType string

const (
	LinkTransferOut LinkType = "transfer_out"
	LinkTransferIn  LinkType = "transfer_in"
	LinkTransfer    LinkType = "transfer"
)

// Transfer statuses written onto transactions.
const (
	TransferStatusLinked  = "linked"
	TransferStatusPartial = "partial"
)

// Transaction is a posted bank-ledger entry with its account metadata already joined in.
type Transaction struct {
	ID                string          `json:"id"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Direction         Direction       `json:"direction"`
	TransactionDate   time.Time       `json:"transaction_date"`
	PostingDate       *time.Time      `json:"posting_date,omitempty"`
	BankAccountID     string          `json:"bank_account_id"`
	CompanyID         *string         `json:"company_id,omitempty"`
	Currency          string          `json:"currency"`
	StatementImportID *string         `json:"statement_import_id,omitempty"`
	LinkedTo          *string         `json:"linked_to,omitempty"`
	LinkType          *LinkType       `json:"link_type,omitempty"`
	TransferStatus    *string         `json:"transfer_status,omitempty"`
	CategoryID        *string         `json:"category_id,omitempty"`
	NeedsReview       bool            `json:"needs_review"`
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}
	if !t.Direction.IsValid() {
		return fmt.Errorf("invalid direction for transaction %s: %q", t.ID, t.Direction)
	}
	if strings.TrimSpace(t.BankAccountID) == "" {
		return fmt.Errorf("transaction %s has no bank account", t.ID)
	}
	if t.TransactionDate.IsZero() {
		return fmt.Errorf("transaction %s has no transaction date", t.ID)
	}
	return nil
}

// AbsAmount returns the unsigned amount, preferring the precomputed total.
func (t *Transaction) AbsAmount() decimal.Decimal {
	if !t.TotalAmount.IsZero() {
		return t.TotalAmount.Abs()
	}
	return t.Amount.Abs()
}

func (t *Transaction) IsDebit() bool  { return t.Direction == DirectionDebit }
func (t *Transaction) IsCredit() bool { return t.Direction == DirectionCredit }

// IsLinked reports whether the transaction already points at a peer.
func (t *Transaction) IsLinked() bool {
	return t.LinkedTo != nil && *t.LinkedTo != ""
}

// SameCompany is true only when both transactions carry the same non-empty company.
func (t *Transaction) SameCompany(other *Transaction) bool {
	if t.CompanyID == nil || other.CompanyID == nil || *t.CompanyID == "" {
		return false
	}
	return *t.CompanyID == *other.CompanyID
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, %s %s %s, Account: %s, Date: %s}",
		t.ID, t.Direction, t.AbsAmount().String(), t.Currency, t.BankAccountID, t.TransactionDate.Format(DateLayout))
}

// AmountMatch classifies how well a debit and credit amount agree.
type AmountMatch string

const (
	AmountMatchExact     AmountMatch = "exact"
	AmountMatchForex1Pct AmountMatch = "forex_1pct"
	AmountMatchForex2Pct AmountMatch = "forex_2pct"
	AmountMatchNone      AmountMatch = "none"
)

// ConfidenceFactors are the inputs the confidence score was computed from.
type ConfidenceFactors struct {
	AmountMatch        AmountMatch `json:"amount_match"`
	DateDiffDays       int         `json:"date_diff_days"`
	SameCompany        bool        `json:"same_company"`
	HasTransferKeyword bool        `json:"has_transfer_keyword"`
}

// CandidateStatus is the review state of a persisted candidate.
type CandidateStatus string

const CandidateStatusPending CandidateStatus = "pending"

// TransferCandidate is a proposed pairing of one debit with one credit.
type TransferCandidate struct {
	Debit  *Transaction `json:"-"`
	Credit *Transaction `json:"-"`

	FromTransactionID  string            `json:"from_transaction_id"`
	ToTransactionID    string            `json:"to_transaction_id"`
	FromAccountID      string            `json:"from_account_id"`
	ToAccountID        string            `json:"to_account_id"`
	FromAmount         decimal.Decimal   `json:"from_amount"`
	ToAmount           decimal.Decimal   `json:"to_amount"`
	FromCurrency       string            `json:"from_currency"`
	ToCurrency         string            `json:"to_currency"`
	FromDate           string            `json:"from_date"`
	ToDate             string            `json:"to_date"`
	ConfidenceScore    int               `json:"confidence_score"`
	Factors            ConfidenceFactors `json:"confidence_factors"`
	ExchangeRate       *decimal.Decimal  `json:"exchange_rate,omitempty"`
	ExchangeRateSource *string           `json:"exchange_rate_source,omitempty"`
	IsCrossCompany     bool              `json:"is_cross_company"`
	LinkError          string            `json:"link_error,omitempty"`
}

// NewTransferCandidate fills the denormalised fields from the two transactions.
func NewTransferCandidate(debit, credit *Transaction) *TransferCandidate {
	return &TransferCandidate{
		Debit:             debit,
		Credit:            credit,
		FromTransactionID: debit.ID,
		ToTransactionID:   credit.ID,
		FromAccountID:     debit.BankAccountID,
		ToAccountID:       credit.BankAccountID,
		FromAmount:        debit.AbsAmount(),
		ToAmount:          credit.AbsAmount(),
		FromCurrency:      debit.Currency,
		ToCurrency:        credit.Currency,
		FromDate:          debit.TransactionDate.Format(DateLayout),
		ToDate:            credit.TransactionDate.Format(DateLayout),
		IsCrossCompany:    !debit.SameCompany(credit),
	}
}

// Key identifies the candidate the same way the review table's unique index does.
func (c *TransferCandidate) Key() string {
	return c.FromTransactionID + ":" + c.ToTransactionID
}

// PendingTransferStatus is the lifecycle of an operator-declared transfer.
type PendingTransferStatus string

const (
	PendingStatusPending PendingTransferStatus = "pending"
	PendingStatusPartial PendingTransferStatus = "partial"
	PendingStatusMatched PendingTransferStatus = "matched"
)

// PendingTransfer is a transfer an operator recorded before the bank data arrived.
type PendingTransfer struct {
	ID                string                `json:"id"`
	FromAccountID     string                `json:"from_account_id"`
	ToAccountID       string                `json:"to_account_id"`
	Amount            decimal.Decimal       `json:"amount"`
	TransferDate      time.Time             `json:"transfer_date"`
	ToleranceDays     *int                  `json:"tolerance_days,omitempty"`
	ToleranceAmount   *decimal.Decimal      `json:"tolerance_amount,omitempty"`
	FromTransactionID *string               `json:"from_transaction_id,omitempty"`
	ToTransactionID   *string               `json:"to_transaction_id,omitempty"`
	Status            PendingTransferStatus `json:"status"`
}

// IsOpen reports whether the transfer can still accept transactions.
func (p *PendingTransfer) IsOpen() bool {
	return p.Status != PendingStatusMatched
}

// Touches reports whether the account is either side of the transfer.
func (p *PendingTransfer) Touches(accountID string) bool {
	return p.FromAccountID == accountID || p.ToAccountID == accountID
}

// EffectiveToleranceDays falls back to def when the transfer has no tolerance of its own.
func (p *PendingTransfer) EffectiveToleranceDays(def int) int {
	if p.ToleranceDays == nil {
		return def
	}
	return *p.ToleranceDays
}

// EffectiveToleranceAmount falls back to def when the transfer has no tolerance of its own.
func (p *PendingTransfer) EffectiveToleranceAmount(def decimal.Decimal) decimal.Decimal {
	if p.ToleranceAmount == nil {
		return def
	}
	return *p.ToleranceAmount
}

// Clone returns a copy whose slot pointers can be changed independently.
func (p *PendingTransfer) Clone() *PendingTransfer {
	c := *p
	if p.FromTransactionID != nil {
		v := *p.FromTransactionID
		c.FromTransactionID = &v
	}
	if p.ToTransactionID != nil {
		v := *p.ToTransactionID
		c.ToTransactionID = &v
	}
	return &c
}

// ExchangeRate is a cached conversion rate for one calendar date.
type ExchangeRate struct {
	Date         time.Time       `json:"date"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	Source       string          `json:"source"`
}

// BatchCounters are the transfer counters written onto a reanalysis batch.
type BatchCounters struct {
	TransfersDetected    int `json:"transfers_detected"`
	TransfersAutoLinked  int `json:"transfers_auto_linked"`
	TransfersPendingHITL int `json:"transfers_pending_hitl"`
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	diff := DateOnly(a).Sub(DateOnly(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// CompareAmountsWithTolerance compares two decimal amounts with a tolerance
func CompareAmountsWithTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string {
	return &s
}
