package fxrate

import (
	"fmt"
	"time"

	"transfer-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// Sources reported next to a rate.
const (
	SourceSameCurrency = "same_currency"
	cachedSuffix       = "_cached"
)

// Rate is a resolved conversion rate and where it came from.
type Rate struct {
	Value  decimal.Decimal `json:"rate"`
	Source string          `json:"source"`
}

// RateKey identifies a rate by calendar date and normalized currency codes.
type RateKey struct {
	Date string
	From string
	To   string
}

// NewRateKey builds the key for the rate from -> to on date.
func NewRateKey(date time.Time, from, to string) RateKey {
	return RateKey{
		Date: models.DateOnly(date).Format(models.DateLayout),
		From: models.NormalizeCurrency(from),
		To:   models.NormalizeCurrency(to),
	}
}

// SameCurrency reports whether no conversion is needed.
func (k RateKey) SameCurrency() bool {
	return k.From == k.To
}

func (k RateKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Date, k.From, k.To)
}

// RateTable is an immutable set of resolved rates. A nil table only answers
// same-currency lookups.
type RateTable struct {
	rates map[RateKey]Rate
}

// NewRateTable copies rates into a new table.
func NewRateTable(rates map[RateKey]Rate) *RateTable {
	t := &RateTable{rates: make(map[RateKey]Rate, len(rates))}
	for k, v := range rates {
		t.rates[k] = v
	}
	return t
}

// Lookup returns the rate for from -> to on date.
func (t *RateTable) Lookup(date time.Time, from, to string) (Rate, bool) {
	key := NewRateKey(date, from, to)
	if key.SameCurrency() {
		return Rate{Value: decimal.NewFromInt(1), Source: SourceSameCurrency}, true
	}
	if t == nil {
		return Rate{}, false
	}
	r, ok := t.rates[key]
	return r, ok
}

// Len returns the number of stored rates.
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}
