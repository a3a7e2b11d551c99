package matcher

import (
	"strings"

	"transfer-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// MaxScore is the highest confidence a candidate can reach.
const MaxScore = 100

const (
	sameCompanyPoints = 20
	keywordPoints     = 10
)

var amountPoints = map[models.AmountMatch]int{
	models.AmountMatchExact:     40,
	models.AmountMatchForex1Pct: 35,
	models.AmountMatchForex2Pct: 25,
	models.AmountMatchNone:      0,
}

// datePoints is indexed by calendar-day difference.
var datePoints = []int{30, 20, 10, 5}

var (
	exactTolerance = decimal.RequireFromString("0.001")
	forex1Pct      = decimal.RequireFromString("0.01")
	forex2Pct      = decimal.RequireFromString("0.02")
)

// Scorer computes confidence scores for transfer candidates.
type Scorer struct {
	keywords []string
}

// NewScorer creates a scorer that recognises the given keywords.
func NewScorer(keywords []string) *Scorer {
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
			normalized = append(normalized, k)
		}
	}
	return &Scorer{keywords: normalized}
}

// Score sums the factor points. The result is always within [0, MaxScore].
func (s *Scorer) Score(f models.ConfidenceFactors) int {
	score := amountPoints[f.AmountMatch]

	if f.DateDiffDays >= 0 && f.DateDiffDays < len(datePoints) {
		score += datePoints[f.DateDiffDays]
	}
	if f.SameCompany {
		score += sameCompanyPoints
	}
	if f.HasTransferKeyword {
		score += keywordPoints
	}

	if score > MaxScore {
		return MaxScore
	}
	return score
}

// HasTransferKeyword reports whether any description contains a keyword.
func (s *Scorer) HasTransferKeyword(descriptions ...string) bool {
	for _, d := range descriptions {
		upper := strings.ToUpper(d)
		for _, k := range s.keywords {
			if strings.Contains(upper, k) {
				return true
			}
		}
	}
	return false
}

// ClassifySameCurrency is exact when the amounts differ by at most 0.1% of the debit.
func ClassifySameCurrency(debit, credit decimal.Decimal) models.AmountMatch {
	tolerance := debit.Abs().Mul(exactTolerance)
	if models.CompareAmountsWithTolerance(debit, credit, tolerance) {
		return models.AmountMatchExact
	}
	return models.AmountMatchNone
}

// ClassifyForex converts the debit with rate and grades the relative difference
// to the credit.
func ClassifyForex(debit, credit, rate decimal.Decimal) models.AmountMatch {
	expected := debit.Mul(rate)
	if !expected.IsPositive() {
		return models.AmountMatchNone
	}

	relDiff := credit.Sub(expected).Abs().Div(expected)
	switch {
	case relDiff.LessThanOrEqual(forex1Pct):
		return models.AmountMatchForex1Pct
	case relDiff.LessThanOrEqual(forex2Pct):
		return models.AmountMatchForex2Pct
	default:
		return models.AmountMatchNone
	}
}
