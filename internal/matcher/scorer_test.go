package matcher

import (
	"testing"

	"transfer-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func TestScore(t *testing.T) {
	s := NewScorer(DefaultKeywords)

	tests := []struct {
		name    string
		factors models.ConfidenceFactors
		want    int
	}{
		{"exact same day same company", models.ConfidenceFactors{AmountMatch: models.AmountMatchExact, SameCompany: true}, 90},
		{"everything", models.ConfidenceFactors{AmountMatch: models.AmountMatchExact, SameCompany: true, HasTransferKeyword: true}, 100},
		{"forex 1pct same day", models.ConfidenceFactors{AmountMatch: models.AmountMatchForex1Pct, SameCompany: true}, 85},
		{"forex 2pct one day", models.ConfidenceFactors{AmountMatch: models.AmountMatchForex2Pct, DateDiffDays: 1}, 45},
		{"two days", models.ConfidenceFactors{AmountMatch: models.AmountMatchExact, DateDiffDays: 2}, 50},
		{"three days", models.ConfidenceFactors{AmountMatch: models.AmountMatchExact, DateDiffDays: 3}, 45},
		{"beyond window", models.ConfidenceFactors{AmountMatch: models.AmountMatchExact, DateDiffDays: 4}, 40},
		{"none", models.ConfidenceFactors{AmountMatch: models.AmountMatchNone, DateDiffDays: 9}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.factors)
			if got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
			if again := s.Score(tt.factors); again != got {
				t.Errorf("Score() not deterministic: %d then %d", got, again)
			}
		})
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	s := NewScorer(DefaultKeywords)
	matches := []models.AmountMatch{
		models.AmountMatchExact, models.AmountMatchForex1Pct, models.AmountMatchForex2Pct, models.AmountMatchNone,
	}

	for _, m := range matches {
		for days := -1; days <= 10; days++ {
			for _, company := range []bool{true, false} {
				for _, keyword := range []bool{true, false} {
					got := s.Score(models.ConfidenceFactors{
						AmountMatch: m, DateDiffDays: days, SameCompany: company, HasTransferKeyword: keyword,
					})
					if got < 0 || got > MaxScore {
						t.Fatalf("score %d out of range for %s/%d/%v/%v", got, m, days, company, keyword)
					}
				}
			}
		}
	}
}

func TestHasTransferKeyword(t *testing.T) {
	s := NewScorer([]string{"transfer", " Interac ", ""})

	tests := []struct {
		descs []string
		want  bool
	}{
		{[]string{"Online transfer to savings"}, true},
		{[]string{"COFFEE", "INTERAC e-deposit"}, true},
		{[]string{"COFFEE", "GROCERIES"}, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := s.HasTransferKeyword(tt.descs...); got != tt.want {
			t.Errorf("HasTransferKeyword(%v) = %v, want %v", tt.descs, got, tt.want)
		}
	}
}

func TestClassifySameCurrency(t *testing.T) {
	tests := []struct {
		name          string
		debit, credit string
		want          models.AmountMatch
	}{
		{"identical", "1000", "1000", models.AmountMatchExact},
		{"boundary inclusive", "1000", "1001", models.AmountMatchExact},
		{"boundary below", "1000", "999", models.AmountMatchExact},
		{"just outside", "1000", "1001.01", models.AmountMatchNone},
		{"far off", "1000", "900", models.AmountMatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySameCurrency(decimal.RequireFromString(tt.debit), decimal.RequireFromString(tt.credit))
			if got != tt.want {
				t.Errorf("ClassifySameCurrency(%s, %s) = %s, want %s", tt.debit, tt.credit, got, tt.want)
			}
		})
	}
}

func TestClassifyForex(t *testing.T) {
	rate := decimal.RequireFromString("1.35")

	tests := []struct {
		name   string
		credit string
		want   models.AmountMatch
	}{
		{"exact conversion", "1350", models.AmountMatchForex1Pct},
		{"one percent", "1363.5", models.AmountMatchForex1Pct},
		{"two percent", "1377", models.AmountMatchForex2Pct},
		{"beyond two percent", "1400", models.AmountMatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyForex(decimal.NewFromInt(1000), decimal.RequireFromString(tt.credit), rate)
			if got != tt.want {
				t.Errorf("ClassifyForex() = %s, want %s", got, tt.want)
			}
		})
	}

	if got := ClassifyForex(decimal.Zero, decimal.NewFromInt(5), rate); got != models.AmountMatchNone {
		t.Errorf("zero expected amount must not match, got %s", got)
	}
}
