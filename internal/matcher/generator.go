package matcher

import (
	"fmt"
	"time"

	"transfer-reconciliation-service/internal/fxrate"
	"transfer-reconciliation-service/internal/models"
	"transfer-reconciliation-service/pkg/logger"
)

// RateLookup answers exchange-rate queries during pairing. Implementations
// must not block; rates are resolved before the scan starts.
type RateLookup interface {
	Lookup(date time.Time, from, to string) (fxrate.Rate, bool)
}

// PairingResult is the outcome of one pairing pass.
type PairingResult struct {
	// Candidates holds every scored pairing in discovery order
	Candidates []*models.TransferCandidate

	// Selected holds the candidates chosen for automatic linking
	Selected []*models.TransferCandidate

	// Consumed holds the ids of transactions used by a selected candidate
	Consumed map[string]bool
}

func newPairingResult() *PairingResult {
	return &PairingResult{Consumed: make(map[string]bool)}
}

func (r *PairingResult) isConsumed(tx *models.Transaction) bool {
	return r.Consumed[tx.ID]
}

func (r *PairingResult) selectCandidate(c *models.TransferCandidate) {
	r.Selected = append(r.Selected, c)
	r.Consumed[c.FromTransactionID] = true
	r.Consumed[c.ToTransactionID] = true
}

// Strategy decides which auto-linkable candidates are selected.
type Strategy interface {
	Name() StrategyName
	Pair(g *Generator, debits []*models.Transaction, credits *CreditIndex, rates RateLookup) *PairingResult
}

// StrategyFor returns the strategy registered under name.
func StrategyFor(name StrategyName) (Strategy, error) {
	switch name {
	case StrategyGreedy, "":
		return GreedyStrategy{}, nil
	case StrategyOptimal:
		return OptimalStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown pairing strategy: %q", name)
	}
}

// Generator produces scored transfer candidates from a set of transactions.
type Generator struct {
	config   *TransferConfig
	scorer   *Scorer
	strategy Strategy
	logger   logger.Logger
}

// NewGenerator creates a generator for the given configuration
func NewGenerator(config *TransferConfig, log logger.Logger) (*Generator, error) {
	if config == nil {
		config = DefaultTransferConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer configuration: %w", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	strategy, err := StrategyFor(config.Strategy)
	if err != nil {
		return nil, err
	}

	return &Generator{
		config:   config.Clone(),
		scorer:   NewScorer(config.Keywords),
		strategy: strategy,
		logger:   log.WithComponent("candidate_generator"),
	}, nil
}

// Generate partitions txs and runs the configured strategy over them.
func (g *Generator) Generate(txs []*models.Transaction, rates RateLookup) *PairingResult {
	debits, credits := Partition(txs)
	index := NewCreditIndex(credits)

	result := g.strategy.Pair(g, debits, index, rates)

	stats := index.GetIndexStats()
	g.logger.WithFields(logger.Fields{
		"strategy":     g.strategy.Name(),
		"debits":       len(debits),
		"credits":      stats.TotalCredits,
		"credit_dates": stats.UniqueDates,
		"candidates":   len(result.Candidates),
		"selected":     len(result.Selected),
	}).Debug("Pairing pass completed")

	return result
}

// RequiredRates lists the distinct rates a pairing pass over txs can ask for,
// in first-use order.
func (g *Generator) RequiredRates(txs []*models.Transaction) []fxrate.RateKey {
	debits, credits := Partition(txs)
	index := NewCreditIndex(credits)

	seen := make(map[fxrate.RateKey]bool)
	var keys []fxrate.RateKey
	for _, debit := range debits {
		for _, credit := range index.Window(debit, g.config.DateToleranceDays) {
			key := fxrate.NewRateKey(debit.TransactionDate, debit.Currency, credit.Currency)
			if key.SameCurrency() || seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// Evaluate scores a single debit/credit pairing. It returns false when the
// pair is not a plausible transfer.
func (g *Generator) Evaluate(debit, credit *models.Transaction, rates RateLookup) (*models.TransferCandidate, bool) {
	if debit.BankAccountID == credit.BankAccountID {
		return nil, false
	}

	days := models.DaysBetween(debit.TransactionDate, credit.TransactionDate)
	if days > g.config.DateToleranceDays {
		return nil, false
	}

	debitAmount := debit.AbsAmount()
	creditAmount := credit.AbsAmount()

	var (
		match models.AmountMatch
		rate  *fxrate.Rate
	)
	if models.NormalizeCurrency(debit.Currency) == models.NormalizeCurrency(credit.Currency) {
		match = ClassifySameCurrency(debitAmount, creditAmount)
	} else {
		if rates == nil {
			return nil, false
		}
		r, ok := rates.Lookup(debit.TransactionDate, debit.Currency, credit.Currency)
		if !ok {
			return nil, false
		}
		rate = &r
		match = ClassifyForex(debitAmount, creditAmount, r.Value)
	}

	if match == models.AmountMatchNone {
		return nil, false
	}

	candidate := models.NewTransferCandidate(debit, credit)
	candidate.Factors = models.ConfidenceFactors{
		AmountMatch:        match,
		DateDiffDays:       days,
		SameCompany:        debit.SameCompany(credit),
		HasTransferKeyword: g.scorer.HasTransferKeyword(debit.Description, credit.Description),
	}
	candidate.ConfidenceScore = g.scorer.Score(candidate.Factors)

	if rate != nil {
		value := rate.Value
		source := rate.Source
		candidate.ExchangeRate = &value
		candidate.ExchangeRateSource = &source
	}

	return candidate, true
}

// AutoLinkable reports whether a candidate qualifies for an automatic link.
// Cross-company pairs never do, whatever their score.
func (g *Generator) AutoLinkable(c *models.TransferCandidate) bool {
	return c.ConfidenceScore >= g.config.AutoLinkThreshold && !c.IsCrossCompany
}

// Partition splits transactions by direction, keeping load order.
func Partition(txs []*models.Transaction) (debits, credits []*models.Transaction) {
	for _, tx := range txs {
		switch tx.Direction {
		case models.DirectionDebit:
			debits = append(debits, tx)
		case models.DirectionCredit:
			credits = append(credits, tx)
		}
	}
	return debits, credits
}

// GreedyStrategy scans debits in load order. The first auto-linkable credit
// consumes both transactions and ends the scan for that debit.
type GreedyStrategy struct{}

func (GreedyStrategy) Name() StrategyName { return StrategyGreedy }

func (GreedyStrategy) Pair(g *Generator, debits []*models.Transaction, credits *CreditIndex, rates RateLookup) *PairingResult {
	result := newPairingResult()

	for _, debit := range debits {
		if result.isConsumed(debit) {
			continue
		}

		for _, credit := range credits.Window(debit, g.config.DateToleranceDays) {
			if result.isConsumed(credit) {
				continue
			}

			candidate, ok := g.Evaluate(debit, credit, rates)
			if !ok {
				continue
			}

			result.Candidates = append(result.Candidates, candidate)
			if g.AutoLinkable(candidate) {
				result.selectCandidate(candidate)
				break
			}
		}
	}

	return result
}
