// Package matcher pairs debit and credit transactions into transfer candidates
// and matches transactions against operator-declared pending transfers.
//
// The pairing pass works in three stages:
//  1. Candidate selection using a day-bucket index over credits
//  2. Amount classification (same currency or via a prefetched rate table)
//     and confidence scoring
//  3. Selection by a pluggable Strategy (greedy scan or optimal assignment)
//
// Example usage:
//
//	config := matcher.DefaultTransferConfig()
//	config.AutoLinkThreshold = 90
//
//	gen, err := matcher.NewGenerator(config, log)
//	result := gen.Generate(transactions, rates)
package matcher

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StrategyName selects how auto-linkable candidates are picked.
type StrategyName string

const (
	// StrategyGreedy scans debits in load order and lets the first
	// auto-linkable credit win.
	StrategyGreedy StrategyName = "greedy"

	// StrategyOptimal picks the set of auto-linkable pairs with the highest
	// total confidence.
	StrategyOptimal StrategyName = "optimal"
)

// IsValid reports whether the strategy name is known.
func (s StrategyName) IsValid() bool {
	return s == StrategyGreedy || s == StrategyOptimal
}

// DefaultKeywords are the description fragments that hint at a transfer.
var DefaultKeywords = []string{
	"TRANSFER", "TFR", "XFER", "WIRE", "E-TRANSFER", "ETRANSFER", "INTERAC",
	"LOAN", "LOC", "WITHDRAWAL", "DEPOSIT", "INTERNAL", "ONLINE BANKING",
	"PAYMENT TO", "PAYMENT FROM",
}

// TransferConfig holds the parameters of one detection pass.
type TransferConfig struct {
	// AutoLinkThreshold is the minimum score (0-100) for an automatic link
	AutoLinkThreshold int `json:"auto_link_threshold" mapstructure:"auto_link_threshold"`

	// DateToleranceDays is the widest calendar-day gap between debit and credit
	DateToleranceDays int `json:"date_tolerance_days" mapstructure:"date_tolerance_days"`

	// Keywords are matched case-insensitively as substrings of either description
	Keywords []string `json:"keywords" mapstructure:"keywords"`

	Strategy StrategyName `json:"strategy" mapstructure:"strategy"`

	// PendingToleranceDays and PendingToleranceAmount apply to pending
	// transfers that do not carry their own tolerances.
	PendingToleranceDays   int             `json:"pending_tolerance_days" mapstructure:"pending_tolerance_days"`
	PendingToleranceAmount decimal.Decimal `json:"pending_tolerance_amount" mapstructure:"pending_tolerance_amount"`
}

// DefaultTransferConfig returns a configuration with the standard thresholds
func DefaultTransferConfig() *TransferConfig {
	keywords := make([]string, len(DefaultKeywords))
	copy(keywords, DefaultKeywords)

	return &TransferConfig{
		AutoLinkThreshold:      95,
		DateToleranceDays:      3,
		Keywords:               keywords,
		Strategy:               StrategyGreedy,
		PendingToleranceDays:   5,
		PendingToleranceAmount: decimal.RequireFromString("0.50"),
	}
}

// Validate checks if the transfer configuration is valid
func (c *TransferConfig) Validate() error {
	if c.AutoLinkThreshold < 0 || c.AutoLinkThreshold > MaxScore {
		return fmt.Errorf("auto link threshold must be between 0 and %d: %d", MaxScore, c.AutoLinkThreshold)
	}

	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", c.DateToleranceDays)
	}

	if !c.Strategy.IsValid() {
		return fmt.Errorf("unknown pairing strategy: %q", c.Strategy)
	}

	if c.PendingToleranceDays < 0 {
		return fmt.Errorf("pending tolerance days cannot be negative: %d", c.PendingToleranceDays)
	}

	if c.PendingToleranceAmount.IsNegative() {
		return fmt.Errorf("pending tolerance amount cannot be negative: %s", c.PendingToleranceAmount)
	}

	for _, k := range c.Keywords {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("keywords cannot contain blank entries")
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *TransferConfig) Clone() *TransferConfig {
	if c == nil {
		return nil
	}

	clone := *c
	clone.Keywords = make([]string, len(c.Keywords))
	copy(clone.Keywords, c.Keywords)
	return &clone
}

// String returns a short description of the configuration
func (c *TransferConfig) String() string {
	return fmt.Sprintf("TransferConfig{Threshold: %d, DateTolerance: %dd, Strategy: %s, Keywords: %d}",
		c.AutoLinkThreshold, c.DateToleranceDays, c.Strategy, len(c.Keywords))
}
