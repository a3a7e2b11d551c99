// Package reconciler runs transfer detection over a set of bank transactions.
//
// A run coordinates the whole workflow:
//   - loading the selected transactions with their account metadata
//   - matching them against operator-declared pending transfers
//   - resolving the exchange rates the pairing pass needs
//   - pairing debits with credits and scoring each pair
//   - auto-linking confident pairs and queueing the rest for review
//   - updating the parent reanalysis batch
//
// Example usage:
//
//	engine, err := reconciler.NewEngine(reconciler.Dependencies{
//		Transactions: ds,
//		Categories:   ds,
//		Pending:      ds,
//		Links:        ds,
//		Candidates:   ds,
//		Batches:      ds,
//		Rates:        resolver,
//	}, reconciler.DefaultConfig(), log)
//
//	result, err := engine.Run(ctx, &reconciler.Request{TransactionIDs: ids})
package reconciler

import (
	"context"
	"fmt"

	"transfer-reconciliation-service/internal/fxrate"
	"transfer-reconciliation-service/internal/matcher"
	"transfer-reconciliation-service/internal/models"
	"transfer-reconciliation-service/internal/store"
	apperrors "transfer-reconciliation-service/pkg/errors"
	"transfer-reconciliation-service/pkg/logger"
)

// DefaultTransferCategoryCode is the category given to linked transfers.
const DefaultTransferCategoryCode = "bank_transfer"

// TransactionReader loads transactions joined with their bank account.
type TransactionReader interface {
	LoadTransactions(ctx context.Context, sel store.Selection) ([]*models.Transaction, error)
}

// CategoryLookup resolves a category code to its id. A missing code yields (nil, nil).
type CategoryLookup interface {
	CategoryIDByCode(ctx context.Context, code string) (*string, error)
}

// PendingStore reads open pending transfers and records slot assignments.
type PendingStore interface {
	OpenPendingTransfers(ctx context.Context, accountIDs []string) ([]*models.PendingTransfer, error)
	ApplyPendingUpdate(ctx context.Context, u store.PendingUpdate) error
}

// Linker writes both sides of an automatic link atomically.
type Linker interface {
	LinkTransfer(ctx context.Context, debitID, creditID string, categoryID *string) error
}

// CandidateQueue stores candidates for human review.
type CandidateQueue interface {
	UpsertCandidates(ctx context.Context, candidates []*models.TransferCandidate, batchID *string) (int, error)
}

// BatchUpdater records run counters on a reanalysis batch.
type BatchUpdater interface {
	UpdateBatchCounters(ctx context.Context, batchID string, counters models.BatchCounters) error
}

// RatePrefetcher resolves a set of exchange rates up front.
type RatePrefetcher interface {
	Prefetch(ctx context.Context, keys []fxrate.RateKey, concurrency int) (*fxrate.RateTable, error)
}

// Dependencies are the collaborators a run reads from and writes to.
type Dependencies struct {
	Transactions TransactionReader
	Categories   CategoryLookup
	Pending      PendingStore
	Links        Linker
	Candidates   CandidateQueue
	Batches      BatchUpdater
	Rates        RatePrefetcher
}

func (d Dependencies) validate() error {
	missing := ""
	switch {
	case d.Transactions == nil:
		missing = "transactions"
	case d.Categories == nil:
		missing = "categories"
	case d.Pending == nil:
		missing = "pending"
	case d.Links == nil:
		missing = "links"
	case d.Candidates == nil:
		missing = "candidates"
	case d.Batches == nil:
		missing = "batches"
	case d.Rates == nil:
		missing = "rates"
	}
	if missing != "" {
		return fmt.Errorf("missing %s dependency", missing)
	}
	return nil
}

// Config holds the engine defaults. Requests may override the matching thresholds.
type Config struct {
	Transfer             *matcher.TransferConfig
	TransferCategoryCode string
	RateConcurrency      int
}

// DefaultConfig returns the standard engine configuration
func DefaultConfig() *Config {
	return &Config{
		Transfer:             matcher.DefaultTransferConfig(),
		TransferCategoryCode: DefaultTransferCategoryCode,
		RateConcurrency:      fxrate.DefaultConcurrency,
	}
}

// Validate checks if the engine configuration is valid
func (c *Config) Validate() error {
	if c.Transfer == nil {
		return fmt.Errorf("transfer configuration is required")
	}
	if err := c.Transfer.Validate(); err != nil {
		return err
	}
	if c.TransferCategoryCode == "" {
		return fmt.Errorf("transfer category code is required")
	}
	if c.RateConcurrency <= 0 {
		return fmt.Errorf("rate concurrency must be positive, got %d", c.RateConcurrency)
	}
	return nil
}

// Summary holds the counters of one run.
type Summary struct {
	Analyzed                int `json:"analyzed"`
	Debits                  int `json:"debits"`
	Credits                 int `json:"credits"`
	Candidates              int `json:"candidates"`
	AutoLinked              int `json:"auto_linked"`
	PendingHITL             int `json:"pending_hitl"`
	CrossCompany            int `json:"cross_company"`
	PendingTransfersMatched int `json:"pending_transfers_matched"`
	PendingTransfersPartial int `json:"pending_transfers_partial"`
}

// Result is the outcome of a successful run.
type Result struct {
	Summary     Summary                     `json:"summary"`
	AutoLinked  []*models.TransferCandidate `json:"auto_linked"`
	PendingHITL []*models.TransferCandidate `json:"pending_hitl"`
	DryRun      bool                        `json:"dry_run"`
}

// Engine runs detection requests. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	deps   Dependencies
	config *Config
	logger logger.Logger
}

// NewEngine creates an engine over the given collaborators
func NewEngine(deps Dependencies, config *Config, log logger.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "matching", config.Transfer, err)
	}
	if err := deps.validate(); err != nil {
		return nil, apperrors.InternalError("engine setup", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	cfg := *config
	cfg.Transfer = config.Transfer.Clone()

	return &Engine{
		deps:   deps,
		config: &cfg,
		logger: log.WithComponent("transfer_engine"),
	}, nil
}

// run carries the state of a single detection pass.
type run struct {
	req        *Request
	config     *matcher.TransferConfig
	categoryID *string
	op         *logger.OperationLogger
	summary    Summary
}

// Run executes one detection pass. Validation happens before any I/O; a load
// failure or a failed review-queue write fails the run, every other write
// failure is logged and absorbed.
func (e *Engine) Run(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		e.logger.WithError(err).Warn("Rejected detection request")
		return nil, err
	}

	r := &run{
		req:    req,
		config: req.transferConfig(e.config.Transfer),
	}
	if err := r.config.Validate(); err != nil {
		return nil, apperrors.InvalidRequest(err.Error())
	}

	generator, err := matcher.NewGenerator(r.config, e.logger)
	if err != nil {
		return nil, apperrors.InvalidRequest(err.Error())
	}

	r.op = logger.NewOperationLogger("transfer_detection", e.logger).
		WithField("dry_run", req.DryRun).
		WithField("strategy", r.config.Strategy)
	if req.BatchID != nil {
		r.op.WithField("batch_id", *req.BatchID)
	}

	// Step 1: load
	txs, err := e.deps.Transactions.LoadTransactions(ctx, req.Selection())
	if err != nil {
		loadErr := apperrors.LoadFailure("transactions", err)
		r.op.Error(loadErr, "Detection run failed")
		return nil, loadErr
	}
	r.summary.Analyzed = len(txs)
	r.op.Step("load", logger.Fields{"analyzed": len(txs)})

	// Step 2: transfer category
	r.categoryID = e.transferCategory(ctx, r)

	// Step 3: pending transfers
	unlinked := e.unlinkedTransactions(txs)
	consumed, err := e.matchPending(ctx, r, unlinked)
	if err != nil {
		r.op.Error(err, "Detection run failed")
		return nil, err
	}

	pool := make([]*models.Transaction, 0, len(unlinked))
	for _, tx := range unlinked {
		if !consumed[tx.ID] {
			pool = append(pool, tx)
		}
	}
	debits, credits := matcher.Partition(pool)
	r.summary.Debits = len(debits)
	r.summary.Credits = len(credits)

	// Step 4: exchange rates
	rates, err := e.deps.Rates.Prefetch(ctx, generator.RequiredRates(pool), e.config.RateConcurrency)
	if err != nil {
		rateErr := apperrors.LoadFailure("exchange rates", err)
		r.op.Error(rateErr, "Detection run failed")
		return nil, rateErr
	}
	r.op.Step("rates", logger.Fields{"resolved": rates.Len()})

	// Step 5: pairing
	pairing := generator.Generate(pool, rates)
	r.summary.Candidates = len(pairing.Candidates)
	for _, c := range pairing.Candidates {
		if c.IsCrossCompany {
			r.summary.CrossCompany++
		}
	}
	r.op.Step("pairing", logger.Fields{
		"debits":     r.summary.Debits,
		"credits":    r.summary.Credits,
		"candidates": r.summary.Candidates,
		"selected":   len(pairing.Selected),
	})

	// Step 6: link and queue
	autoLinked, hitl, err := e.decide(ctx, r, pairing)
	if err != nil {
		r.op.Error(err, "Detection run failed")
		return nil, err
	}
	r.summary.AutoLinked = len(autoLinked)
	r.summary.PendingHITL = len(hitl)

	// Step 7: batch
	e.updateBatch(ctx, r)

	r.op.Success("Transfer detection completed", logger.Fields{
		"analyzed":                  r.summary.Analyzed,
		"candidates":                r.summary.Candidates,
		"auto_linked":               r.summary.AutoLinked,
		"pending_hitl":              r.summary.PendingHITL,
		"cross_company":             r.summary.CrossCompany,
		"pending_transfers_matched": r.summary.PendingTransfersMatched,
		"pending_transfers_partial": r.summary.PendingTransfersPartial,
	})

	return &Result{
		Summary:     r.summary,
		AutoLinked:  autoLinked,
		PendingHITL: hitl,
		DryRun:      req.DryRun,
	}, nil
}

// transferCategory looks up the category for linked transfers. Links are still
// written, uncategorised, when it cannot be found.
func (e *Engine) transferCategory(ctx context.Context, r *run) *string {
	id, err := e.deps.Categories.CategoryIDByCode(ctx, e.config.TransferCategoryCode)
	if err != nil {
		r.op.Warning(err, "Transfer category lookup failed; links will be uncategorised")
		return nil
	}
	if id == nil {
		r.op.WithField("category_code", e.config.TransferCategoryCode)
		r.op.Warning(nil, "Transfer category not found; links will be uncategorised")
	}
	return id
}

// unlinkedTransactions keeps the rows that can take part in matching. Linked
// rows are skipped silently; malformed rows are skipped with a warning.
func (e *Engine) unlinkedTransactions(txs []*models.Transaction) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsLinked() {
			continue
		}
		if err := tx.Validate(); err != nil {
			e.logger.WithError(err).WithField("transaction_id", tx.ID).
				Warn("Skipping malformed transaction")
			continue
		}
		out = append(out, tx)
	}
	return out
}

func accountIDs(txs []*models.Transaction) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, tx := range txs {
		if !seen[tx.BankAccountID] {
			seen[tx.BankAccountID] = true
			ids = append(ids, tx.BankAccountID)
		}
	}
	return ids
}
