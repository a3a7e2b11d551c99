package reconciler

import (
	"fmt"
	"strings"
	"time"

	"transfer-reconciliation-service/internal/matcher"
	"transfer-reconciliation-service/internal/models"
	"transfer-reconciliation-service/internal/store"
	apperrors "transfer-reconciliation-service/pkg/errors"

	"github.com/google/uuid"
)

// Filter selects transactions by statement import, account and date range.
type Filter struct {
	StatementImportID string `json:"statement_import_id,omitempty"`
	BankAccountID     string `json:"bank_account_id,omitempty"`
	DateFrom          string `json:"date_from,omitempty"`
	DateTo            string `json:"date_to,omitempty"`
}

// IsEmpty reports whether the filter carries no criterion at all.
func (f *Filter) IsEmpty() bool {
	return f == nil || (f.StatementImportID == "" && f.BankAccountID == "" && f.DateFrom == "" && f.DateTo == "")
}

// Request is a single detection run. Exactly one of TransactionIDs and Filter
// must be set. Nil overrides fall back to the engine configuration.
type Request struct {
	TransactionIDs    []string `json:"transaction_ids,omitempty"`
	Filter            *Filter  `json:"filter,omitempty"`
	AutoLinkThreshold *int     `json:"auto_link_threshold,omitempty"`
	DateToleranceDays *int     `json:"date_tolerance_days,omitempty"`
	BatchID           *string  `json:"batch_id,omitempty"`
	DryRun            bool     `json:"dry_run"`
	Strategy          string   `json:"strategy,omitempty"`
}

// Validate checks the request shape. It never touches the database.
func (r *Request) Validate() error {
	if r == nil {
		return apperrors.InvalidRequest("request body is required")
	}

	hasIDs := len(r.TransactionIDs) > 0
	hasFilter := !r.Filter.IsEmpty()

	switch {
	case hasIDs && hasFilter:
		return apperrors.InvalidRequest("transaction_ids and filter are mutually exclusive")
	case !hasIDs && !hasFilter:
		return apperrors.InvalidRequest("one of transaction_ids or filter is required")
	}

	for i, id := range r.TransactionIDs {
		if strings.TrimSpace(id) == "" {
			return apperrors.InvalidRequest(fmt.Sprintf("transaction_ids[%d] is empty", i))
		}
		if err := checkUUID(fmt.Sprintf("transaction_ids[%d]", i), id); err != nil {
			return err
		}
	}

	if hasFilter {
		if err := checkUUID("filter.statement_import_id", r.Filter.StatementImportID); err != nil {
			return err
		}
		if err := checkUUID("filter.bank_account_id", r.Filter.BankAccountID); err != nil {
			return err
		}
		if _, _, err := r.Filter.dateRange(); err != nil {
			return err
		}
	}

	if r.AutoLinkThreshold != nil && (*r.AutoLinkThreshold < 0 || *r.AutoLinkThreshold > matcher.MaxScore) {
		return apperrors.InvalidRequest(fmt.Sprintf("auto_link_threshold must be between 0 and %d", matcher.MaxScore))
	}
	if r.DateToleranceDays != nil && *r.DateToleranceDays < 0 {
		return apperrors.InvalidRequest("date_tolerance_days must not be negative")
	}
	if r.Strategy != "" && !matcher.StrategyName(r.Strategy).IsValid() {
		return apperrors.InvalidRequest(fmt.Sprintf("unknown strategy %q", r.Strategy))
	}
	if r.BatchID != nil && strings.TrimSpace(*r.BatchID) == "" {
		return apperrors.InvalidRequest("batch_id must not be empty")
	}

	return nil
}

// checkUUID rejects a non-empty value that is not a UUID, since the ids are
// matched against uuid columns.
func checkUUID(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := uuid.Parse(value); err != nil {
		return apperrors.InvalidRequest(fmt.Sprintf("%s %q is not a valid UUID", field, value))
	}
	return nil
}

func (f *Filter) dateRange() (*time.Time, *time.Time, error) {
	var from, to *time.Time

	if f.DateFrom != "" {
		d, err := models.ParseDate(f.DateFrom)
		if err != nil {
			return nil, nil, apperrors.InvalidRequest(fmt.Sprintf("date_from %q is not a YYYY-MM-DD date", f.DateFrom))
		}
		from = &d
	}
	if f.DateTo != "" {
		d, err := models.ParseDate(f.DateTo)
		if err != nil {
			return nil, nil, apperrors.InvalidRequest(fmt.Sprintf("date_to %q is not a YYYY-MM-DD date", f.DateTo))
		}
		to = &d
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, apperrors.InvalidRequest("date_from must not be after date_to")
	}

	return from, to, nil
}

// Selection converts a validated request into a store query.
func (r *Request) Selection() store.Selection {
	if len(r.TransactionIDs) > 0 {
		return store.Selection{IDs: r.TransactionIDs}
	}

	from, to, _ := r.Filter.dateRange()
	return store.Selection{
		StatementImportID: r.Filter.StatementImportID,
		BankAccountID:     r.Filter.BankAccountID,
		DateFrom:          from,
		DateTo:            to,
	}
}

// transferConfig applies the request overrides on top of base.
func (r *Request) transferConfig(base *matcher.TransferConfig) *matcher.TransferConfig {
	config := base.Clone()
	if r.AutoLinkThreshold != nil {
		config.AutoLinkThreshold = *r.AutoLinkThreshold
	}
	if r.DateToleranceDays != nil {
		config.DateToleranceDays = *r.DateToleranceDays
	}
	if r.Strategy != "" {
		config.Strategy = matcher.StrategyName(r.Strategy)
	}
	return config
}
