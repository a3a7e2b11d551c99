package errors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the stage of a detection run that produced them.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryLoad          ErrorCategory = "load"
	CategoryRate          ErrorCategory = "rate"
	CategoryPersistence   ErrorCategory = "persistence"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Validation errors
	CodeInvalidRequest ErrorCode = "invalid_request"
	CodeMissingField   ErrorCode = "missing_field"
	CodeOutOfRange     ErrorCode = "out_of_range"

	// Load errors
	CodeLoadFailed ErrorCode = "load_failed"

	// Rate errors
	CodeRateNotFound     ErrorCode = "rate_not_found"
	CodeProviderFailed   ErrorCode = "provider_failed"
	CodeProviderRejected ErrorCode = "provider_rejected"

	// Persistence errors
	CodeLinkPersistFailed      ErrorCode = "link_persist_failed"
	CodeCandidatePersistFailed ErrorCode = "candidate_persist_failed"
	CodePendingPersistFailed   ErrorCode = "pending_persist_failed"
	CodeBatchUpdateFailed      ErrorCode = "batch_update_failed"
	CodeMigrationFailed        ErrorCode = "migration_failed"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error onto the status code returned by the detect endpoint.
func (e *ReconcilerError) HTTPStatus() int {
	switch e.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryLoad, CategoryPersistence:
		return 5
	case CategoryRate:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e == nil {
		return nil
	}
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	if e == nil {
		return nil
	}
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// InvalidRequest reports a detection request that cannot be served as given.
func InvalidRequest(message string) *ReconcilerError {
	return New(CategoryValidation, CodeInvalidRequest, message).
		WithSuggestion("send exactly one of transaction_ids or filter")
}

// ValidationError creates a validation-related error for a single field
func ValidationError(code ErrorCode, field string, value interface{}) *ReconcilerError {
	var message string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
	default:
		message = fmt.Sprintf("invalid value in field '%s': %v", field, value)
	}

	return New(CategoryValidation, code, message).
		WithContext("field", field).
		WithContext("value", value)
}

// LoadFailure wraps a transaction read error.
func LoadFailure(what string, err error) *ReconcilerError {
	return Wrap(err, CategoryLoad, CodeLoadFailed, fmt.Sprintf("failed to load %s", what)).
		WithContext("source", what)
}

// RateResolutionFailure records why no exchange rate could be produced for a currency pair.
func RateResolutionFailure(code ErrorCode, date, from, to string, err error) *ReconcilerError {
	message := fmt.Sprintf("no exchange rate for %s->%s on %s", from, to, date)

	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategoryRate, code, message)
	} else {
		result = New(CategoryRate, code, message)
	}

	return result.
		WithContext("date", date).
		WithContext("from_currency", from).
		WithContext("to_currency", to)
}

// PersistenceError creates a write-side error for the given operation.
func PersistenceError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message string

	switch code {
	case CodeLinkPersistFailed:
		message = fmt.Sprintf("failed to link transactions during %s", operation)
	case CodeCandidatePersistFailed:
		message = fmt.Sprintf("failed to queue review candidates during %s", operation)
	case CodePendingPersistFailed:
		message = fmt.Sprintf("failed to record pending transfer match during %s", operation)
	case CodeBatchUpdateFailed:
		message = fmt.Sprintf("failed to update batch during %s", operation)
	case CodeMigrationFailed:
		message = fmt.Sprintf("failed to run schema migrations (%s)", operation)
	default:
		message = fmt.Sprintf("persistence error during %s", operation)
	}

	return Wrap(err, CategoryPersistence, code, message).
		WithContext("operation", operation)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message string

	switch code {
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
	default:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
	}

	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion("check the config file or TRANSFERS_* environment variables").
		WithContext("setting", setting)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *ReconcilerError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	if err == nil {
		return New(CategoryInternal, CodeUnexpectedError, message)
	}
	return Wrap(err, CategoryInternal, CodeUnexpectedError, message)
}

// IsReconcilerError checks if an error is a ReconcilerError
func IsReconcilerError(err error) bool {
	_, ok := AsReconcilerError(err)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// HasCode reports whether any ReconcilerError in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	rerr, ok := AsReconcilerError(err)
	return ok && rerr.Code == code
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}

// StatusFor returns the HTTP status for any error, defaulting to 500.
func StatusFor(err error) int {
	if rerr, ok := AsReconcilerError(err); ok {
		return rerr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PublicMessage is the message safe to hand back to API callers. Causes are
// never included since they may carry SQL or upstream details.
func PublicMessage(err error) string {
	if rerr, ok := AsReconcilerError(err); ok {
		return rerr.Message
	}
	return "internal error"
}
