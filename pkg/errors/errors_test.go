package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestReconcilerError(t *testing.T) {
	tests := []struct {
		name         string
		category     ErrorCategory
		code         ErrorCode
		message      string
		cause        error
		expectCode   int
		expectStatus int
	}{
		{
			name:         "invalid request",
			category:     CategoryValidation,
			code:         CodeInvalidRequest,
			message:      "either transaction_ids or filter is required",
			expectCode:   3,
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "load failure",
			category:     CategoryLoad,
			code:         CodeLoadFailed,
			message:      "failed to load transactions",
			cause:        errors.New("connection refused"),
			expectCode:   5,
			expectStatus: http.StatusInternalServerError,
		},
		{
			name:         "configuration error",
			category:     CategoryConfiguration,
			code:         CodeInvalidConfig,
			message:      "invalid config",
			cause:        errors.New("missing field"),
			expectCode:   4,
			expectStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *ReconcilerError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.HTTPStatus() != tt.expectStatus {
				t.Errorf("expected status %d, got %d", tt.expectStatus, err.HTTPStatus())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a captured stack trace")
			}
		})
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := LoadFailure("transactions", errors.New("timeout"))

	if got := err.Error(); got != "failed to load transactions: timeout" {
		t.Errorf("unexpected error string %q", got)
	}
	if PublicMessage(err) != "failed to load transactions" {
		t.Errorf("public message must not leak the cause, got %q", PublicMessage(err))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, CategoryInternal, CodeUnexpectedError, "x") != nil {
		t.Error("wrapping nil should return nil")
	}
	var nilErr *ReconcilerError
	if nilErr.WithContext("k", "v") != nil {
		t.Error("WithContext on nil should stay nil")
	}
}

func TestAsReconcilerErrorThroughWrapping(t *testing.T) {
	inner := PersistenceError(CodeLinkPersistFailed, "auto-link", errors.New("deadlock"))
	outer := fmt.Errorf("detect: %w", inner)

	got, ok := AsReconcilerError(outer)
	if !ok {
		t.Fatal("expected to find ReconcilerError in chain")
	}
	if got.Code != CodeLinkPersistFailed {
		t.Errorf("expected link persist code, got %s", got.Code)
	}
	if !HasCode(outer, CodeLinkPersistFailed) {
		t.Error("HasCode should see through fmt wrapping")
	}
	if StatusFor(outer) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", StatusFor(outer))
	}
	if StatusFor(InvalidRequest("bad")) != http.StatusBadRequest {
		t.Error("invalid request must map to 400")
	}
	if StatusFor(errors.New("plain")) != http.StatusInternalServerError {
		t.Error("plain errors map to 500")
	}
}

func TestRateResolutionFailureContext(t *testing.T) {
	err := RateResolutionFailure(CodeProviderRejected, "2024-03-01", "USD", "CAD", nil)

	if err.Category != CategoryRate {
		t.Errorf("expected rate category, got %s", err.Category)
	}
	for _, key := range []string{"date", "from_currency", "to_currency"} {
		if _, ok := err.Context[key]; !ok {
			t.Errorf("expected context key %s", key)
		}
	}
}

func TestWrapIfNeeded(t *testing.T) {
	original := InvalidRequest("bad request")
	if WrapIfNeeded(original, CategoryInternal, CodeUnexpectedError, "x") != original {
		t.Error("existing ReconcilerError should be returned as-is")
	}

	wrapped := WrapIfNeeded(errors.New("boom"), CategoryInternal, CodeUnexpectedError, "detect")
	if wrapped.Category != CategoryInternal {
		t.Errorf("expected internal category, got %s", wrapped.Category)
	}
}
