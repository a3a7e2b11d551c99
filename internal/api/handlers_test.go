package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"transfer-reconciliation-service/internal/models"
	"transfer-reconciliation-service/internal/reconciler"
	apperrors "transfer-reconciliation-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	debitID  = "5f0c7a52-8d0e-4c1b-9a52-3e4f6a7b8c9d"
	creditID = "0b6e2f41-7c3d-4a5e-8f90-1a2b3c4d5e6f"
)

type stubDetector struct {
	result *reconciler.Result
	err    error
	panic  bool
	got    *reconciler.Request
}

func (s *stubDetector) Run(_ context.Context, req *reconciler.Request) (*reconciler.Result, error) {
	s.got = req
	if s.panic {
		panic("boom")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.result, s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, a *Api, method, route, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, route, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	a.Router().ServeHTTP(resp, req)

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestDetectTransfers_Success(t *testing.T) {
	detector := &stubDetector{result: &reconciler.Result{
		Summary:    reconciler.Summary{Analyzed: 2, Debits: 1, Credits: 1, Candidates: 1, PendingHITL: 1},
		AutoLinked: []*models.TransferCandidate{},
		PendingHITL: []*models.TransferCandidate{{
			FromTransactionID: "d1",
			ToTransactionID:   "c1",
			ConfidenceScore:   90,
		}},
	}}
	a := NewAPI(detector, nil, nil)

	resp, payload := serve(t, a, http.MethodPost, "/transfers/detect",
		`{"transaction_ids":["5f0c7a52-8d0e-4c1b-9a52-3e4f6a7b8c9d","0b6e2f41-7c3d-4a5e-8f90-1a2b3c4d5e6f"],"auto_link_threshold":90,"dry_run":true}`)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, payload["success"])

	summary := payload["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["analyzed"])
	assert.Equal(t, float64(1), summary["pending_hitl"])
	assert.Len(t, payload["pending_hitl"], 1)
	assert.Len(t, payload["auto_linked"], 0)

	require.NotNil(t, detector.got)
	assert.Equal(t, []string{debitID, creditID}, detector.got.TransactionIDs)
	require.NotNil(t, detector.got.AutoLinkThreshold)
	assert.Equal(t, 90, *detector.got.AutoLinkThreshold)
	assert.True(t, detector.got.DryRun)
}

func TestDetectTransfers_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed json",
			body:       `{"transaction_ids":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "malformed request body",
		},
		{
			name:       "both modes",
			body:       `{"transaction_ids":["5f0c7a52-8d0e-4c1b-9a52-3e4f6a7b8c9d"],"filter":{"bank_account_id":"a"}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "mutually exclusive",
		},
		{
			name:       "malformed id",
			body:       `{"transaction_ids":["d1"]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "is not a valid UUID",
		},
		{
			name:       "malformed account filter",
			body:       `{"filter":{"bank_account_id":"acct-a"}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "filter.bank_account_id",
		},
		{
			name:       "load failure",
			body:       `{"transaction_ids":["5f0c7a52-8d0e-4c1b-9a52-3e4f6a7b8c9d"]}`,
			err:        apperrors.LoadFailure("transactions", errors.New("pq: password authentication failed")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "failed to load transactions",
		},
		{
			name:       "unexpected error",
			body:       `{"transaction_ids":["5f0c7a52-8d0e-4c1b-9a52-3e4f6a7b8c9d"]}`,
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAPI(&stubDetector{err: tt.err}, nil, nil)

			resp, payload := serve(t, a, http.MethodPost, "/transfers/detect", tt.body)

			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Equal(t, false, payload["success"])
			assert.Contains(t, payload["error"], tt.wantError)
			assert.NotContains(t, payload["error"], "pq:")
			assert.Nil(t, payload["summary"])
		})
	}
}

func TestDetectTransfers_RecoversFromPanic(t *testing.T) {
	a := NewAPI(&stubDetector{panic: true}, nil, nil)

	resp, payload := serve(t, a, http.MethodPost, "/transfers/detect", `{"transaction_ids":["5f0c7a52-8d0e-4c1b-9a52-3e4f6a7b8c9d"]}`)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, false, payload["success"])
}

func TestHealthz(t *testing.T) {
	resp, payload := serve(t, NewAPI(&stubDetector{}, stubPinger{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", payload["status"])

	resp, _ = serve(t, NewAPI(&stubDetector{}, stubPinger{err: errors.New("down")}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
