package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"transfer-reconciliation-service/cmd/reconciler/config"
	"transfer-reconciliation-service/pkg/errors"

	"github.com/spf13/pflag"
)

const (
	txOne     = "3f1c2d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
	txTwo     = "9a27b8c6-d5e4-4f3a-9b2c-1d0e9f8a7b6c"
	importID  = "7d0c1e2f-3a4b-4c5d-9e6f-7a8b9c0d1e2f"
	accountID = "c4b3a291-8f7e-4d6c-b5a4-9382716f5e4d"
)

func parseDetectFlags(t *testing.T, args ...string) (detectOptions, *pflag.FlagSet) {
	t.Helper()

	var opts detectOptions
	flags := pflag.NewFlagSet("detect", pflag.ContinueOnError)
	addDetectFlags(flags, &opts)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("failed to parse flags %v: %v", args, err)
	}
	return opts, flags
}

func TestBuildRequest_TransactionIDs(t *testing.T) {
	opts, flags := parseDetectFlags(t, "--ids", txOne+", "+txTwo, "--dry-run")

	req := buildRequest(opts, flags)

	if len(req.TransactionIDs) != 2 || req.TransactionIDs[0] != txOne || req.TransactionIDs[1] != txTwo {
		t.Errorf("unexpected transaction ids %q", req.TransactionIDs)
	}
	if req.Filter != nil {
		t.Errorf("expected no filter, got %+v", req.Filter)
	}
	if !req.DryRun {
		t.Errorf("expected dry run")
	}
	if req.AutoLinkThreshold != nil || req.DateToleranceDays != nil || req.BatchID != nil {
		t.Errorf("unchanged flags must not override configuration")
	}
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestBuildRequest_Filter(t *testing.T) {
	opts, flags := parseDetectFlags(t,
		"--account", accountID,
		"--from", "2024-03-01",
		"--to", "2024-03-31",
		"--threshold", "0",
		"-d", "2",
		"--batch", "batch-7",
		"--strategy", "optimal",
	)

	req := buildRequest(opts, flags)

	if req.Filter == nil {
		t.Fatalf("expected filter")
	}
	if req.Filter.BankAccountID != accountID || req.Filter.DateFrom != "2024-03-01" || req.Filter.DateTo != "2024-03-31" {
		t.Errorf("unexpected filter %+v", req.Filter)
	}
	if req.AutoLinkThreshold == nil || *req.AutoLinkThreshold != 0 {
		t.Errorf("explicit zero threshold must be kept, got %v", req.AutoLinkThreshold)
	}
	if req.DateToleranceDays == nil || *req.DateToleranceDays != 2 {
		t.Errorf("expected date tolerance 2, got %v", req.DateToleranceDays)
	}
	if req.BatchID == nil || *req.BatchID != "batch-7" {
		t.Errorf("expected batch-7, got %v", req.BatchID)
	}
	if req.Strategy != "optimal" {
		t.Errorf("expected optimal strategy, got %q", req.Strategy)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestBuildRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no selection", []string{"--dry-run"}},
		{"ids and filter", []string{"--ids", txOne, "--statement", importID}},
		{"malformed id", []string{"--ids", "tx-1"}},
		{"malformed account", []string{"--account", "acct-1"}},
		{"reversed dates", []string{"--from", "2024-03-31", "--to", "2024-03-01"}},
		{"bad date", []string{"--from", "03/01/2024"}},
		{"threshold too high", []string{"--statement", importID, "--threshold", "150"}},
		{"negative tolerance", []string{"--statement", importID, "-d", "-1"}},
		{"unknown strategy", []string{"--statement", importID, "--strategy", "random"}},
		{"blank batch", []string{"--statement", importID, "--batch", " "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, flags := parseDetectFlags(t, tt.args...)

			err := buildRequest(opts, flags).Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			rerr, ok := errors.AsReconcilerError(err)
			if !ok || rerr.Category != errors.CategoryValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestOpenOutput(t *testing.T) {
	var stdout bytes.Buffer
	w, closeFn, err := openOutput(&stdout, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	closeFn()
	if w != &stdout {
		t.Errorf("expected stdout writer when no path is given")
	}

	path := filepath.Join(t.TempDir(), "report.json")
	w, closeFn, err = openOutput(&stdout, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.Write([]byte("{}")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	closeFn()
	if content, _ := os.ReadFile(path); string(content) != "{}" {
		t.Errorf("unexpected file content %q", content)
	}

	_, _, err = openOutput(&stdout, filepath.Join(t.TempDir(), "missing", "report.json"))
	if !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestRunDetect_UnwritableOutputFailsBeforeConnecting(t *testing.T) {
	savedOpts, savedCfg := detectOpts, cfg
	defer func() { detectOpts, cfg = savedOpts, savedCfg }()

	// No DSN: reaching the database would fail with a missing-config error.
	cfg = &config.Config{}
	detectOpts = detectOptions{
		statement:    importID,
		outputFormat: "json",
		outputFile:   filepath.Join(t.TempDir(), "missing", "report.json"),
	}

	err := runDetect(detectCmd, nil)
	if !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Fatalf("expected output-file configuration error, got %v", err)
	}
	if errors.HasCode(err, errors.CodeMissingConfig) {
		t.Errorf("output must be checked before the database is opened")
	}
}
