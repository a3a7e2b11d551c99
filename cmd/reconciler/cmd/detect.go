package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"transfer-reconciliation-service/cmd/reconciler/config"
	"transfer-reconciliation-service/internal/reconciler"
	"transfer-reconciliation-service/internal/reporter"
	"transfer-reconciliation-service/pkg/errors"
	"transfer-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// detectOptions holds the detect command flags.
type detectOptions struct {
	ids           []string
	statement     string
	account       string
	from          string
	to            string
	threshold     int
	dateTolerance int
	batch         string
	dryRun        bool
	strategy      string
	outputFormat  string
	outputFile    string
}

var detectOpts detectOptions

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run transfer detection once and print a report",
	Long: `Detect runs the same analysis as POST /transfers/detect against the
configured database and prints the outcome.

Select transactions either by id or by filter, never both.

Examples:
  # Analyze specific transactions without writing anything
  reconciler detect --ids 3f1c...,9a27... --dry-run

  # Analyze one statement import
  reconciler detect --statement 7d0c...

  # One account over a date range, JSON report to a file
  reconciler detect --account acct-1 --from 2024-03-01 --to 2024-03-31 \
    --output-format json --output-file transfers.json

  # Stricter auto-linking with the optimal assignment
  reconciler detect --statement 7d0c... --threshold 98 --strategy optimal`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	addDetectFlags(detectCmd.Flags(), &detectOpts)
}

func addDetectFlags(flags *pflag.FlagSet, opts *detectOptions) {
	flags.StringSliceVar(&opts.ids, "ids", nil, "comma-separated transaction ids")
	flags.StringVar(&opts.statement, "statement", "", "filter by statement import id")
	flags.StringVar(&opts.account, "account", "", "filter by bank account id")
	flags.StringVar(&opts.from, "from", "", "filter start date (YYYY-MM-DD)")
	flags.StringVar(&opts.to, "to", "", "filter end date (YYYY-MM-DD)")
	flags.IntVar(&opts.threshold, "threshold", 0, "auto-link threshold 0-100 (default from matching.auto_link_threshold)")
	flags.IntVarP(&opts.dateTolerance, "date-tolerance", "d", 0, "date tolerance in days (default from matching.date_tolerance_days)")
	flags.StringVar(&opts.batch, "batch", "", "reanalysis batch id to update")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "analyze without linking or queueing anything")
	flags.StringVar(&opts.strategy, "strategy", "", "pairing strategy: greedy, optimal")
	flags.StringVarP(&opts.outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	flags.StringVarP(&opts.outputFile, "output-file", "o", "", "output file path (default: stdout)")
}

// buildRequest turns the flags into a detection request. Overrides are only
// set for flags the user changed so the configured defaults apply otherwise.
func buildRequest(opts detectOptions, flags *pflag.FlagSet) *reconciler.Request {
	req := &reconciler.Request{
		DryRun:   opts.dryRun,
		Strategy: strings.TrimSpace(opts.strategy),
	}

	for _, id := range opts.ids {
		req.TransactionIDs = append(req.TransactionIDs, strings.TrimSpace(id))
	}

	filter := &reconciler.Filter{
		StatementImportID: strings.TrimSpace(opts.statement),
		BankAccountID:     strings.TrimSpace(opts.account),
		DateFrom:          strings.TrimSpace(opts.from),
		DateTo:            strings.TrimSpace(opts.to),
	}
	if !filter.IsEmpty() {
		req.Filter = filter
	}

	if flags.Changed("threshold") {
		threshold := opts.threshold
		req.AutoLinkThreshold = &threshold
	}
	if flags.Changed("date-tolerance") {
		tolerance := opts.dateTolerance
		req.DateToleranceDays = &tolerance
	}
	if flags.Changed("batch") {
		batch := strings.TrimSpace(opts.batch)
		req.BatchID = &batch
	}

	return req
}

func runDetect(cmd *cobra.Command, _ []string) error {
	log := logger.GetGlobalLogger().WithComponent("detect")

	req := buildRequest(detectOpts, cmd.Flags())
	if err := req.Validate(); err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(detectOpts.outputFormat)
	if err != nil {
		return configError("output-format", detectOpts.outputFormat, err)
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	// Opened before the run so a bad path fails before anything is persisted.
	output, closeOutput, err := openOutput(cmd.OutOrStdout(), detectOpts.outputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	app, err := newApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.engine.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if err := generator.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if v.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nDetection completed.\n")
		fmt.Fprintf(os.Stderr, "Analyzed %d transactions, found %d candidates.\n",
			result.Summary.Analyzed, result.Summary.Candidates)
		fmt.Fprintf(os.Stderr, "Auto-linked %d, queued %d for review.\n",
			result.Summary.AutoLinked, result.Summary.PendingHITL)
	}

	return nil
}

// openOutput returns the report destination, stdout unless a path is given.
func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output-file", path, err).
			WithSuggestion("check that the output directory exists and is writable")
	}
	return file, func() { _ = file.Close() }, nil
}
