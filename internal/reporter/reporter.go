// Package reporter renders transfer detection results.
//
// Supported output formats:
//   - Console: Human-readable summary and candidate tables for terminal display
//   - JSON: The same document the HTTP endpoint returns
//   - CSV: One row per decided candidate, for review in a spreadsheet
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:        reporter.FormatJSON,
//		TableMaxWidth: 120,
//	})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"transfer-reconciliation-service/internal/models"
	"transfer-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeAutoLinked  bool `json:"include_auto_linked"`
	IncludePendingHITL bool `json:"include_pending_hitl"`

	// MaxItems caps each console table; 0 means no cap
	MaxItems int `json:"max_items"`

	// Console formatting options
	TableMaxWidth int  `json:"table_max_width"`
	SortByScore   bool `json:"sort_by_score"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeAutoLinked:  true,
		IncludePendingHITL: true,
		MaxItems:           50,
		TableMaxWidth:      120,
		SortByScore:        false,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative, got %d", c.MaxItems)
	}

	return nil
}

// ReportGenerator generates detection reports in various formats
type ReportGenerator struct {
	config *ReportConfig
	now    func() time.Time
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	if config.CSVDelimiter == 0 {
		config.CSVDelimiter = ','
	}

	return &ReportGenerator{
		config: config,
		now:    time.Now,
	}, nil
}

// GenerateReport writes result to writer in the configured format.
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("detection result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	ew := &errWriter{w: writer}

	ew.printf("TRANSFER DETECTION REPORT\n")
	ew.printf("Generated: %s\n", rg.now().UTC().Format(time.RFC3339))
	if result.DryRun {
		ew.printf("Mode: dry run (nothing was written)\n")
	}
	ew.printf("\n")

	ew.printf("=== SUMMARY ===\n")
	rg.printSummary(result.Summary, ew)
	ew.printf("\n")

	if rg.config.IncludeAutoLinked && len(result.AutoLinked) > 0 {
		ew.printf("=== AUTO-LINKED TRANSFERS ===\n")
		rg.printCandidates(result.AutoLinked, ew)
		ew.printf("\n")
	}

	if rg.config.IncludePendingHITL && len(result.PendingHITL) > 0 {
		ew.printf("=== QUEUED FOR REVIEW ===\n")
		rg.printCandidates(result.PendingHITL, ew)
	}

	return ew.err
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	output := map[string]interface{}{
		"success": true,
		"dry_run": result.DryRun,
		"summary": result.Summary,
	}
	if rg.config.IncludeAutoLinked {
		output["auto_linked"] = nonNil(result.AutoLinked)
	}
	if rg.config.IncludePendingHITL {
		output["pending_hitl"] = nonNil(result.PendingHITL)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(output)
}

func (rg *ReportGenerator) generateCSVReport(result *reconciler.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		headers := []string{
			"Decision",
			"From_Transaction",
			"To_Transaction",
			"From_Amount",
			"From_Currency",
			"To_Amount",
			"To_Currency",
			"From_Date",
			"To_Date",
			"Score",
			"Amount_Match",
			"Date_Diff_Days",
			"Cross_Company",
			"Exchange_Rate",
			"Link_Error",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	rows := []struct {
		decision   string
		candidates []*models.TransferCandidate
		include    bool
	}{
		{"auto_linked", result.AutoLinked, rg.config.IncludeAutoLinked},
		{"pending_hitl", result.PendingHITL, rg.config.IncludePendingHITL},
	}

	for _, group := range rows {
		if !group.include {
			continue
		}
		for _, c := range group.candidates {
			rate := ""
			if c.ExchangeRate != nil {
				rate = c.ExchangeRate.String()
			}
			record := []string{
				group.decision,
				c.FromTransactionID,
				c.ToTransactionID,
				c.FromAmount.StringFixed(2),
				c.FromCurrency,
				c.ToAmount.StringFixed(2),
				c.ToCurrency,
				c.FromDate,
				c.ToDate,
				strconv.Itoa(c.ConfidenceScore),
				string(c.Factors.AmountMatch),
				strconv.Itoa(c.Factors.DateDiffDays),
				strconv.FormatBool(c.IsCrossCompany),
				rate,
				c.LinkError,
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummary(s reconciler.Summary, ew *errWriter) {
	ew.printf("Transactions analyzed:     %d\n", s.Analyzed)
	ew.printf("  Debits considered:       %d\n", s.Debits)
	ew.printf("  Credits considered:      %d\n", s.Credits)
	ew.printf("Candidates found:          %d\n", s.Candidates)
	ew.printf("  Auto-linked:             %d (%.1f%%)\n", s.AutoLinked, calculatePercentage(s.AutoLinked, s.Candidates))
	ew.printf("  Queued for review:       %d (%.1f%%)\n", s.PendingHITL, calculatePercentage(s.PendingHITL, s.Candidates))
	ew.printf("  Cross-company:           %d\n", s.CrossCompany)
	ew.printf("Pending transfers matched: %d\n", s.PendingTransfersMatched)
	ew.printf("Pending transfers partial: %d\n", s.PendingTransfersPartial)
}

func (rg *ReportGenerator) printCandidates(candidates []*models.TransferCandidate, ew *errWriter) {
	list := candidates
	if rg.config.SortByScore {
		list = make([]*models.TransferCandidate, len(candidates))
		copy(list, candidates)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ConfidenceScore > list[j].ConfidenceScore
		})
	}

	shown := list
	if rg.config.MaxItems > 0 && len(shown) > rg.config.MaxItems {
		shown = shown[:rg.config.MaxItems]
	}

	header := fmt.Sprintf("  %-5s  %-10s  %-24s  %-24s  %-16s  %-16s", "SCORE", "MATCH", "FROM", "TO", "AMOUNT OUT", "AMOUNT IN")
	ew.printf("%s\n", truncate(header, rg.config.TableMaxWidth))
	ew.printf("  %s\n", strings.Repeat("-", min(len(header), rg.config.TableMaxWidth)-2))

	for _, c := range shown {
		line := fmt.Sprintf("  %-5d  %-10s  %-24s  %-24s  %-16s  %-16s",
			c.ConfidenceScore,
			c.Factors.AmountMatch,
			truncate(c.FromTransactionID, 24),
			truncate(c.ToTransactionID, 24),
			c.FromAmount.StringFixed(2)+" "+c.FromCurrency,
			c.ToAmount.StringFixed(2)+" "+c.ToCurrency,
		)
		ew.printf("%s\n", truncate(line, rg.config.TableMaxWidth))

		var notes []string
		if c.IsCrossCompany {
			notes = append(notes, "cross-company")
		}
		if c.ExchangeRate != nil {
			notes = append(notes, "rate "+c.ExchangeRate.String())
		}
		if c.LinkError != "" {
			notes = append(notes, "link failed: "+c.LinkError)
		}
		if len(notes) > 0 {
			ew.printf("         %s\n", strings.Join(notes, "; "))
		}
	}

	if len(shown) < len(list) {
		ew.printf("  ... and %d more\n", len(list)-len(shown))
	}
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

func nonNil(c []*models.TransferCandidate) []*models.TransferCandidate {
	if c == nil {
		return []*models.TransferCandidate{}
	}
	return c
}

// errWriter keeps the first write error so console rendering reads linearly.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
