package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/tenderscan/internal/database"
	"github.com/nao1215/tenderscan/internal/model"
	"github.com/spf13/cobra"
)

// compareOptions selects the runs and the output format of compare.
type compareOptions struct {
	oldID    string
	newID    string
	since    string
	json     bool
	markdown bool
}

// NewCompareCmd creates the compare command.
// This command compares two crawl runs stored in the history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [OLD_RUN_ID NEW_RUN_ID]",
		Short: "Compare two stored crawl runs",
		Long: `Compare shows how the tenders of one run differ from another:

- New tenders that appeared in the newer run
- Tenders that are no longer listed
- Tenders whose price, deadline, security or industries changed

Tenders are matched by their ID. Without arguments the two most recent
runs are compared. Use 'tenderscan history' to see run IDs.

Examples:
  # Compare the latest two runs
  tenderscan compare

  # Compare two specific runs
  tenderscan compare 3f6c1e9a-... 8d2b4a70-...

  # Compare the latest run with the first run since a date
  tenderscan compare --since 2025-03-01

  # Output the comparison in JSON format
  tenderscan compare --json`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or two run IDs, got %d", len(args))
			}
			return nil
		},
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("since", "s", "",
		"Compare the latest run with the first run on or after this date (format: YYYY-MM-DD)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	var opts compareOptions
	var err error

	if len(args) == 2 {
		opts.oldID, opts.newID = args[0], args[1]
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return err
	}
	if opts.since != "" && opts.oldID != "" {
		return errors.New("--since cannot be combined with run IDs")
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	db, err := openDB(cfg, false)
	if err != nil {
		return fmt.Errorf("%w (no crawl has been stored yet?)", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return runComparison(ctx, db, cmd.OutOrStdout(), opts)
}

// runComparison resolves the two runs, diffs them and prints the result.
func runComparison(ctx context.Context, db *database.TenderDB, out io.Writer, opts compareOptions) error {
	older, newer, err := selectRuns(ctx, db, opts)
	if err != nil {
		return err
	}

	result := &ComparisonResult{
		Previous: metadataOf(older),
		Current:  metadataOf(newer),
		Diff:     model.DiffRuns(older, newer),
	}

	switch {
	case opts.json:
		return outputComparisonJSON(out, result)
	case opts.markdown:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// selectRuns returns the older and the newer run to compare.
func selectRuns(ctx context.Context, db *database.TenderDB, opts compareOptions) (*model.Run, *model.Run, error) {
	if opts.oldID != "" {
		older, err := db.GetRun(ctx, opts.oldID)
		if err != nil {
			return nil, nil, err
		}
		newer, err := db.GetRun(ctx, opts.newID)
		if err != nil {
			return nil, nil, err
		}
		return older, newer, nil
	}

	if opts.since != "" {
		sinceDate, err := time.ParseInLocation(time.DateOnly, opts.since, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Newest first, so walk backwards to find the oldest run on or after the date.
		runs, err := db.ListRuns(ctx, 0)
		if err != nil {
			return nil, nil, err
		}
		if len(runs) == 0 {
			return nil, nil, errors.New("no runs recorded yet")
		}
		var first *model.Run
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].StartedAt.Before(sinceDate) {
				first = runs[i]
				break
			}
		}
		if first == nil {
			return nil, nil, fmt.Errorf("no runs found since %s", opts.since)
		}
		if first.ID == runs[0].ID {
			return nil, nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", opts.since)
		}

		older, err := db.GetRun(ctx, first.ID)
		if err != nil {
			return nil, nil, err
		}
		newer, err := db.GetRun(ctx, runs[0].ID)
		if err != nil {
			return nil, nil, err
		}
		return older, newer, nil
	}

	runs, err := db.LatestRuns(ctx, 2)
	if err != nil {
		return nil, nil, err
	}
	if len(runs) < 2 {
		return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}
	return runs[1], runs[0], nil
}

// ComparisonResult holds the result of comparing two runs.
type ComparisonResult struct {
	// Previous describes the older run.
	Previous RunMetadata `json:"previous_run"`

	// Current describes the newer run.
	Current RunMetadata `json:"current_run"`

	// Diff lists added, removed and changed tenders.
	Diff *model.RunDiff `json:"diff"`
}

// RunMetadata contains metadata about a run for comparison display.
type RunMetadata struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Records   int       `json:"records"`
	Partial   bool      `json:"partial"`
}

func metadataOf(run *model.Run) RunMetadata {
	return RunMetadata{
		ID:        run.ID,
		StartedAt: run.StartedAt,
		Records:   len(run.Records),
		Partial:   run.Partial(),
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	d := result.Diff
	var sb strings.Builder

	sb.WriteString("# Run Comparison\n\n")
	sb.WriteString("| Metric | Previous | Current | Change |\n")
	sb.WriteString("|--------|----------|---------|--------|\n")
	fmt.Fprintf(&sb, "| Run | `%s` | `%s` | - |\n", result.Previous.ID, result.Current.ID)
	fmt.Fprintf(&sb, "| Date | %s | %s | - |\n",
		result.Previous.StartedAt.Format("2006-01-02 15:04"),
		result.Current.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "| **Tenders** | **%d** | **%d** | **%s** |\n",
		result.Previous.Records, result.Current.Records,
		formatDelta(result.Current.Records-result.Previous.Records))

	if len(d.Added) > 0 {
		fmt.Fprintf(&sb, "\n## New Tenders (%d)\n\n", len(d.Added))
		for _, rec := range d.Added {
			fmt.Fprintf(&sb, "- **%s** %s", rec.ID, markdownText(rec.Name))
			if rec.Price != nil {
				fmt.Fprintf(&sb, " (%s)", *rec.Price)
			}
			sb.WriteString("\n")
		}
	}

	if len(d.Changed) > 0 {
		fmt.Fprintf(&sb, "\n## Changed Tenders (%d)\n\n", len(d.Changed))
		for _, c := range d.Changed {
			fmt.Fprintf(&sb, "- **%s** %s\n", c.After.ID, markdownText(c.After.Name))
			for _, line := range changeLines(c) {
				fmt.Fprintf(&sb, "  - %s\n", markdownText(line))
			}
		}
	}

	if len(d.Removed) > 0 {
		fmt.Fprintf(&sb, "\n## Removed Tenders (%d)\n\n", len(d.Removed))
		for _, rec := range d.Removed {
			fmt.Fprintf(&sb, "- ~~**%s** %s~~\n", rec.ID, markdownText(rec.Name))
		}
	}

	if d.Unchanged > 0 {
		fmt.Fprintf(&sb, "\n---\n\n*%d tenders unchanged*\n", d.Unchanged)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	d := result.Diff
	var sb strings.Builder

	sb.WriteString("Run Comparison\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "\nPrevious run: %s  %s  (%d tenders)\n",
		result.Previous.StartedAt.Format("2006-01-02 15:04:05"), result.Previous.ID, result.Previous.Records)
	fmt.Fprintf(&sb, "Current run:  %s  %s  (%d tenders)\n",
		result.Current.StartedAt.Format("2006-01-02 15:04:05"), result.Current.ID, result.Current.Records)

	if d.Empty() {
		sb.WriteString("\nNo differences.\n")
	}

	if len(d.Added) > 0 {
		fmt.Fprintf(&sb, "\nNew Tenders (%d):\n", len(d.Added))
		for _, rec := range d.Added {
			fmt.Fprintf(&sb, "  [+] %s %s\n", rec.ID, rec.Name)
		}
	}

	if len(d.Changed) > 0 {
		fmt.Fprintf(&sb, "\nChanged Tenders (%d):\n", len(d.Changed))
		for _, c := range d.Changed {
			fmt.Fprintf(&sb, "  [~] %s %s\n", c.After.ID, c.After.Name)
			for _, line := range changeLines(c) {
				fmt.Fprintf(&sb, "      %s\n", line)
			}
		}
	}

	if len(d.Removed) > 0 {
		fmt.Fprintf(&sb, "\nRemoved Tenders (%d):\n", len(d.Removed))
		for _, rec := range d.Removed {
			fmt.Fprintf(&sb, "  [-] %s %s\n", rec.ID, rec.Name)
		}
	}

	if d.Unchanged > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d tenders\n", d.Unchanged)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// changeLines describes every changed field as "field: before -> after".
func changeLines(c model.Change) []string {
	fields := c.Fields()
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		var before, after string
		switch f {
		case "link":
			before, after = c.Before.Link, c.After.Link
		case "name":
			before, after = c.Before.Name, c.After.Name
		case "price":
			before, after = model.Value(c.Before.Price), model.Value(c.After.Price)
		case "end_date":
			before, after = model.Value(c.Before.EndDate), model.Value(c.After.EndDate)
		case "securing_the_application":
			before, after = model.Value(c.Before.SecuringTheApplication), model.Value(c.After.SecuringTheApplication)
		case "branches":
			before, after = c.Before.BranchNames(", "), c.After.BranchNames(", ")
		}
		lines = append(lines, fmt.Sprintf("%s: %s -> %s", f, orNone(before), orNone(after)))
	}
	return lines
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// markdownText escapes characters that would start Markdown formatting.
func markdownText(s string) string {
	return strings.NewReplacer("*", `\*`, "_", `\_`, "~", `\~`, "`", "\\`").Replace(s)
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
