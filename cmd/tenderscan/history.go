package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/tenderscan/internal/database"
	"github.com/nao1215/tenderscan/internal/report"
	"github.com/spf13/cobra"
)

// historyOptions selects what the history command prints.
type historyOptions struct {
	runID    string
	tenderID string
	limit    int
	json     bool
	markdown bool
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show stored crawl runs",
		Long: `History lists the runs stored in the history database, newest first.

With a RUN_ID it prints that run with all its records. With --tender it
lists the runs in which one tender appeared, together with a content
fingerprint, so price or deadline changes show up as a new fingerprint.

Examples:
  tenderscan history
  tenderscan history --limit 5 --markdown
  tenderscan history 3f6c1e9a-0b7d-4c1e-9a52-2a1f0e8b7c44 --json
  tenderscan history --tender 83214567`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", 20, "Number of runs to list")
	cmd.Flags().StringP("tender", "T", "", "Show the runs a tender appeared in")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format (mutually exclusive with --json)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var opts historyOptions
	var err error

	if len(args) == 1 {
		opts.runID = args[0]
	}
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}
	if opts.limit < 1 {
		return errors.New("--limit must be at least 1")
	}
	if opts.tenderID, err = cmd.Flags().GetString("tender"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.runID != "" && opts.tenderID != "" {
		return errors.New("RUN_ID and --tender cannot be combined")
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

	return runHistory(cmd.Context(), db, cmd.OutOrStdout(), opts)
}

// runHistory prints the selected history view to out.
func runHistory(ctx context.Context, db *database.TenderDB, out io.Writer, opts historyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.tenderID != "":
		return printTenderHistory(ctx, db, out, opts.tenderID)

	case opts.runID != "":
		run, err := db.GetRun(ctx, opts.runID)
		if err != nil {
			return err
		}
		var w report.Writer
		switch {
		case opts.json:
			w = report.NewJSONWriter(out, report.WithRunMetadata(), report.WithPrettyPrint())
		case opts.markdown:
			w = report.NewMarkdownWriter(out)
		default:
			w = report.NewSimpleWriter(out, report.WithVerbose(true))
		}
		_, err = w.Write(run)
		return err

	default:
		runs, err := db.ListRuns(ctx, opts.limit)
		if err != nil {
			return err
		}
		switch {
		case opts.json:
			_, err = report.NewJSONWriter(out, report.WithPrettyPrint()).WriteRuns(runs)
		case opts.markdown:
			_, err = report.NewMarkdownWriter(out).WriteHistory(runs)
		default:
			_, err = report.NewSimpleWriter(out).WriteHistory(runs)
		}
		return err
	}
}

// printTenderHistory prints every stored sighting of one tender. A changed
// fingerprint means the tender's content changed between runs.
func printTenderHistory(ctx context.Context, db *database.TenderDB, out io.Writer, tenderID string) error {
	sightings, err := db.TenderHistory(ctx, tenderID)
	if err != nil {
		return err
	}
	if len(sightings) == 0 {
		fmt.Fprintf(out, "Tender %s has not been seen in any stored run.\n", tenderID)
		return nil
	}

	fmt.Fprintf(out, "Tender %s seen in %d run(s)\n\n", tenderID, len(sightings))
	fmt.Fprintf(out, "%-19s  %-36s  %s\n", "STARTED", "RUN", "CONTENT")
	prev := ""
	for _, s := range sightings {
		note := ""
		if prev != "" && s.Fingerprint != prev {
			note = "changed"
		}
		fmt.Fprintf(out, "%-19s  %-36s  %-12s  %s\n",
			s.StartedAt.Local().Format(time.DateTime), s.RunID, shortFingerprint(s.Fingerprint), note)
		prev = s.Fingerprint
	}
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
