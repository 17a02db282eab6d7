package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/tenderscan/internal/model"
)

// SimpleWriter outputs a plain-text summary of a run for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints section headers even when a section has no content.
	showEmpty bool

	// verbose lists every collected record.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists the collected records below the summary.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeBranches(&sb, run)
	if w.verbose {
		w.writeRecords(&sb, run)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs one line per stored run.
func (w *SimpleWriter) WriteHistory(runs []*model.Run) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded yet.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-36s  %-19s  %9s  %5s  %s\n", "RUN", "STARTED", "RECORDS", "PAGES", "STATUS")
	for _, run := range runs {
		fmt.Fprintf(&sb, "%-36s  %-19s  %9s  %5d  %s\n",
			run.ID,
			run.StartedAt.Format(time.DateTime),
			fmt.Sprintf("%d/%d", run.RecordCount, run.Quota),
			run.PagesVisited,
			statusText(run),
		)
	}
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.Run) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         TENDER CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run:            %s\n", run.ID)
	fmt.Fprintf(sb, "Source:         %s\n", run.BaseURL)
	fmt.Fprintf(sb, "Started:        %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Listing Pages:  %d\n", run.PagesVisited)
	fmt.Fprintf(sb, "Records:        %d of %d requested\n", len(run.Records), run.Quota)
	fmt.Fprintf(sb, "Skipped Rows:   %d\n", run.SkippedRows)
	fmt.Fprintf(sb, "Status:         %s\n", statusText(run))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeBranches(sb *strings.Builder, run *model.Run) {
	counts := sortedBranchCounts(run)
	if len(counts) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "INDUSTRIES")
	if len(counts) == 0 {
		sb.WriteString("  No industries found\n\n")
		return
	}
	for _, c := range counts {
		fmt.Fprintf(sb, "  %4d  %s\n", c.count, c.name)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRecords(sb *strings.Builder, run *model.Run) {
	if len(run.Records) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "TENDERS")
	if len(run.Records) == 0 {
		sb.WriteString("  No tenders collected\n\n")
		return
	}
	for _, rec := range run.Records {
		fmt.Fprintf(sb, "  [%s] %s\n", orDash(rec.ID), rec.Name)
		if rec.Price != nil {
			fmt.Fprintf(sb, "    Price:    %s\n", *rec.Price)
		}
		if rec.EndDate != nil {
			fmt.Fprintf(sb, "    Ends:     %s\n", *rec.EndDate)
		}
		if rec.SecuringTheApplication != nil {
			fmt.Fprintf(sb, "    Security: %s\n", *rec.SecuringTheApplication)
		}
		fmt.Fprintf(sb, "    Link:     %s\n", detailURL(run.BaseURL, rec.Link))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
