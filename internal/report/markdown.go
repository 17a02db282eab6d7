package report

import (
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/tenderscan/internal/model"
)

// MarkdownWriter outputs a run as a Markdown document with a records table
// and a pie chart of industries.
type MarkdownWriter struct {
	baseWriter

	// maxChartSlices caps the pie chart; the remaining industries are
	// folded into "Other".
	maxChartSlices int
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter:     newBaseWriter(output),
		maxChartSlices: 8,
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeRecords(md, run)
	w.writeBranches(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteHistory outputs a table of past runs.
func (w *MarkdownWriter) WriteHistory(runs []*model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded yet.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			"`" + run.ID + "`",
			run.StartedAt.Format(time.DateTime),
			strconv.Itoa(run.RecordCount) + " / " + strconv.Itoa(run.Quota),
			strconv.Itoa(run.PagesVisited),
			escapeCell(statusText(run)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Records", "Pages", "Status"},
		Rows:   rows,
	})
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and run properties.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Tender Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + run.ID + "`"},
			{"Source", run.BaseURL},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration().Round(time.Millisecond).String()},
			{"Listing Pages", strconv.Itoa(run.PagesVisited)},
			{"Records", strconv.Itoa(len(run.Records)) + " / " + strconv.Itoa(run.Quota)},
			{"Skipped Rows", strconv.Itoa(run.SkippedRows)},
			{"Status", escapeCell(statusText(run))},
		},
	})
	md.PlainText("")

	switch {
	case run.Partial():
		md.Warningf("The crawl stopped early; %d record(s) were collected before: %s",
			len(run.Records), run.ErrorMessage)
		md.PlainText("")
	case run.SkippedRows > 0:
		md.Importantf("%d detail page(s) could not be fetched and were skipped.", run.SkippedRows)
		md.PlainText("")
	}
}

// writeRecords writes one table row per record.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, run *model.Run) {
	md.H2("Tenders")
	md.PlainText("")

	if len(run.Records) == 0 {
		md.PlainText("No tenders collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(run.Records))
	for i, rec := range run.Records {
		name := escapeCell(truncateString(rec.Name, 80))
		if name == "" {
			name = "-"
		}
		rows[i] = []string{
			markdown.Link(orDash(rec.ID), detailURL(run.BaseURL, rec.Link)),
			name,
			orDash(escapeCell(model.Value(rec.Price))),
			orDash(escapeCell(model.Value(rec.EndDate))),
			orDash(escapeCell(model.Value(rec.SecuringTheApplication))),
			orDash(escapeCell(truncateString(rec.BranchNames(", "), 60))),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Name", "Price", "Ends (MSK)", "Application Security", "Industries"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeBranches writes the industry distribution as a table and a pie chart.
func (w *MarkdownWriter) writeBranches(md *markdown.Markdown, run *model.Run) {
	counts := sortedBranchCounts(run)
	if len(counts) == 0 {
		return
	}

	md.H2("Industries")
	md.PlainText("")

	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{escapeCell(c.name), strconv.Itoa(c.count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Industry", "Tenders"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Tenders by Industry"),
		piechart.WithShowData(true),
	)

	other := 0
	for i, c := range counts {
		if i >= w.maxChartSlices {
			other += c.count
			continue
		}
		chart.LabelAndIntValue(c.name, uint64(c.count)) //nolint:gosec // counts are non-negative
	}
	if other > 0 {
		chart.LabelAndIntValue("Other", uint64(other)) //nolint:gosec // counts are non-negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [tenderscan](https://github.com/nao1215/tenderscan)*")
}

// detailURL resolves a record link against the run's base URL.
func detailURL(baseURL, link string) string {
	if u, err := url.Parse(link); err == nil && u.IsAbs() {
		return link
	}
	return strings.TrimRight(baseURL, "/") + link
}

// escapeCell keeps pipes and line breaks from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
