package report

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/nao1215/tenderscan/internal/model"
)

// Output formats accepted by New.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// ErrUnknownFormat is returned by New for a format it does not know.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer writes the records of a crawl run in one output format.
type Writer interface {
	// Write outputs the run and returns the number of bytes written.
	Write(run *model.Run) (int, error)
}

// New returns the Writer for format, writing to output.
func New(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	case FormatText:
		return NewSimpleWriter(output, WithVerbose(true)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Formats lists the formats New accepts.
func Formats() []string {
	return []string{FormatCSV, FormatJSON, FormatMarkdown, FormatText}
}

// Extension returns the file extension, without a dot, used for format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatJSON:
		return "json"
	case FormatMarkdown, "md":
		return "md"
	case FormatText:
		return "txt"
	default:
		return "csv"
	}
}

// MultiWriter writes a run to several Writers in turn.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to every Writer and stops on the first error.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the output destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// branchCount is one industry and how many records carry it.
type branchCount struct {
	name  string
	count int
}

// sortedBranchCounts returns industry counts, most frequent first.
func sortedBranchCounts(run *model.Run) []branchCount {
	counts := run.BranchCounts()
	out := make([]branchCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, branchCount{name: name, count: n})
	}
	slices.SortFunc(out, func(a, b branchCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return out
}

// statusText describes how a run ended.
func statusText(run *model.Run) string {
	switch {
	case run.FinishedAt.IsZero():
		return "running"
	case run.Partial():
		return "partial: " + run.ErrorMessage
	default:
		return "complete"
	}
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
