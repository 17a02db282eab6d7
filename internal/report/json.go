package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/tenderscan/internal/model"
)

// JSONWriter outputs records in JSON format.
// By default only the record array is written, the same shape the HTTP API
// returns; WithRunMetadata writes the whole run instead.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	withRun bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithRunMetadata writes the run (id, timing, counters, error) around the records.
func WithRunMetadata() JSONWriterOption {
	return func(w *JSONWriter) {
		w.withRun = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run in JSON format.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	if w.withRun {
		return w.writeJSON(run)
	}
	records := run.Records
	if records == nil {
		records = []model.Record{}
	}
	return w.writeJSON(records)
}

// WriteRuns outputs a list of runs, e.g. the history listing.
func (w *JSONWriter) WriteRuns(runs []*model.Run) (int, error) {
	if runs == nil {
		runs = []*model.Run{}
	}
	return w.writeJSON(runs)
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
