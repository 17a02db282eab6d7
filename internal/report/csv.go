package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/nao1215/tenderscan/internal/model"
)

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{"id", "link", "name", "price", "end_date", "securing_the_application", "branches"}

// CSVWriter writes one row per record. Absent optional fields are empty
// cells; branches are encoded as a JSON array of {link, name} objects.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the header and the records of run.
func (w *CSVWriter) Write(run *model.Run) (int, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(CSVHeader); err != nil {
		return 0, err
	}
	for _, rec := range run.Records {
		row, err := csvRow(rec)
		if err != nil {
			return 0, err
		}
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}

func csvRow(rec model.Record) ([]string, error) {
	branches := ""
	if rec.Branches != nil {
		data, err := json.Marshal(rec.Branches)
		if err != nil {
			return nil, err
		}
		branches = string(data)
	}

	return []string{
		rec.ID,
		rec.Link,
		rec.Name,
		model.Value(rec.Price),
		model.Value(rec.EndDate),
		model.Value(rec.SecuringTheApplication),
		branches,
	}, nil
}
