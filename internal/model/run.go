package model

import (
	"time"

	"github.com/google/uuid"
)

// Run describes one crawl invocation and what it produced.
// A run that ended with an error still carries the records collected
// before the error, so callers can decide whether partial data is useful.
type Run struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	// BaseURL is the site the run crawled.
	BaseURL string `json:"base_url"`

	// Quota is the maximum number of records the run was asked for.
	Quota int `json:"quota"`

	// StartedAt and FinishedAt bound the crawl.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// PagesVisited counts listing pages that were fetched and parsed.
	PagesVisited int `json:"pages_visited"`

	// SkippedRows counts listing rows whose detail page could not be fetched.
	SkippedRows int `json:"skipped_rows"`

	// Records holds the collected records in crawl order.
	Records []Record `json:"records"`

	// RecordCount is len(Records) when the run finished. Run listings loaded
	// from storage carry the count without the records.
	RecordCount int `json:"record_count"`

	// Err is the error that terminated the crawl, if any.
	// It is not serialized; ErrorMessage carries its text.
	Err error `json:"-"`

	// ErrorMessage is the text of Err, kept for JSON output and storage.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRun creates a Run with a fresh ID and the start time set to now.
func NewRun(baseURL string, quota int) *Run {
	return &Run{
		ID:        uuid.NewString(),
		BaseURL:   baseURL,
		Quota:     quota,
		StartedAt: time.Now(),
		Records:   make([]Record, 0),
	}
}

// Finish records the terminating error (nil on success) and the end time.
func (r *Run) Finish(err error) {
	r.FinishedAt = time.Now()
	r.RecordCount = len(r.Records)
	r.Err = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Partial reports whether the run ended early because of an error.
func (r *Run) Partial() bool {
	return r.Err != nil || r.ErrorMessage != ""
}

// Duration returns how long the run took.
// It is zero while the run is still in progress.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// BranchCounts returns how many collected records belong to each industry.
func (r *Run) BranchCounts() map[string]int {
	counts := make(map[string]int)
	for _, rec := range r.Records {
		for _, b := range rec.Branches {
			counts[b.Name]++
		}
	}
	return counts
}
