package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nao1215/tenderscan/internal/database"
	"github.com/nao1215/tenderscan/internal/model"
	"github.com/nao1215/tenderscan/internal/pipeline"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// tendersQuery holds the parameters of /endpoint/tenders.
type tendersQuery struct {
	Max int `validate:"gte=0,lte=1000"`
}

// runsQuery holds the parameters of /endpoint/runs.
type runsQuery struct {
	Limit int `validate:"gte=1,lte=1000"`
}

// runSummary is a stored run without its records.
type runSummary struct {
	ID           string    `json:"id"`
	BaseURL      string    `json:"base_url"`
	Quota        int       `json:"quota"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	PagesVisited int       `json:"pages_visited"`
	SkippedRows  int       `json:"skipped_rows"`
	RecordCount  int       `json:"record_count"`
	Error        string    `json:"error,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "test"})
}

func (s *Server) handleTenders(w http.ResponseWriter, r *http.Request) {
	q := tendersQuery{Max: s.defaultMax}
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max must be an integer")
			return
		}
		q.Max = n
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "max must be between 0 and "+strconv.Itoa(MaxQuota))
		return
	}

	run := model.NewRun(s.baseURL, q.Max)
	p := pipeline.DefaultPipeline(s.crawler, pipeline.DefaultPipelineConfig{Logger: s.logger})
	err := p.Execute(r.Context(), run)

	if s.store != nil && !errors.Is(err, context.Canceled) {
		if saveErr := s.store.SaveRun(context.WithoutCancel(r.Context()), run); saveErr != nil {
			s.logger.Error("failed to save run", "run", run.ID, "error", saveErr)
		}
	}

	if err != nil && len(run.Records) == 0 {
		s.logger.Warn("crawl failed", "run", run.ID, "error", err)
		msg := run.ErrorMessage
		if msg == "" {
			msg = err.Error()
		}
		writeError(w, http.StatusBadGateway, msg)
		return
	}
	if run.Partial() {
		w.Header().Set(CrawlErrorHeader, run.ErrorMessage)
	}

	records := run.Records
	if records == nil {
		records = []model.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "run history is disabled")
		return
	}

	q := runsQuery{Limit: DefaultRunsLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = n
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(MaxRunsLimit))
		return
	}

	runs, err := s.store.ListRuns(r.Context(), q.Limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	out := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, runSummary{
			ID:           run.ID,
			BaseURL:      run.BaseURL,
			Quota:        run.Quota,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			PagesVisited: run.PagesVisited,
			SkippedRows:  run.SkippedRows,
			RecordCount:  run.RecordCount,
			Error:        run.ErrorMessage,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "run history is disabled")
		return
	}

	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, database.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// writeJSON writes a JSON response with the specified status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
