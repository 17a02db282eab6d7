package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/tenderscan/internal/model"
	"github.com/nao1215/tenderscan/internal/report"
)

// Crawler fills a run with records. *crawler.Driver implements it.
type Crawler interface {
	Crawl(ctx context.Context, run *model.Run) error
}

// RunStore persists finished runs. *database.TenderDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
}

// CrawlStep collects the records of the run and finishes it.
//
// A crawl that ends early with some records collected is not a step
// failure: the run is marked partial and later steps still see the records.
// A crawl that fails before collecting anything stops the pipeline.
type CrawlStep struct {
	crawler Crawler
	logger  *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step using c.
func NewCrawlStep(c Crawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{crawler: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, run *model.Run) error {
	err := s.crawler.Crawl(ctx, run)
	run.Finish(err)

	if err == nil {
		return nil
	}
	if len(run.Records) == 0 {
		return err
	}

	s.logger.Warn("crawl ended early, keeping partial records",
		"run", run.ID,
		"records", len(run.Records),
		"quota", run.Quota,
		"error", err,
	)
	return nil
}

// ExportStep writes the run's records to a file in one report format.
type ExportStep struct {
	format string
	dir    string
	name   string
	logger *slog.Logger
}

// ExportStepOption configures an ExportStep.
type ExportStepOption func(*ExportStep)

// WithExportName sets the file name without extension. By default the run's
// start time is used, e.g. 2025-03-01_10-00-00.
func WithExportName(name string) ExportStepOption {
	return func(s *ExportStep) {
		s.name = name
	}
}

// WithExportLogger sets a custom logger for the export step.
func WithExportLogger(logger *slog.Logger) ExportStepOption {
	return func(s *ExportStep) {
		s.logger = logger
	}
}

// NewExportStep creates a step writing format files into dir.
func NewExportStep(format, dir string, opts ...ExportStepOption) *ExportStep {
	s := &ExportStep{
		format: format,
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Path returns the file the run is written to.
func (s *ExportStep) Path(run *model.Run) string {
	name := s.name
	if name == "" {
		name = run.StartedAt.Format("2006-01-02_15-04-05")
	}
	return filepath.Join(s.dir, name+"."+report.Extension(s.format))
}

// Do executes the export step.
func (s *ExportStep) Do(_ context.Context, run *model.Run) (err error) {
	path := s.Path(run)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	w, err := report.New(s.format, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(run); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Info("records exported", "path", path, "records", len(run.Records))
	return nil
}

// PersistStep saves the run to the history store.
type PersistStep struct {
	store RunStore
}

// NewPersistStep creates a step saving runs to store.
func NewPersistStep(store RunStore) *PersistStep {
	return &PersistStep{store: store}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, run *model.Run) error {
	return s.store.SaveRun(ctx, run)
}

// SummaryStep prints a plain-text summary of the run.
type SummaryStep struct {
	writer *report.SimpleWriter
}

// NewSummaryStep creates a step writing the summary to w.
func NewSummaryStep(w io.Writer, verbose bool) *SummaryStep {
	return &SummaryStep{writer: report.NewSimpleWriter(w, report.WithVerbose(verbose))}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do executes the summary step.
func (s *SummaryStep) Do(_ context.Context, run *model.Run) error {
	_, err := s.writer.Write(run)
	return err
}

// DefaultPipelineConfig selects the steps of DefaultPipeline.
type DefaultPipelineConfig struct {
	// Export writes the records to a file; nil disables it.
	Export *ExportStep

	// Store saves the run to the history database; nil disables it.
	Store RunStore

	// Summary receives a text summary; nil disables it.
	Summary io.Writer

	// Verbose lists every record in the summary.
	Verbose bool

	// Logger is passed to the steps that log.
	Logger *slog.Logger
}

// DefaultPipeline builds crawl, export, persist and summary steps in that
// order. The export runs before persisting so a database problem never costs
// the output file.
func DefaultPipeline(c Crawler, cfg DefaultPipelineConfig, opts ...Option) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(append([]Option{WithLogger(logger)}, opts...)...)
	p.AddStep(NewCrawlStep(c, WithCrawlLogger(logger)))
	if cfg.Export != nil {
		p.AddStep(cfg.Export)
	}
	if cfg.Store != nil {
		p.AddStep(NewPersistStep(cfg.Store))
	}
	if cfg.Summary != nil {
		p.AddStep(NewSummaryStep(cfg.Summary, cfg.Verbose))
	}
	return p
}
