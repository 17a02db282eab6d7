package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/tenderscan/internal/extract"
	"github.com/nao1215/tenderscan/internal/model"
)

// Driver defaults.
const (
	DefaultBaseURL     = "https://rostender.info"
	DefaultStartPage   = 1
	DefaultLastPage    = 50
	DefaultConcurrency = 4
)

// listingPath is appended to the base URL to address a listing page.
const listingPath = "/extsearch?page="

// Driver crawls listing pages and their detail pages until a quota of
// records is collected or the page range runs out.
type Driver struct {
	fetcher Fetcher
	listing *extract.ListingExtractor
	detail  *extract.DetailExtractor

	baseURL     string
	startPage   int
	lastPage    int
	concurrency int

	logger *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithBaseURL sets the site root. A trailing slash is dropped.
func WithBaseURL(baseURL string) DriverOption {
	return func(d *Driver) {
		d.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithPageRange sets the first listing page and the exclusive upper bound.
func WithPageRange(start, last int) DriverOption {
	return func(d *Driver) {
		d.startPage = start
		d.lastPage = last
	}
}

// WithConcurrency sets how many detail pages of one listing page are
// fetched at the same time. 1 fetches them one after another.
func WithConcurrency(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithDriverLogger sets the logger.
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver creates a Driver that fetches pages with fetcher.
func NewDriver(fetcher Fetcher, opts ...DriverOption) *Driver {
	d := &Driver{
		fetcher:     fetcher,
		listing:     extract.NewListingExtractor(),
		detail:      extract.NewDetailExtractor(),
		baseURL:     DefaultBaseURL,
		startPage:   DefaultStartPage,
		lastPage:    DefaultLastPage,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// BaseURL returns the site root the driver crawls.
func (d *Driver) BaseURL() string {
	return d.baseURL
}

// GetTenders collects at most quota records.
//
// It returns fewer records when the page range is exhausted first; that is
// not an error. When the crawl stops early (listing page unavailable or
// malformed, ctx cancelled) the records collected so far are returned
// together with the error.
func (d *Driver) GetTenders(ctx context.Context, quota int) ([]model.Record, error) {
	return d.crawl(ctx, quota, &crawlStats{})
}

// Run is GetTenders wrapped in a model.Run with timing and counters.
func (d *Driver) Run(ctx context.Context, quota int) *model.Run {
	run := model.NewRun(d.baseURL, quota)
	run.Finish(d.Crawl(ctx, run))
	return run
}

// Crawl collects up to run.Quota records into run and fills its counters.
// It returns the error that ended the crawl early, if any; finishing the
// run is left to the caller.
func (d *Driver) Crawl(ctx context.Context, run *model.Run) error {
	var stats crawlStats
	records, err := d.crawl(ctx, run.Quota, &stats)
	if records != nil {
		run.Records = records
	}
	run.PagesVisited = stats.pages
	run.SkippedRows = stats.skipped
	return err
}

// crawlStats counts what happened during a crawl.
type crawlStats struct {
	pages   int
	skipped int
}

// crawlState is the Running(page, collected) state of a crawl.
type crawlState struct {
	page      int
	collected []model.Record
}

// initial returns the state a crawl starts in.
func (d *Driver) initial() crawlState {
	return crawlState{page: d.startPage, collected: make([]model.Record, 0)}
}

// done reports whether s is terminal: the page bound is reached or the
// quota is met.
func (d *Driver) done(s crawlState, quota int) bool {
	return s.page >= d.lastPage || len(s.collected) >= quota
}

// advance moves to the next listing page.
func (s crawlState) advance() crawlState {
	s.page++
	return s
}

func (d *Driver) crawl(ctx context.Context, quota int, stats *crawlStats) ([]model.Record, error) {
	if quota < 0 {
		return nil, ErrInvalidQuota
	}

	s := d.initial()
	for !d.done(s, quota) {
		if err := ctx.Err(); err != nil {
			return s.collected, err
		}

		records, err := d.step(ctx, s, quota, stats)
		s.collected = append(s.collected, records...)
		if err != nil {
			return s.collected, err
		}

		s = s.advance()
	}

	d.logger.Info("crawl finished",
		"records", len(s.collected),
		"quota", quota,
		"pages", stats.pages,
		"skipped", stats.skipped,
	)
	return s.collected, nil
}

// step processes the listing page of s and returns its records.
// The listing extractor is asked only for the rows still missing from the
// quota, so no detail page beyond the quota is ever requested.
func (d *Driver) step(ctx context.Context, s crawlState, quota int, stats *crawlStats) ([]model.Record, error) {
	pageURL := d.ListingURL(s.page)

	markup, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("listing page %d: %w", s.page, err)
	}

	doc, err := extract.ParseBytes(markup)
	if err != nil {
		return nil, fmt.Errorf("listing page %d: %w", s.page, err)
	}

	summaries, err := d.listing.Extract(doc, quota-len(s.collected))
	if err != nil {
		return nil, fmt.Errorf("listing page %d (%s): %w", s.page, pageURL, err)
	}
	stats.pages++

	d.logger.Debug("listing page parsed",
		"page", s.page,
		"rows", len(summaries),
		"collected", len(s.collected),
	)

	return d.fetchDetails(ctx, summaries, stats)
}

// ListingURL returns the address of a listing page.
func (d *Driver) ListingURL(page int) string {
	return d.baseURL + listingPath + strconv.Itoa(page)
}

// DetailURL returns the address of a detail page. Relative links are
// appended to the base URL; absolute links are used as they are.
func (d *Driver) DetailURL(link string) string {
	if u, err := url.Parse(link); err == nil && u.IsAbs() {
		return link
	}
	return d.baseURL + link
}
