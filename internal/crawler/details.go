package crawler

import (
	"context"
	"sync/atomic"

	"github.com/nao1215/tenderscan/internal/extract"
	"github.com/nao1215/tenderscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// Row outcomes of one detail pool run.
const (
	rowPending int32 = iota // not started, or lost to cancellation
	rowDone
	rowSkipped
)

// fetchDetails fetches the detail page of every summary and merges the
// results in row order.
//
// A detail page that cannot be fetched costs only its own row. ctx is
// checked before each fetch is started. On cancellation only the rows up to
// the first row lost to the cancellation are returned, together with
// ctx.Err(), so a parallel crawl never returns a later row without the
// earlier ones a sequential crawl would have produced first.
func (d *Driver) fetchDetails(ctx context.Context, summaries []model.Summary, stats *crawlStats) ([]model.Record, error) {
	// Each goroutine writes only its own index, so no lock is needed.
	results := make([]model.Record, len(summaries))
	outcome := make([]int32, len(summaries))
	var skipped atomic.Int64

	// A plain Group: one failing row must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, summary := range summaries {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			rec, err := d.fetchDetail(ctx, summary)
			if err != nil {
				if ctx.Err() == nil {
					outcome[i] = rowSkipped
					skipped.Add(1)
					d.logger.Warn("detail page skipped",
						"id", summary.ID,
						"link", summary.Link,
						"error", err,
					)
				}
				return nil
			}

			results[i] = rec
			outcome[i] = rowDone
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	stats.skipped += int(skipped.Load())

	cancelled := ctx.Err()
	records := make([]model.Record, 0, len(results))
	for i, rec := range results {
		switch outcome[i] {
		case rowDone:
			records = append(records, rec)
		case rowPending:
			if cancelled != nil {
				return records, cancelled
			}
		}
	}
	return records, cancelled
}

// fetchDetail fetches one detail page and merges it with its summary.
func (d *Driver) fetchDetail(ctx context.Context, summary model.Summary) (model.Record, error) {
	detailURL := d.DetailURL(summary.Link)

	markup, err := d.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return model.Record{}, err
	}

	doc, err := extract.ParseBytes(markup)
	if err != nil {
		return model.Record{}, err
	}

	detail, problems := d.detail.Extract(doc)
	for _, p := range problems {
		d.logger.Debug("field skipped", "url", detailURL, "error", p)
	}

	return model.Merge(summary, detail), nil
}
