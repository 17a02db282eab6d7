package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/tenderscan/internal/extract"
)

const testBaseURL = "https://tenders.test"

// fakeSite serves generated listing and detail pages from memory.
type fakeSite struct {
	mu        sync.Mutex
	pages     map[string]string
	failing   map[string]bool
	requested []string

	// jitter adds a random delay to detail fetches.
	jitter bool

	// onFetch runs before every fetch, outside the lock.
	onFetch func(url string)
}

// newFakeSite builds a site whose listing page p (starting at 1) has
// rowsPerPage[p-1] rows. Row i of page p has id p*100+i.
func newFakeSite(rowsPerPage ...int) *fakeSite {
	s := &fakeSite{pages: make(map[string]string), failing: make(map[string]bool)}

	for p, rows := range rowsPerPage {
		page := p + 1
		var b strings.Builder
		b.WriteString(`<html><body><div id="table-constructor-body">`)
		for i := 1; i <= rows; i++ {
			id := page*100 + i
			fmt.Fprintf(&b, `<div class="tender-row"><span class="tender__number">Тендер №%d</span>`+
				`<a class="tender-info__link" href="/tender/%d">t</a></div>`, id, id)
			s.pages[fmt.Sprintf("%s/tender/%d", testBaseURL, id)] = detailMarkup(id)
		}
		b.WriteString(`</div></body></html>`)
		s.pages[fmt.Sprintf("%s/extsearch?page=%d", testBaseURL, page)] = b.String()
	}
	return s
}

func detailMarkup(id int) string {
	return fmt.Sprintf(`<html><body>
		<div class="tender-header__title"><h1>Тендер: Tender %d</h1></div>
		<div class="tender-body__col">
			<div class="tender-body__block"><div class="tender-body__label">Начальная цена</div>
			<div class="tender-body__field">%d 000 - </div></div>
		</div>
		<div class="tender-body__col tender-body__col--full last"><div class="tender-body__block">
			<ul><li><a href="/branch/1" title="Construction">c</a></li></ul>
		</div></div>
	</body></html>`, id, id)
}

func (s *fakeSite) Fetch(_ context.Context, url string) ([]byte, error) {
	if s.onFetch != nil {
		s.onFetch(url)
	}
	if s.jitter && strings.Contains(url, "/tender/") {
		time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requested = append(s.requested, url)
	if s.failing[url] {
		return nil, &FetchError{URL: url, StatusCode: 500}
	}
	markup, ok := s.pages[url]
	if !ok {
		return nil, &FetchError{URL: url, StatusCode: 404}
	}
	return []byte(markup), nil
}

func (s *fakeSite) requests(substr string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, u := range s.requested {
		if strings.Contains(u, substr) {
			out = append(out, u)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDriver(site Fetcher, start, last int, opts ...DriverOption) *Driver {
	base := []DriverOption{
		WithBaseURL(testBaseURL + "/"),
		WithPageRange(start, last),
		WithConcurrency(1),
		WithDriverLogger(discardLogger()),
	}
	return NewDriver(site, append(base, opts...)...)
}

// TestGetTendersQuota verifies the result never exceeds the quota.
func TestGetTendersQuota(t *testing.T) {
	t.Parallel()

	for _, quota := range []int{0, 1, 2, 3, 4, 7, 9, 10, 100} {
		t.Run(fmt.Sprintf("quota %d", quota), func(t *testing.T) {
			t.Parallel()

			site := newFakeSite(3, 3, 3)
			records, err := newTestDriver(site, 1, 4).GetTenders(context.Background(), quota)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want := min(quota, 9)
			if len(records) != want {
				t.Errorf("expected %d records, got %d", want, len(records))
			}
			if len(records) > quota {
				t.Errorf("quota %d exceeded: %d records", quota, len(records))
			}
			if details := site.requests("/tender/"); len(details) != len(records) {
				t.Errorf("fetched %d detail pages for %d records", len(details), len(records))
			}
		})
	}
}

// TestGetTendersPageRange tests page-bound handling.
func TestGetTendersPageRange(t *testing.T) {
	t.Parallel()

	t.Run("exhausted pages return all rows without error", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(2, 1)
		records, err := newTestDriver(site, 1, 3).GetTenders(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("expected 3 records, got %d", len(records))
		}
	})

	t.Run("listing url follows the current page", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(1, 1, 1)
		if _, err := newTestDriver(site, 1, 4).GetTenders(context.Background(), 3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		listings := site.requests("/extsearch")
		want := []string{
			testBaseURL + "/extsearch?page=1",
			testBaseURL + "/extsearch?page=2",
			testBaseURL + "/extsearch?page=3",
		}
		if strings.Join(listings, ",") != strings.Join(want, ",") {
			t.Errorf("listing requests = %v, want %v", listings, want)
		}
	})

	t.Run("start page is honored", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(1, 1, 1)
		records, err := newTestDriver(site, 2, 4).GetTenders(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 2 || records[0].ID != "201" {
			t.Errorf("unexpected records %+v", records)
		}
	})

	t.Run("empty range makes no requests", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(1)
		records, err := newTestDriver(site, 5, 5).GetTenders(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 0 || len(site.requests("")) != 0 {
			t.Errorf("expected no work, got %d records and %v", len(records), site.requests(""))
		}
	})

	t.Run("quota met stops before the next page", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(5, 5)
		if _, err := newTestDriver(site, 1, 3).GetTenders(context.Background(), 3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(site.requests("/extsearch")); n != 1 {
			t.Errorf("expected 1 listing request, got %d", n)
		}
		if n := len(site.requests("/tender/")); n != 3 {
			t.Errorf("expected 3 detail requests, got %d", n)
		}
	})

	t.Run("remaining quota is pushed to the next page", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(2, 5)
		records, err := newTestDriver(site, 1, 3).GetTenders(context.Background(), 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		if strings.Join(ids, ",") != "101,102,201,202" {
			t.Errorf("unexpected ids %v", ids)
		}
	})
}

// TestGetTendersRecords verifies merged record content.
func TestGetTendersRecords(t *testing.T) {
	t.Parallel()

	site := newFakeSite(1)
	records, err := newTestDriver(site, 1, 2).GetTenders(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.ID != "101" || rec.Link != "/tender/101" {
		t.Errorf("summary fields wrong: %+v", rec.Summary)
	}
	if rec.Name != "Tender 101" {
		t.Errorf("name = %q", rec.Name)
	}
	if rec.Price == nil || *rec.Price != "101 000" {
		t.Errorf("price = %v", rec.Price)
	}
	if len(rec.Branches) != 1 || rec.Branches[0].Name != "Construction" {
		t.Errorf("branches = %+v", rec.Branches)
	}
}

// TestGetTendersErrors tests the error policy.
func TestGetTendersErrors(t *testing.T) {
	t.Parallel()

	t.Run("detail fetch error skips only that row", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(3)
		site.failing[testBaseURL+"/tender/102"] = true

		d := newTestDriver(site, 1, 2)
		run := d.Run(context.Background(), 3)
		if run.Err != nil {
			t.Fatalf("unexpected error: %v", run.Err)
		}
		if len(run.Records) != 2 || run.Records[0].ID != "101" || run.Records[1].ID != "103" {
			t.Errorf("unexpected records %+v", run.Records)
		}
		if run.SkippedRows != 1 {
			t.Errorf("expected 1 skipped row, got %d", run.SkippedRows)
		}
		if run.PagesVisited != 1 {
			t.Errorf("expected 1 page visited, got %d", run.PagesVisited)
		}
	})

	t.Run("listing fetch error returns partial records", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(2, 2, 2)
		site.failing[testBaseURL+"/extsearch?page=2"] = true

		records, err := newTestDriver(site, 1, 4).GetTenders(context.Background(), 10)
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
		var fe *FetchError
		if !errors.As(err, &fe) || fe.StatusCode != 500 {
			t.Errorf("expected FetchError with status 500, got %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 partial records, got %d", len(records))
		}
		if n := len(site.requests("page=3")); n != 0 {
			t.Error("crawl continued after a fatal listing error")
		}
	})

	t.Run("structural error returns partial records", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(1, 1)
		site.pages[testBaseURL+"/extsearch?page=2"] = `<html><body>maintenance</body></html>`

		records, err := newTestDriver(site, 1, 3).GetTenders(context.Background(), 10)
		if !errors.Is(err, extract.ErrStructure) {
			t.Fatalf("expected ErrStructure, got %v", err)
		}
		if !strings.Contains(err.Error(), "page=2") {
			t.Errorf("error should name the page: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("expected 1 partial record, got %d", len(records))
		}
	})

	t.Run("negative quota is rejected", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(1)
		_, err := newTestDriver(site, 1, 2).GetTenders(context.Background(), -1)
		if !errors.Is(err, ErrInvalidQuota) {
			t.Errorf("expected ErrInvalidQuota, got %v", err)
		}
		if len(site.requests("")) != 0 {
			t.Error("no request expected for an invalid quota")
		}
	})
}

// TestGetTendersConcurrency verifies the pool keeps row order.
func TestGetTendersConcurrency(t *testing.T) {
	t.Parallel()

	site := newFakeSite(8, 8)
	site.jitter = true

	records, err := newTestDriver(site, 1, 3, WithConcurrency(4)).GetTenders(context.Background(), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 12 {
		t.Fatalf("expected 12 records, got %d", len(records))
	}

	for i, rec := range records {
		page, row := 1+i/8, 1+i%8
		want := fmt.Sprint(page*100 + row)
		if rec.ID != want {
			t.Errorf("position %d: got id %s, want %s", i, rec.ID, want)
		}
	}
}

// TestGetTendersCancellation verifies cancelled crawls return partial results.
func TestGetTendersCancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancel between detail fetches", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		site := newFakeSite(5, 5)
		var details int
		var mu sync.Mutex
		site.onFetch = func(url string) {
			if strings.Contains(url, "/tender/") {
				mu.Lock()
				details++
				if details == 2 {
					cancel()
				}
				mu.Unlock()
			}
		}

		records, err := newTestDriver(site, 1, 3).GetTenders(ctx, 10)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records before cancellation, got %d", len(records))
		}
		if n := len(site.requests("page=2")); n != 0 {
			t.Error("next page fetched after cancellation")
		}
	})

	t.Run("parallel rows after a cancelled row are dropped", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		site := newFakeSite(3)
		fetcher := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
			switch {
			case strings.HasSuffix(url, "/tender/101"):
				<-ctx.Done()
				return nil, &FetchError{URL: url, Err: ctx.Err()}
			case strings.HasSuffix(url, "/tender/102"):
				time.AfterFunc(20*time.Millisecond, cancel)
			}
			return site.Fetch(ctx, url)
		})

		records, err := newTestDriver(fetcher, 1, 2, WithConcurrency(3)).GetTenders(ctx, 3)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(records) != 0 && records[0].ID != "101" {
			ids := make([]string, 0, len(records))
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
			t.Errorf("result must be a prefix of the sequential order, got %v", ids)
		}
	})

	t.Run("skipped rows do not cut the result on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		site := newFakeSite(3)
		site.failing[testBaseURL+"/tender/101"] = true
		fetcher := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
			body, err := site.Fetch(ctx, url)
			if strings.HasSuffix(url, "/tender/102") {
				cancel()
			}
			return body, err
		})

		records, err := newTestDriver(fetcher, 1, 2).GetTenders(ctx, 3)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(records) != 1 || records[0].ID != "102" {
			t.Errorf("expected only row 102, got %+v", records)
		}
	})

	t.Run("already cancelled context does nothing", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		site := newFakeSite(1)
		records, err := newTestDriver(site, 1, 2).GetTenders(ctx, 1)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
	})
}

// TestStateMachine tests the transitions separately.
func TestStateMachine(t *testing.T) {
	t.Parallel()

	d := newTestDriver(newFakeSite(), 3, 5)

	s := d.initial()
	if s.page != 3 || len(s.collected) != 0 {
		t.Fatalf("unexpected initial state %+v", s)
	}
	if d.done(s, 1) {
		t.Error("initial state should not be done")
	}
	if !d.done(s, 0) {
		t.Error("zero quota should be done immediately")
	}

	s = s.advance()
	if s.page != 4 || d.done(s, 1) {
		t.Errorf("page 4 of [3,5) should be running: %+v", s)
	}

	s = s.advance()
	if !d.done(s, 1) {
		t.Error("page 5 of [3,5) should be done")
	}
}

// TestDriverURLs tests URL construction.
func TestDriverURLs(t *testing.T) {
	t.Parallel()

	d := NewDriver(newFakeSite(), WithBaseURL("https://example.com/"))

	if got := d.ListingURL(7); got != "https://example.com/extsearch?page=7" {
		t.Errorf("ListingURL = %q", got)
	}
	if got := d.DetailURL("/tender/1"); got != "https://example.com/tender/1" {
		t.Errorf("DetailURL(relative) = %q", got)
	}
	if got := d.DetailURL("https://other.example/tender/1"); got != "https://other.example/tender/1" {
		t.Errorf("DetailURL(absolute) = %q", got)
	}
	if d.BaseURL() != "https://example.com" {
		t.Errorf("BaseURL = %q", d.BaseURL())
	}
}
