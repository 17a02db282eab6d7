package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/tenderscan/internal/config"
)

// testSite serves listing pages 1..len(rows) where page p has rows[p-1]
// tenders with ids p*100+i. Listing pages in failPages answer 500.
type testSite struct {
	rows      []int
	failPages map[int]bool
	price     func(id int) string
	hits      atomic.Int64
}

func (s *testSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	switch {
	case r.URL.Path == "/extsearch":
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 || page > len(s.rows) {
			http.NotFound(w, r)
			return
		}
		if s.failPages[page] {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		var b strings.Builder
		b.WriteString(`<html><body><div id="table-constructor-body">`)
		for i := 1; i <= s.rows[page-1]; i++ {
			id := page*100 + i
			fmt.Fprintf(&b, `<div class="tender-row"><span class="tender__number">Тендер №%d</span>`+
				`<a class="tender-info__link" href="/tender/%d">t</a></div>`, id, id)
		}
		b.WriteString(`</div></body></html>`)
		_, _ = io.WriteString(w, b.String())

	case strings.HasPrefix(r.URL.Path, "/tender/"):
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/tender/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		price := fmt.Sprintf("%d 000 - ", id)
		if s.price != nil {
			price = s.price(id)
		}
		fmt.Fprintf(w, `<html><body>
			<div class="tender-header__title"><h1>Тендер: Tender %d</h1></div>
			<div class="tender-body__col">
				<div class="tender-body__block"><div class="tender-body__label">Начальная цена</div>
				<div class="tender-body__field">%s</div></div>
			</div>
			<div class="tender-body__col tender-body__col--full last"><div class="tender-body__block">
				<ul><li><a href="/branch/1" title="Строительство">c</a></li></ul>
			</div></div>
		</body></html>`, id, price)

	default:
		http.NotFound(w, r)
	}
}

func newTestSite(t *testing.T, site *testSite) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	return srv
}

// testConfig returns a configuration crawling srvURL into temporary directories.
func testConfig(t *testing.T, srvURL string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.BaseURL = srvURL
	cfg.StartPage = 1
	cfg.LastPage = 4
	cfg.MaxCount = 5
	cfg.Concurrency = 2
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	cfg.OutputDir = t.TempDir()
	cfg.DBDir = t.TempDir()
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
