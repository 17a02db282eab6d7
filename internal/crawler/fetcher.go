package crawler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Fetcher retrieves a page and returns its markup as UTF-8.
// Implementations return *FetchError when the page cannot be retrieved.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Default fetcher settings.
const (
	DefaultUserAgent   = "tenderscan/1.0 (+https://github.com/nao1215/tenderscan)"
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// HTTPFetcher fetches pages over HTTP.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	retry       *RetryPolicy
	logger      *slog.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits the size of a response body. A larger body fails
// the fetch with ErrBodyTooLarge.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p *RetryPolicy) FetcherOption {
	return func(f *HTTPFetcher) {
		if p != nil {
			f.retry = p
		}
	}
}

// WithFetcherLogger sets the logger used for retry messages.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates an HTTPFetcher using client.
// A nil client means http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		retry:       NewRetryPolicy(2),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte
	attempt := 0

	err := f.retry.Do(ctx, func(ctx context.Context) error {
		if attempt > 0 {
			f.logger.Debug("retrying fetch", "url", pageURL, "attempt", attempt+1)
		}
		attempt++

		var err error
		body, err = f.fetchOnce(ctx, pageURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// fetchOnce performs a single GET request.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // draining for connection reuse
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	// One byte past the limit tells a page of exactly maxBodySize bytes
	// from a longer one.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(raw)) > f.maxBodySize {
		return nil, &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, f.maxBodySize),
		}
	}

	body, err := io.ReadAll(decodeBody(bytes.NewReader(raw), resp.Header.Get("Content-Type")))
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}

// decodeBody converts the body to UTF-8 based on the Content-Type header,
// a byte order mark or a <meta charset> in the first kilobyte.
// Pages without any charset hint are assumed to be UTF-8.
func decodeBody(r io.Reader, contentType string) io.Reader {
	br := bufio.NewReaderSize(r, 1024)
	peek, _ := br.Peek(1024) //nolint:errcheck // a short page is peeked in full

	enc, name, certain := charset.DetermineEncoding(peek, contentType)
	if name == "utf-8" || (!certain && name == "windows-1252") {
		return br
	}
	return transform.NewReader(br, enc.NewDecoder())
}
