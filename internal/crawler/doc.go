// Package crawler drives a tender crawl over a paginated listing site.
//
// Driver walks listing pages in order, pushes the remaining quota down into
// the listing extractor, fetches the detail page of every returned row and
// merges summary and detail into records. Pages are strictly sequential;
// detail pages of one listing page may be fetched by a small bounded pool
// whose results are put back in row order.
//
// Fetching goes through the Fetcher interface. HTTPFetcher is the network
// implementation: it adds request headers, limits body size, decodes
// legacy charsets to UTF-8, retries transient failures and reports
// everything else as *FetchError.
package crawler
