// Package server exposes the crawler as a small JSON HTTP API.
//
// Routes:
//
//	GET /                      health probe, {"message":"test"}
//	GET /endpoint/tenders?max=N  crawl up to N tenders and return them
//	GET /endpoint/runs?limit=N   recent runs from the history database
//	GET /endpoint/runs/{id}      one stored run with its records
//
// Every tenders request starts its own crawl. When the crawl stops early
// the records gathered so far are still returned, and the error text is
// sent in the X-Crawl-Error header.
package server
