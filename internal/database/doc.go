// Package database stores crawl runs in SQLite (modernc.org/sqlite, no cgo).
//
// Every run is an independent snapshot: its metadata goes to the runs table,
// its records to tenders and their industries to branches. The crawler never
// reads this database; it is consumed by the history and compare commands and
// by the HTTP API.
package database
