// Package main provides the entry point for the tenderscan CLI.
//
// tenderscan crawls tender listings on rostender.info, follows every
// listing row to its detail page and exports the collected tenders.
//
// Usage:
//
//	tenderscan crawl --max 20
//	tenderscan serve --addr :8000
//	tenderscan history
//
// See --help for all available options.
package main

// main is the entry point for tenderscan.
func main() {
	Execute()
}
