// Package report writes crawl runs in the supported output formats.
//
//   - CSVWriter: one row per tender, the default export format
//   - JSONWriter: the record array, or the whole run with WithRunMetadata
//   - MarkdownWriter: a readable report with an industries pie chart
//   - SimpleWriter: a plain-text summary for the terminal
//
// All writers implement Writer; New selects one by format name.
package report
