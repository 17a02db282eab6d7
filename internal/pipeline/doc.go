// Package pipeline runs a crawl and the work that follows it as an ordered
// list of steps over a single model.Run: crawl, export, persist and summary.
package pipeline
