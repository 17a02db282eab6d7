// Package model defines the data structures shared across tenderscan.
//
// The main types are:
//   - Summary: the identifier and link read from one listing row
//   - Detail: the fields read from one tender detail page
//   - Branch: one industry link attached to a tender
//   - Record: a Summary merged with its Detail, the unit returned to callers
//   - Run: one crawl invocation together with its records and outcome
//
// Every other package (extract, crawler, database, report, server) works in
// terms of these types, which keeps them free of import cycles.
package model
