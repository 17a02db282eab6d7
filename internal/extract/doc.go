// Package extract turns parsed tender pages into model values.
//
// It has three parts:
//   - the field table (Lookup), which maps a detail-page label to a field tag
//     and the normalization applied to its value
//   - ListingExtractor, which reads row summaries from a listing page
//   - DetailExtractor, which reads the labeled blocks of a detail page
//
// Extraction works on goquery documents. Parse and ParseNode build them from
// raw markup or from an already parsed golang.org/x/net/html tree. Nothing in
// this package performs I/O beyond reading the supplied markup.
package extract
