package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/tenderscan/internal/model"
)

// Listing page selectors.
const (
	ListingContainerSelector = "#table-constructor-body"
	ListingRowSelector       = ".tender-row"
	ListingNumberSelector    = ".tender__number"
	ListingLinkSelector      = ".tender-info__link"
)

// tenderNumberPattern matches the display identifier, e.g. "№83214567".
var tenderNumberPattern = regexp.MustCompile(`№\d*`)

// ListingExtractor reads row summaries from a listing page.
type ListingExtractor struct{}

// NewListingExtractor creates a ListingExtractor.
func NewListingExtractor() *ListingExtractor {
	return &ListingExtractor{}
}

// Extract returns at most limit summaries in document order.
//
// A missing row container, or a row without a detail link, makes the whole
// page unusable: Extract returns no summaries and a *StructuralParseError.
// A row whose identifier cannot be parsed is kept with an empty ID.
func (e *ListingExtractor) Extract(doc *goquery.Document, limit int) ([]model.Summary, error) {
	container := doc.Find(ListingContainerSelector).First()
	if container.Length() == 0 {
		return nil, &StructuralParseError{Selector: ListingContainerSelector, Row: -1}
	}

	rows := container.Find(ListingRowSelector)
	n := min(max(limit, 0), rows.Length())

	summaries := make([]model.Summary, 0, n)
	for i := range n {
		row := rows.Eq(i)

		link, ok := row.Find(ListingLinkSelector).First().Attr("href")
		if !ok {
			return nil, &StructuralParseError{Selector: ListingLinkSelector, Row: i}
		}

		summaries = append(summaries, model.Summary{
			ID:   tenderID(row.Find(ListingNumberSelector).First().Text()),
			Link: link,
		})
	}

	return summaries, nil
}

// tenderID pulls the digits out of a display identifier.
func tenderID(text string) string {
	token := tenderNumberPattern.FindString(text)
	return strings.ReplaceAll(token, "№", "")
}
