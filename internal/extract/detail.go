package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/tenderscan/internal/model"
)

// Detail page selectors.
const (
	DetailTitleSelector  = ".tender-header__title h1"
	DetailColumnSelector = ".tender-body__col"
	DetailBlockSelector  = ".tender-body__block"
	DetailLabelSelector  = ".tender-body__label"
	DetailValueSelector  = ".tender-body__field"

	// The industries column is the full-width column in last position.
	fullWidthColumnClass = "tender-body__col--full"
	lastColumnClass      = "last"
)

// titlePattern strips the fixed "Тендер: " prefix from the page title.
var titlePattern = regexp.MustCompile(`Тендер: (.*)`)

// DetailExtractor reads the labeled blocks of a tender detail page.
type DetailExtractor struct{}

// NewDetailExtractor creates a DetailExtractor.
func NewDetailExtractor() *DetailExtractor {
	return &DetailExtractor{}
}

// Extract builds a Detail from a detail page.
//
// Extract never fails as a whole. Fields the page does not carry are left
// unset. Blocks that carry a known label but no readable value are skipped
// and reported in the returned slice so the caller can log them.
func (e *DetailExtractor) Extract(doc *goquery.Document) (model.Detail, []*FieldParseError) {
	detail := model.Detail{Name: title(doc)}
	var problems []*FieldParseError

	doc.Find(DetailColumnSelector).Each(func(_ int, col *goquery.Selection) {
		if isBranchesColumn(col) {
			problems = append(problems, extractBranches(col, &detail)...)
			return
		}
		problems = append(problems, extractFields(col, &detail)...)
	})

	return detail, problems
}

// title returns the tender name, or "" when the title block is missing or
// does not carry the expected prefix.
func title(doc *goquery.Document) string {
	h1 := doc.Find(DetailTitleSelector).First()
	if h1.Length() == 0 {
		return ""
	}
	m := titlePattern.FindStringSubmatch(strings.TrimSpace(h1.Text()))
	if m == nil {
		return ""
	}
	return m[1]
}

func isBranchesColumn(col *goquery.Selection) bool {
	return col.HasClass(fullWidthColumnClass) && col.HasClass(lastColumnClass)
}

// extractFields handles a column of labeled blocks.
func extractFields(col *goquery.Selection, detail *model.Detail) []*FieldParseError {
	var problems []*FieldParseError

	col.Find(DetailBlockSelector).Each(func(_ int, block *goquery.Selection) {
		label := block.Find(DetailLabelSelector).First()
		if label.Length() == 0 {
			return
		}

		spec, ok := Lookup(label.Text())
		if !ok || spec.Structural() {
			return
		}

		value := block.Find(DetailValueSelector).First()
		if value.Length() == 0 {
			problems = append(problems, &FieldParseError{
				Label:  spec.Label,
				Tag:    spec.Tag,
				Reason: DetailValueSelector + " not found",
			})
			return
		}

		spec.Tag.assign(detail, spec.Normalize(valueText(value)))
	})

	return problems
}

// valueText returns the text of a value element, falling back to its first
// nested span when the element has no text of its own.
func valueText(value *goquery.Selection) string {
	text := value.Text()
	if strings.TrimSpace(text) != "" {
		return text
	}
	return value.Find("span").First().Text()
}

// extractBranches handles the industries column. Every anchor inside a list
// becomes a Branch, in document order.
func extractBranches(col *goquery.Selection, detail *model.Detail) []*FieldParseError {
	var problems []*FieldParseError

	col.Find(DetailBlockSelector).Each(func(_ int, block *goquery.Selection) {
		list := block.Find("ul").First()
		if list.Length() == 0 {
			return
		}
		if detail.Branches == nil {
			detail.Branches = make([]model.Branch, 0)
		}

		list.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				problems = append(problems, &FieldParseError{
					Label:  strings.TrimSpace(a.Text()),
					Tag:    TagBranches,
					Reason: "anchor without href",
				})
				return
			}
			detail.Branches = append(detail.Branches, model.Branch{
				Link: href,
				Name: a.AttrOr("title", ""),
			})
		})
	})

	return problems
}
