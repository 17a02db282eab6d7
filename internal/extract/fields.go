package extract

import (
	"strings"

	"github.com/nao1215/tenderscan/internal/model"
)

// Tag identifies a detail-page field.
type Tag int

const (
	// TagPrice is the starting price.
	TagPrice Tag = iota + 1

	// TagEndDate is the closing time (Moscow time on the source site).
	TagEndDate

	// TagSecuringTheApplication is the application security amount.
	TagSecuringTheApplication

	// TagBranches is the industries list. It is structural: its value is a
	// list of anchors, not a text.
	TagBranches
)

// String returns the field name used in JSON and CSV output.
func (t Tag) String() string {
	switch t {
	case TagPrice:
		return "price"
	case TagEndDate:
		return "end_date"
	case TagSecuringTheApplication:
		return "securing_the_application"
	case TagBranches:
		return "branches"
	default:
		return "unknown"
	}
}

// assign stores a normalized scalar value on d. Structural tags are ignored.
func (t Tag) assign(d *model.Detail, value string) {
	switch t {
	case TagPrice:
		d.Price = model.StringPtr(value)
	case TagEndDate:
		d.EndDate = model.StringPtr(value)
	case TagSecuringTheApplication:
		d.SecuringTheApplication = model.StringPtr(value)
	case TagBranches:
	}
}

// FieldSpec binds a label, as printed on the detail page, to a field tag
// and the normalization applied to the field's text.
type FieldSpec struct {
	// Label is the exact label text.
	Label string

	// Tag is the field the label fills.
	Tag Tag

	// Normalize converts the raw value text. It is nil for structural fields.
	Normalize func(string) string
}

// Structural reports whether the field is built from markup structure
// rather than from a text value.
func (f FieldSpec) Structural() bool {
	return f.Normalize == nil
}

// fieldTable lists every recognized label. Labels not listed here are ignored.
var fieldTable = []FieldSpec{
	{Label: "Начальная цена", Tag: TagPrice, Normalize: normalizePrice},
	{Label: "Окончание (МСК)", Tag: TagEndDate, Normalize: normalizeEndDate},
	{Label: "Обеспечение заявки", Tag: TagSecuringTheApplication, Normalize: strings.TrimSpace},
	{Label: "Отрасли", Tag: TagBranches},
}

var fieldsByLabel = indexFields(fieldTable)

func indexFields(specs []FieldSpec) map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(specs))
	for _, spec := range specs {
		m[spec.Label] = spec
	}
	return m
}

// Lookup returns the field spec for a label.
//
// Matching is intentionally more lenient than an exact comparison of the
// label text: surrounding whitespace, which the site's markup puts around
// labels through indentation, is trimmed first. Case, inner spacing and
// punctuation must still match exactly.
func Lookup(label string) (FieldSpec, bool) {
	spec, ok := fieldsByLabel[strings.TrimSpace(label)]
	return spec, ok
}

// Fields returns a copy of the field table in declaration order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fieldTable))
	copy(out, fieldTable)
	return out
}

var dashRemover = strings.NewReplacer(
	"-", "",
	"\u2010", "",
	"\u2011", "",
	"\u2012", "",
	"\u2013", "",
	"\u2014", "",
)

// normalizePrice drops dash characters and the whitespace around them.
// The site prints an open price range as "1 000 000 - ".
func normalizePrice(s string) string {
	return strings.TrimSpace(dashRemover.Replace(strings.TrimSpace(s)))
}

var nbspReplacer = strings.NewReplacer(
	"\u00a0", " ",
	"\u202f", " ",
)

// normalizeEndDate replaces non-breaking spaces with ordinary ones.
func normalizeEndDate(s string) string {
	return nbspReplacer.Replace(strings.TrimSpace(s))
}
