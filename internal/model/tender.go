package model

import "strings"

// Summary is the data read from a single row of a listing page.
type Summary struct {
	// ID holds the digits of the row's display identifier ("№12345" -> "12345").
	// It is empty when the identifier cannot be parsed.
	ID string `json:"id"`

	// Link is the relative URL of the tender's detail page, exactly as it
	// appears in the row's anchor.
	Link string `json:"link"`
}

// Branch is one industry a tender is classified under.
type Branch struct {
	// Link is the anchor URL of the industry.
	Link string `json:"link"`

	// Name is the anchor title of the industry.
	Name string `json:"name"`
}

// Detail holds the fields extracted from a tender detail page.
//
// Optional scalar fields are pointers: nil means the page did not carry the
// field at all, which is different from a field that was present but empty.
type Detail struct {
	// Name is the tender title without its "Тендер: " prefix.
	// It is always present, possibly empty.
	Name string `json:"name"`

	// Price is the starting price with dashes and surrounding whitespace removed.
	Price *string `json:"price,omitempty"`

	// EndDate is the closing time with non-breaking spaces replaced.
	EndDate *string `json:"end_date,omitempty"`

	// SecuringTheApplication is the application security amount as displayed.
	SecuringTheApplication *string `json:"securing_the_application,omitempty"`

	// Branches lists industries in the order they appear in the markup.
	// Nil when the page has no industries block; an industries block with
	// an empty list gives an empty slice, which is encoded as [].
	Branches []Branch `json:"branches,omitzero"`
}

// Record is a Summary merged with its Detail.
// Both halves are embedded so the JSON form is a single flat object.
type Record struct {
	Summary
	Detail
}

// Merge combines a listing summary with the detail read from its page.
// The field sets of the two halves are disjoint, so nothing is overwritten.
func Merge(s Summary, d Detail) Record {
	return Record{Summary: s, Detail: d}
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

// Value returns the pointed-to string, or "" when p is nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// BranchNames returns the industry names joined with sep.
func (d Detail) BranchNames(sep string) string {
	names := make([]string, 0, len(d.Branches))
	for _, b := range d.Branches {
		names = append(names, b.Name)
	}
	return strings.Join(names, sep)
}

// HasField reports whether the field with the given JSON name was extracted.
// The name field is always present.
func (d Detail) HasField(name string) bool {
	switch name {
	case "name":
		return true
	case "price":
		return d.Price != nil
	case "end_date":
		return d.EndDate != nil
	case "securing_the_application":
		return d.SecuringTheApplication != nil
	case "branches":
		return d.Branches != nil
	default:
		return false
	}
}
