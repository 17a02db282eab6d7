package extract

import (
	"errors"
	"fmt"
)

// ErrStructure is matched by every StructuralParseError via errors.Is.
var ErrStructure = errors.New("required page structure missing")

// StructuralParseError reports that a listing page lacks an element the
// crawl cannot do without: the row container or a row's detail link.
type StructuralParseError struct {
	// Selector is the CSS selector that matched nothing.
	Selector string

	// Row is the zero-based row index, or -1 when the container itself is missing.
	Row int
}

// Error implements the error interface.
func (e *StructuralParseError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("listing page: %s not found", e.Selector)
	}
	return fmt.Sprintf("listing page: row %d: %s not found", e.Row, e.Selector)
}

// Is makes errors.Is(err, ErrStructure) true.
func (e *StructuralParseError) Is(target error) bool {
	return target == ErrStructure
}

// FieldParseError reports a labeled block on a detail page whose value
// could not be read. The field is left out of the detail; it never aborts
// extraction.
type FieldParseError struct {
	// Label is the label text of the block.
	Label string

	// Tag is the field the label maps to.
	Tag Tag

	// Reason says what was missing.
	Reason string
}

// Error implements the error interface.
func (e *FieldParseError) Error() string {
	return fmt.Sprintf("field %s (%q): %s", e.Tag, e.Label, e.Reason)
}
