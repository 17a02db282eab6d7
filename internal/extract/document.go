package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse reads markup and returns a queryable document.
// The markup must already be UTF-8; the crawler's fetcher decodes other
// charsets before handing bytes over.
func Parse(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return ParseNode(root), nil
}

// ParseBytes is Parse for an in-memory page.
func ParseBytes(markup []byte) (*goquery.Document, error) {
	return Parse(bytes.NewReader(markup))
}

// ParseNode wraps an already parsed HTML tree.
func ParseNode(root *html.Node) *goquery.Document {
	return goquery.NewDocumentFromNode(root)
}
