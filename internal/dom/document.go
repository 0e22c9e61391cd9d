// Package dom selects translatable block units from a parsed HTML tree and
// injects translations back into it. Every read or mutation of the tree
// goes through the Document lock, so selection, injection and marker
// cleanup never interleave.
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML tree together with its marker side-table.
type Document struct {
	mu      sync.Mutex
	root    *html.Node
	tracker *Tracker
}

// Parse reads a complete HTML document from r. Markers left by an earlier
// run (see Tracker.Adopt) are picked up so already translated blocks are
// not selected again.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return NewDocument(root), nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *Document {
	t := NewTracker()
	t.Adopt(root)
	return &Document{root: root, tracker: t}
}

// Root returns the document node. Callers must not mutate the tree while a
// session is running.
func (d *Document) Root() *html.Node {
	return d.root
}

// Tracker returns the marker side-table of the document.
func (d *Document) Tracker() *Tracker {
	return d.tracker
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	return nil
}

// String renders the tree into a string.
func (d *Document) String() string {
	var b strings.Builder
	_ = d.Render(&b)
	return b.String()
}

// Body returns the rendered inner HTML of <body>, or of the whole document
// when it has none.
func (d *Document) Body() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.query().Find("body")
	if sel.Length() == 0 {
		sel = d.query().Selection
	}
	out, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render body: %w", err)
	}
	return out, nil
}

// query wraps the root in a goquery document. Caller holds d.mu.
func (d *Document) query() *goquery.Document {
	return goquery.NewDocumentFromNode(d.root)
}
