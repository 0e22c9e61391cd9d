package dom

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/valpere/bilingua/internal"
	"github.com/valpere/bilingua/internal/placeholder"
)

const (
	// BlockSelector matches the elements that become translation units.
	BlockSelector = "p, li, h1, h2, h3, h4, h5, h6, td, th, blockquote"

	// DefaultMinChars is the shortest encoded text (in runes) worth sending.
	DefaultMinChars = 11
)

// DefaultSkipSelectors are regions whose content is never translated.
var DefaultSkipSelectors = []string{
	"nav", "footer", "pre", "code",
	"script", "style", "noscript", "template",
	"button", "textarea",
	"[translate=no]", ".notranslate",
}

// SelectorOptions tunes unit selection.
type SelectorOptions struct {
	// MinChars drops units shorter than this many runes. Zero means
	// DefaultMinChars.
	MinChars int
	// SkipSelectors are added to DefaultSkipSelectors.
	SkipSelectors []string
}

// Selector extracts translation units from a Document.
type Selector struct {
	minChars int
	skip     string
	logger   *zap.Logger
}

// NewSelector validates the extra skip selectors and returns a Selector.
func NewSelector(opts SelectorOptions, logger *zap.Logger) (*Selector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	skip := append([]string(nil), DefaultSkipSelectors...)
	for _, s := range opts.SkipSelectors {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := cascadia.Compile(s); err != nil {
			return nil, fmt.Errorf("invalid skip selector %q: %w", s, err)
		}
		skip = append(skip, s)
	}
	return &Selector{
		minChars: opts.MinChars,
		skip:     strings.Join(skip, ", "),
		logger:   logger,
	}, nil
}

// Select returns the eligible units of d in document order and marks each
// returned node InFlight. Selection and marking happen under the document
// lock, so two concurrent calls never return the same node.
//
// A block is skipped when it or an ancestor already carries a mark, when it
// sits inside a skip region, when it contains an injected translation, or
// when its encoded text is shorter than MinChars. Because retained nodes are
// marked as the walk proceeds, a block nested in an already selected block
// is never selected twice.
func (s *Selector) Select(d *Document) []internal.TranslationUnit {
	d.mu.Lock()
	defer d.mu.Unlock()

	tr := d.tracker
	var units []internal.TranslationUnit
	skipped := 0

	d.query().Find(BlockSelector).Each(func(_ int, sel *goquery.Selection) {
		n := sel.Get(0)
		if tr.ancestorMarked(n) || sel.Closest(s.skip).Length() > 0 || tr.descendantInjected(n) {
			skipped++
			return
		}
		text, table := placeholder.Encode(n)
		if utf8.RuneCountInString(text) < s.minChars {
			skipped++
			return
		}
		units = append(units, internal.TranslationUnit{
			Node:         n,
			Kind:         kindOf(n),
			RawText:      text,
			Placeholders: table,
		})
		tr.Set(n, InFlight)
	})

	s.logger.Debug("units selected",
		zap.Int("selected", len(units)),
		zap.Int("skipped", skipped))
	return units
}

func kindOf(n *html.Node) internal.UnitKind {
	switch n.DataAtom {
	case atom.Td, atom.Th:
		return internal.KindCell
	default:
		return internal.KindBlock
	}
}
