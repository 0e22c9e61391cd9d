package dom

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/valpere/bilingua/internal"
	"github.com/valpere/bilingua/internal/placeholder"
)

// Injector writes translations into a Document.
type Injector struct {
	doc    *Document
	logger *zap.Logger
}

// NewInjector returns an Injector bound to d.
func NewInjector(d *Document, logger *zap.Logger) *Injector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Injector{doc: d, logger: logger}
}

// InjectBatch injects translations[i] for units[i] and returns how many
// nodes were inserted. The whole batch is applied under the document lock.
// If ctx is already done nothing is inserted and ctx.Err() is returned; a
// batch that passed that check completes even if ctx is cancelled meanwhile.
func (in *Injector) InjectBatch(ctx context.Context, units []internal.TranslationUnit, translations []string) (int, error) {
	if len(units) != len(translations) {
		return 0, fmt.Errorf("got %d translations for %d units", len(translations), len(units))
	}

	in.doc.mu.Lock()
	defer in.doc.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	inserted := 0
	for i, u := range units {
		if in.inject(u, translations[i]) {
			inserted++
		}
	}
	return inserted, nil
}

// Inject injects a single translation.
func (in *Injector) Inject(u internal.TranslationUnit, translated string) bool {
	in.doc.mu.Lock()
	defer in.doc.mu.Unlock()
	return in.inject(u, translated)
}

// Release clears the InFlight mark of units that never got a translation
// and returns how many marks were cleared. Releasing a unit twice is a
// no-op.
func (in *Injector) Release(units []internal.TranslationUnit) int {
	in.doc.mu.Lock()
	defer in.doc.mu.Unlock()

	released := 0
	for _, u := range units {
		if in.doc.tracker.Clear(u.Node, InFlight) {
			released++
		}
	}
	return released
}

// inject places one translation next to or inside its source. Caller holds
// the document lock.
func (in *Injector) inject(u internal.TranslationUnit, translated string) bool {
	tr := in.doc.tracker
	n := u.Node
	tr.Clear(n, InFlight)

	if !attached(n) {
		in.logger.Debug("skipping detached node", zap.String("tag", n.Data))
		return false
	}

	translated = strings.TrimSpace(translated)
	if lost := placeholder.Missing(translated, u.Placeholders); len(lost) > 0 {
		in.logger.Debug("translation dropped placeholders",
			zap.String("tag", n.Data), zap.Ints("tokens", lost))
	}
	markup := placeholder.Decode(translated, u.Placeholders)

	var target *html.Node
	switch u.Kind {
	case internal.KindCell:
		if tr.descendantInjected(n) {
			in.markProcessed(n)
			return false
		}
		target = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
		setAttr(target, "class", ClassTranslated)
	default:
		if next := nextElement(n); next != nil && tr.Has(next, Injected) {
			in.markProcessed(n)
			return false
		}
		target = &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom, Namespace: n.Namespace}
		if cls, ok := getAttr(n, "class"); ok {
			setAttr(target, "class", cls)
		}
		addClass(target, ClassTranslated)
	}

	if err := appendMarkup(target, markup); err != nil {
		in.logger.Warn("failed to parse translated markup, inserting as text",
			zap.String("tag", n.Data), zap.Error(err))
		target.AppendChild(&html.Node{Type: html.TextNode, Data: translated})
	}

	if u.Kind == internal.KindCell {
		n.AppendChild(target)
	} else {
		n.Parent.InsertBefore(target, n.NextSibling)
	}
	tr.Set(target, Injected)
	in.markProcessed(n)
	return true
}

func (in *Injector) markProcessed(n *html.Node) {
	in.doc.tracker.Set(n, Processed)
	addClass(n, ClassSource)
}

// appendMarkup parses markup in the context of parent and appends the
// resulting nodes to it.
func appendMarkup(parent *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return err
	}
	for _, c := range nodes {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		parent.AppendChild(c)
	}
	return nil
}
