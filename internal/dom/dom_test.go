package dom_test

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/valpere/bilingua/internal"
	"github.com/valpere/bilingua/internal/dom"
)

func mustParse(t *testing.T, s string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func mustSelector(t *testing.T, opts dom.SelectorOptions) *dom.Selector {
	t.Helper()
	s, err := dom.NewSelector(opts, nil)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	return s
}

func TestSelectAndInject_SingleParagraph(t *testing.T) {
	d := mustParse(t, "<html><body><p>Hello world, this is a test.</p></body></html>")
	units := mustSelector(t, dom.SelectorOptions{}).Select(d)

	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].RawText != "Hello world, this is a test." {
		t.Errorf("unexpected text %q", units[0].RawText)
	}
	if units[0].Kind != internal.KindBlock {
		t.Errorf("expected block unit, got %s", units[0].Kind)
	}
	if !d.Tracker().Has(units[0].Node, dom.InFlight) {
		t.Error("selected node should be in flight")
	}

	inj := dom.NewInjector(d, nil)
	n, err := inj.InjectBatch(context.Background(), units, []string{"你好世界，这是一个测试。"})
	if err != nil {
		t.Fatalf("InjectBatch: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 insertion, got %d", n)
	}

	out := d.String()
	want := `<p class="bilingua-source">Hello world, this is a test.</p><p class="bilingua-translated">你好世界，这是一个测试。</p>`
	if !strings.Contains(out, want) {
		t.Errorf("expected %q in output:\n%s", want, out)
	}
	if d.Tracker().Count(dom.InFlight) != 0 {
		t.Error("in-flight marker should be cleared after injection")
	}
}

func TestInject_RestoresPlaceholders(t *testing.T) {
	d := mustParse(t, "<p>Click <strong>here</strong> now</p>")
	units := mustSelector(t, dom.SelectorOptions{MinChars: 1}).Select(d)
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].RawText != "Click {{0}} now" {
		t.Fatalf("unexpected text %q", units[0].RawText)
	}

	dom.NewInjector(d, nil).Inject(units[0], "点击 {{0}} 现在")

	want := `<p class="bilingua-translated">点击 <strong>here</strong> 现在</p>`
	if out := d.String(); !strings.Contains(out, want) {
		t.Errorf("expected %q in output:\n%s", want, out)
	}
}

func TestInject_Idempotent(t *testing.T) {
	d := mustParse(t, "<p class=\"lead\">A paragraph long enough to translate.</p>")
	units := mustSelector(t, dom.SelectorOptions{}).Select(d)
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}

	inj := dom.NewInjector(d, nil)
	if !inj.Inject(units[0], "first") {
		t.Fatal("first injection should insert")
	}
	if inj.Inject(units[0], "second") {
		t.Error("second injection should be skipped")
	}

	out := d.String()
	if c := strings.Count(out, dom.ClassTranslated); c != 1 {
		t.Errorf("expected exactly one translated node, got %d:\n%s", c, out)
	}
	if !strings.Contains(out, `class="lead bilingua-translated"`) {
		t.Errorf("translated sibling should copy the source class:\n%s", out)
	}
	if strings.Contains(out, "second") {
		t.Error("second translation leaked into output")
	}
}

func TestInject_TableCellContainment(t *testing.T) {
	d := mustParse(t, "<table><tr><td>First cell content here</td><th>Header cell content</th></tr></table>")
	units := mustSelector(t, dom.SelectorOptions{}).Select(d)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	for _, u := range units {
		if u.Kind != internal.KindCell {
			t.Errorf("expected cell unit for <%s>", u.Node.Data)
		}
	}

	row := units[0].Node.Parent
	cellsBefore := countElements(row)

	if _, err := dom.NewInjector(d, nil).InjectBatch(context.Background(), units, []string{"单元一", "表头"}); err != nil {
		t.Fatalf("InjectBatch: %v", err)
	}

	if got := countElements(row); got != cellsBefore {
		t.Errorf("row gained siblings: %d cells before, %d after", cellsBefore, got)
	}
	for _, u := range units {
		last := u.Node.LastChild
		if last == nil || last.Data != "div" || !d.Tracker().Has(last, dom.Injected) {
			t.Errorf("<%s> should end with an injected div", u.Node.Data)
		}
	}
}

func TestSelect_NoDoubleSelection(t *testing.T) {
	d := mustParse(t, "<ul><li><p>Nested paragraph text here</p></li></ul><p>Another standalone paragraph</p>")
	sel := mustSelector(t, dom.SelectorOptions{})

	first := sel.Select(d)
	if len(first) != 2 {
		t.Fatalf("expected 2 units (outer li and standalone p), got %d", len(first))
	}
	if first[0].Node.Data != "li" {
		t.Errorf("outer block should win, got <%s>", first[0].Node.Data)
	}
	if second := sel.Select(d); len(second) != 0 {
		t.Errorf("in-flight nodes selected again: %d units", len(second))
	}
}

func TestSelect_SkipRegions(t *testing.T) {
	d := mustParse(t, `<body>
<nav><p>Navigation paragraph text</p></nav>
<footer><p>Footer paragraph text here</p></footer>
<div class="notranslate"><p>Explicitly excluded text</p></div>
<p translate="no">Also excluded by attribute</p>
<div class="source-viewer"><p>Rendered source viewer line</p></div>
<p>Too short</p>
<p>This one should be translated.</p>
</body>`)
	units := mustSelector(t, dom.SelectorOptions{SkipSelectors: []string{".source-viewer"}}).Select(d)

	if len(units) != 1 {
		for _, u := range units {
			t.Logf("selected: %q", u.RawText)
		}
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].RawText != "This one should be translated." {
		t.Errorf("unexpected unit %q", units[0].RawText)
	}
}

func TestNewSelector_InvalidSkipSelector(t *testing.T) {
	if _, err := dom.NewSelector(dom.SelectorOptions{SkipSelectors: []string{"[[["}}, nil); err == nil {
		t.Error("expected error for invalid selector")
	}
}

func TestRelease_AllowsReselection(t *testing.T) {
	d := mustParse(t, "<p>Paragraph waiting for a translation.</p>")
	sel := mustSelector(t, dom.SelectorOptions{})
	units := sel.Select(d)

	inj := dom.NewInjector(d, nil)
	if n := inj.Release(units); n != 1 {
		t.Errorf("expected 1 released marker, got %d", n)
	}
	if n := inj.Release(units); n != 0 {
		t.Errorf("second release should be a no-op, got %d", n)
	}
	if again := sel.Select(d); len(again) != 1 {
		t.Errorf("released node should be selectable again, got %d units", len(again))
	}
}

func TestInjectBatch_CancelledInsertsNothing(t *testing.T) {
	d := mustParse(t, "<p>Paragraph waiting for a translation.</p>")
	units := mustSelector(t, dom.SelectorOptions{}).Select(d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := dom.NewInjector(d, nil).InjectBatch(ctx, units, []string{"翻译"})
	if err == nil {
		t.Error("expected context error")
	}
	if n != 0 || strings.Contains(d.String(), dom.ClassTranslated) {
		t.Error("nothing should be inserted after cancellation")
	}
}

func TestInjectBatch_CountMismatch(t *testing.T) {
	d := mustParse(t, "<p>Paragraph waiting for a translation.</p>")
	units := mustSelector(t, dom.SelectorOptions{}).Select(d)
	if _, err := dom.NewInjector(d, nil).InjectBatch(context.Background(), units, nil); err == nil {
		t.Error("expected mismatch error")
	}
}

func TestParse_AdoptsPreviousOutput(t *testing.T) {
	d := mustParse(t, "<p>A paragraph long enough to translate.</p><li>List item long enough too</li>")
	units := mustSelector(t, dom.SelectorOptions{}).Select(d)
	if _, err := dom.NewInjector(d, nil).InjectBatch(context.Background(), units, []string{"一", "二"}); err != nil {
		t.Fatalf("InjectBatch: %v", err)
	}

	again := mustParse(t, d.String())
	if n := again.Tracker().Count(dom.Processed); n != 2 {
		t.Errorf("expected 2 processed nodes after adopt, got %d", n)
	}
	if units := mustSelector(t, dom.SelectorOptions{}).Select(again); len(units) != 0 {
		t.Errorf("bilingual output should not be translated again, got %d units", len(units))
	}
}

func countElements(n *html.Node) int {
	c := 0
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode {
			c++
		}
	}
	return c
}
