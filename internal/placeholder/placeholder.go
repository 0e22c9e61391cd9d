// Package placeholder protects inline formatting (code, strong, em, b, i,
// mark) during translation by replacing each formatted span with a numbered
// token ({{0}}, {{1}}, …) that translation backends are asked to keep.
// After translation, Decode substitutes the tokens back with the original
// markup.
//
// Encoding works on a parsed tree rather than on markup text, so tag names
// inside attribute values or comments can never be mistaken for spans.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// inlineSafe lists the spans that travel through translation as tokens.
var inlineSafe = map[atom.Atom]bool{
	atom.Code:   true,
	atom.Strong: true,
	atom.Em:     true,
	atom.B:      true,
	atom.I:      true,
	atom.Mark:   true,
}

// payload subtrees are removed before anything else and never reach the
// backend nor the output.
var payload = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// transparent elements are unwrapped without inserting a word break, so
// "<a>our site</a>." stays "our site." instead of "our site .".
var transparent = map[atom.Atom]bool{
	atom.A:     true,
	atom.Abbr:  true,
	atom.Cite:  true,
	atom.Del:   true,
	atom.Dfn:   true,
	atom.Font:  true,
	atom.Ins:   true,
	atom.Kbd:   true,
	atom.Label: true,
	atom.Q:     true,
	atom.S:     true,
	atom.Samp:  true,
	atom.Small: true,
	atom.Span:  true,
	atom.Sub:   true,
	atom.Sup:   true,
	atom.Time:  true,
	atom.U:     true,
	atom.Var:   true,
}

// Placeholder is one entry of a unit's substitution table.
type Placeholder struct {
	Index          int    `json:"index"`
	OriginalMarkup string `json:"original_markup"`
	InnerText      string `json:"inner_text"`
}

// Table is the ordered substitution table of one unit. Entry i is always
// addressed by the token Token(i).
type Table []Placeholder

// Token returns the textual stand-in for table index i.
func Token(i int) string {
	return "{{" + strconv.Itoa(i) + "}}"
}

// Encode flattens the children of n into plain text, replacing each
// inline-safe span with a token. n itself is never modified: the walk runs
// over a deep copy.
//
// Inline-safe spans are not descended into, so a nested <em> inside a
// <strong> stays part of the <strong> placeholder. Other elements are
// unwrapped; their text is kept. Whitespace runs collapse to a single space.
func Encode(n *html.Node) (string, Table) {
	if n == nil {
		return "", nil
	}
	root := cloneNode(n)
	stripPayload(root)

	var (
		b     strings.Builder
		table Table
	)
	var walk func(*html.Node)
	walk = func(parent *html.Node) {
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				if inlineSafe[c.DataAtom] {
					var markup strings.Builder
					// Rendering into a strings.Builder cannot fail.
					_ = html.Render(&markup, c)
					table = append(table, Placeholder{
						Index:          len(table),
						OriginalMarkup: markup.String(),
						InnerText:      collapse(textContent(c)),
					})
					b.WriteString(Token(len(table) - 1))
					continue
				}
				if transparent[c.DataAtom] {
					walk(c)
					continue
				}
				b.WriteByte(' ')
				walk(c)
				b.WriteByte(' ')
			}
		}
	}
	walk(root)

	return collapse(b.String()), table
}

// EncodeMarkup parses markup as the content of a <div> and encodes it.
func EncodeMarkup(markup string) (string, Table, error) {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), container)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, c := range nodes {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		container.AppendChild(c)
	}
	text, table := Encode(container)
	return text, table, nil
}

var tokenPattern = regexp.MustCompile(`\{\{(\d+)\}\}`)

// Decode turns translated plain text back into markup: the text is escaped
// and the first occurrence of each token is replaced by the span it stands
// for, in a single pass, so restored markup is never rescanned. Tokens the
// backend dropped are not restored; their inline content is lost.
func Decode(translated string, t Table) string {
	spans := make(map[int]string, len(t))
	for _, p := range t {
		spans[p.Index] = p.OriginalMarkup
	}
	used := make(map[int]bool, len(t))
	return tokenPattern.ReplaceAllStringFunc(html.EscapeString(translated), func(tok string) string {
		i, err := strconv.Atoi(tok[2 : len(tok)-2])
		if err != nil || used[i] {
			return tok
		}
		markup, ok := spans[i]
		if !ok {
			return tok
		}
		used[i] = true
		return markup
	})
}

// Missing returns the table indices whose token is absent from translated.
func Missing(translated string, t Table) []int {
	var missing []int
	for _, p := range t {
		if !strings.Contains(translated, Token(p.Index)) {
			missing = append(missing, p.Index)
		}
	}
	return missing
}

// InstructionHint returns a sentence to append to an LLM prompt so the
// model leaves tokens intact.
func InstructionHint() string {
	return "Keep every {{n}} token exactly as written; do not translate, renumber, move or remove them."
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}

func stripPayload(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && payload[c.DataAtom] {
			n.RemoveChild(c)
		} else if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			stripPayload(c)
		}
		c = next
	}
}
