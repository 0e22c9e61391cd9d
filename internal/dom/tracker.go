package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// Mark is a set of per-node status bits.
type Mark uint8

const (
	// InFlight is set when a node is selected into a unit and cleared when
	// its translation is injected or the unit is released.
	InFlight Mark = 1 << iota
	// Injected marks nodes created by the injector.
	Injected
	// Processed marks source nodes that already received their translation.
	Processed
)

// Classes written into the output tree. They let a later run recognise a
// bilingual document it produced earlier.
const (
	ClassTranslated = "bilingua-translated"
	ClassSource     = "bilingua-source"
)

// Tracker is the side-table mapping node identity to its marks.
type Tracker struct {
	mu    sync.Mutex
	marks map[*html.Node]Mark
}

// NewTracker returns an empty side-table.
func NewTracker() *Tracker {
	return &Tracker{marks: make(map[*html.Node]Mark)}
}

// Set adds m to the marks of n.
func (t *Tracker) Set(n *html.Node, m Mark) {
	t.mu.Lock()
	t.marks[n] |= m
	t.mu.Unlock()
}

// Clear removes m from the marks of n. It reports whether any of the bits
// were set.
func (t *Tracker) Clear(n *html.Node, m Mark) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.marks[n]
	if !ok || cur&m == 0 {
		return false
	}
	cur &^= m
	if cur == 0 {
		delete(t.marks, n)
	} else {
		t.marks[n] = cur
	}
	return true
}

// Has reports whether n carries every bit of m.
func (t *Tracker) Has(n *html.Node, m Mark) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marks[n]&m == m
}

// Marked reports whether n carries any mark at all.
func (t *Tracker) Marked(n *html.Node) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marks[n] != 0
}

// Count returns how many nodes carry every bit of m.
func (t *Tracker) Count(m Mark) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, v := range t.marks {
		if v&m == m {
			n++
		}
	}
	return n
}

// Adopt seeds marks from the classes of a previously written bilingual
// document and returns the number of nodes marked.
func (t *Tracker) Adopt(root *html.Node) int {
	adopted := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, ClassTranslated):
				t.Set(n, Injected)
				adopted++
			case hasClass(n, ClassSource):
				t.Set(n, Processed)
				adopted++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return adopted
}

// ancestorMarked reports whether n or any of its ancestors carries a mark.
func (t *Tracker) ancestorMarked(n *html.Node) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for p := n; p != nil; p = p.Parent {
		if t.marks[p] != 0 {
			return true
		}
	}
	return false
}

// descendantInjected reports whether any node below n is Injected.
func (t *Tracker) descendantInjected(n *html.Node) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	var found bool
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil && !found; c = c.NextSibling {
			if t.marks[c]&Injected != 0 {
				found = true
				return
			}
			walk(c)
		}
	}
	walk(n)
	return found
}
