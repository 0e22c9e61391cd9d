package internal

import (
	"time"

	"golang.org/x/net/html"

	"github.com/valpere/bilingua/internal/placeholder"
)

// UnitKind selects the insertion strategy used when a translation is injected.
type UnitKind int

const (
	// KindBlock units get a translated sibling inserted right after them.
	KindBlock UnitKind = iota
	// KindCell units (td, th) get a translated child wrapper so the table
	// keeps its row and column layout.
	KindCell
)

func (k UnitKind) String() string {
	if k == KindCell {
		return "cell"
	}
	return "block"
}

// TranslationUnit is one block-level chunk of source text slated for
// translation. It is created by the selector and never mutated afterwards.
type TranslationUnit struct {
	Node         *html.Node        `json:"-"`
	Kind         UnitKind          `json:"kind"`
	RawText      string            `json:"raw_text"`
	Placeholders placeholder.Table `json:"placeholders"`
	BatchIndex   int               `json:"batch_index"`
}

// Batch is an ordered group of units sent to the backend in one request.
// Response strings correspond to Units by position.
type Batch struct {
	ID    int               `json:"id"`
	Units []TranslationUnit `json:"units"`
}

// Segments returns the plain-text payload of the batch in unit order.
func (b Batch) Segments() []string {
	out := make([]string, len(b.Units))
	for i, u := range b.Units {
		out[i] = u.RawText
	}
	return out
}

// RunRecord summarises one translation session for the run journal.
type RunRecord struct {
	ID         string    `json:"id"`
	Document   string    `json:"document"`
	PageURL    string    `json:"page_url"`
	TargetLang string    `json:"target_lang"`
	State      string    `json:"state"`
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// BatchFailure records one failed batch of a run.
type BatchFailure struct {
	RunID      string    `json:"run_id"`
	BatchID    int       `json:"batch_id"`
	Units      int       `json:"units"`
	ErrorClass string    `json:"error_class"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
