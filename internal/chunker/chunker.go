// Package chunker groups translation units into bounded batches. Each batch
// becomes one backend request, and the backend answers with one string per
// unit in the same order.
package chunker

import (
	"github.com/valpere/bilingua/internal"
)

// DefaultBatchSize is the number of units sent per request when no size is
// configured.
const DefaultBatchSize = 15

// Partition splits units into contiguous batches of at most maxBatchSize
// units, preserving order. Batch IDs are 0-based and BatchIndex is set on
// the emitted copies; the input slice is not modified. If maxBatchSize ≤ 0
// DefaultBatchSize is used.
func Partition(units []internal.TranslationUnit, maxBatchSize int) []internal.Batch {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultBatchSize
	}
	if len(units) == 0 {
		return nil
	}

	batches := make([]internal.Batch, 0, (len(units)+maxBatchSize-1)/maxBatchSize)
	for start := 0; start < len(units); start += maxBatchSize {
		end := min(start+maxBatchSize, len(units))
		id := len(batches)

		b := internal.Batch{ID: id, Units: make([]internal.TranslationUnit, end-start)}
		copy(b.Units, units[start:end])
		for i := range b.Units {
			b.Units[i].BatchIndex = id
		}
		batches = append(batches, b)
	}
	return batches
}

// Count returns the total number of units across batches.
func Count(batches []internal.Batch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Units)
	}
	return n
}

// Units flattens batches back into a single slice in batch order.
func Units(batches []internal.Batch) []internal.TranslationUnit {
	out := make([]internal.TranslationUnit, 0, Count(batches))
	for _, b := range batches {
		out = append(out, b.Units...)
	}
	return out
}
