package chunker_test

import (
	"fmt"
	"testing"

	"github.com/valpere/bilingua/internal"
	"github.com/valpere/bilingua/internal/chunker"
)

func makeUnits(n int) []internal.TranslationUnit {
	units := make([]internal.TranslationUnit, n)
	for i := range units {
		units[i] = internal.TranslationUnit{RawText: fmt.Sprintf("segment %d", i)}
	}
	return units
}

func TestPartition_Empty(t *testing.T) {
	if got := chunker.Partition(nil, 15); len(got) != 0 {
		t.Errorf("expected no batches, got %d", len(got))
	}
}

func TestPartition_Sizes(t *testing.T) {
	cases := []struct {
		units, size int
		want        []int
	}{
		{units: 40, size: 15, want: []int{15, 15, 10}},
		{units: 15, size: 15, want: []int{15}},
		{units: 16, size: 15, want: []int{15, 1}},
		{units: 3, size: 0, want: []int{3}},
		{units: 5, size: 2, want: []int{2, 2, 1}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_by_%d", tc.units, tc.size), func(t *testing.T) {
			batches := chunker.Partition(makeUnits(tc.units), tc.size)
			if len(batches) != len(tc.want) {
				t.Fatalf("expected %d batches, got %d", len(tc.want), len(batches))
			}
			for i, b := range batches {
				if len(b.Units) != tc.want[i] {
					t.Errorf("batch %d: expected %d units, got %d", i, tc.want[i], len(b.Units))
				}
				if b.ID != i {
					t.Errorf("batch %d has ID %d", i, b.ID)
				}
			}
			if chunker.Count(batches) != tc.units {
				t.Errorf("Count: expected %d, got %d", tc.units, chunker.Count(batches))
			}
		})
	}
}

func TestPartition_PreservesOrder(t *testing.T) {
	units := makeUnits(40)
	batches := chunker.Partition(units, 15)

	flat := chunker.Units(batches)
	for i, u := range flat {
		if u.RawText != units[i].RawText {
			t.Fatalf("position %d: expected %q, got %q", i, units[i].RawText, u.RawText)
		}
	}
	for _, b := range batches {
		for _, u := range b.Units {
			if u.BatchIndex != b.ID {
				t.Errorf("unit %q carries batch index %d, want %d", u.RawText, u.BatchIndex, b.ID)
			}
		}
		if segs := b.Segments(); len(segs) != len(b.Units) {
			t.Errorf("batch %d: %d segments for %d units", b.ID, len(segs), len(b.Units))
		}
	}
}

func TestPartition_DoesNotMutateInput(t *testing.T) {
	units := makeUnits(20)
	for i := range units {
		units[i].BatchIndex = -1
	}
	chunker.Partition(units, 15)
	for i, u := range units {
		if u.BatchIndex != -1 {
			t.Fatalf("input unit %d was modified", i)
		}
	}
}
