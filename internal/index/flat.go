package index

import (
	"context"
	"fmt"
	"sort"
)

// Flat is a brute-force in-memory index. It is immutable after Build and safe
// for concurrent readers.
type Flat struct {
	dimension int
	entries   []Entry
}

// Build validates the entries and constructs a flat index. Every vector must
// be present and share one dimension.
func Build(entries []Entry) (*Flat, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to index")
	}

	dimension := len(entries[0].Vector)
	if dimension == 0 {
		return nil, fmt.Errorf("document %q has no vector", entries[0].Document.ID)
	}

	copied := make([]Entry, len(entries))
	for i, entry := range entries {
		if len(entry.Vector) == 0 {
			return nil, fmt.Errorf("document %q has no vector", entry.Document.ID)
		}
		if len(entry.Vector) != dimension {
			return nil, fmt.Errorf("document %q: vector dimension %d, expected %d",
				entry.Document.ID, len(entry.Vector), dimension)
		}
		copied[i] = entry
	}

	return &Flat{dimension: dimension, entries: copied}, nil
}

func (f *Flat) Len() int {
	if f == nil {
		return 0
	}
	return len(f.entries)
}

func (f *Flat) Dimension() int {
	if f == nil {
		return 0
	}
	return f.dimension
}

// Search scans every entry and returns up to k matches ordered by score, with
// document id breaking exact ties. k is clamped to the index size.
func (f *Flat) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if f == nil || len(f.entries) == 0 || k <= 0 {
		return nil, nil
	}

	if len(vector) != f.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), f.dimension)
	}

	matches := make([]Match, 0, len(f.entries))
	for _, entry := range f.entries {
		matches = append(matches, Match{
			Document: entry.Document,
			Score:    squaredL2(vector, entry.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score < matches[j].Score
		}
		return matches[i].Document.ID < matches[j].Document.ID
	})

	if k > len(matches) {
		k = len(matches)
	}

	return matches[:k], nil
}
