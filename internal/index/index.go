// Package index provides the vector index over knowledge documents: an
// in-memory flat store built from a persisted artifact, and an optional
// Qdrant-backed remote store. Indexes are read-only once built; rebuilds are
// wholesale and swapped in atomically by the caller.
package index

import (
	"context"
	"errors"

	"github.com/spigell/interview-coach/internal/knowledge"
)

// ErrUnavailable marks every condition under which the index cannot serve:
// a missing or corrupt artifact, a model identity mismatch, or a remote
// collection that does not match the artifact. Callers degrade to running
// without coaching.
var ErrUnavailable = errors.New("index unavailable")

// Entry pairs a knowledge document with its embedding vector.
type Entry struct {
	Document knowledge.Document `json:"document"`
	Vector   []float32          `json:"vector"`
}

// Match is a retrieval hit. Score is squared Euclidean distance between the
// query and the document exemplar: lower is closer. Scores are comparable
// only within one index and model identity.
type Match struct {
	Document knowledge.Document
	Score    float64
}

// Searcher is the read side of an index.
type Searcher interface {
	// Search returns up to k matches ordered by (score ascending, document id
	// ascending). An empty index yields an empty result, not an error.
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	Len() int
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
