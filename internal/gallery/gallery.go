// Package gallery holds the enrolled face embeddings used for matching.
package gallery

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrLengthMismatch means the snapshot's encodings and names differ in length.
	ErrLengthMismatch = errors.New("encodings and names differ in length")
	// ErrDimensionMismatch means the snapshot mixes embeddings of different lengths.
	ErrDimensionMismatch = errors.New("embeddings differ in dimension")
	// ErrEmptySnapshot means the snapshot holds no data at all.
	ErrEmptySnapshot = errors.New("empty snapshot")
)

// Gallery is an immutable list of (embedding, identity key) pairs in storage order.
// It is safe for concurrent use; reloading replaces the whole value.
type Gallery struct {
	embeddings [][]float64
	keys       []string
}

// New builds a gallery from parallel slices. The slices are copied.
func New(embeddings [][]float64, keys []string) (*Gallery, error) {
	if len(embeddings) != len(keys) {
		return nil, fmt.Errorf("%w: %d encodings, %d names", ErrLengthMismatch, len(embeddings), len(keys))
	}

	g := &Gallery{
		embeddings: make([][]float64, len(embeddings)),
		keys:       make([]string, len(keys)),
	}
	copy(g.keys, keys)
	for i, e := range embeddings {
		if len(e) == 0 || len(e) != len(embeddings[0]) {
			return nil, fmt.Errorf("%w: entry %d has %d values", ErrDimensionMismatch, i, len(e))
		}
		g.embeddings[i] = append([]float64(nil), e...)
	}
	return g, nil
}

// Empty returns a gallery that matches nothing.
func Empty() *Gallery {
	return &Gallery{}
}

// Len returns the number of entries.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.keys)
}

// Dim returns the embedding dimension, or 0 for an empty gallery.
func (g *Gallery) Dim() int {
	if g.Len() == 0 {
		return 0
	}
	return len(g.embeddings[0])
}

// Key returns the identity key of entry i.
func (g *Gallery) Key(i int) string {
	return g.keys[i]
}

// Embedding returns entry i's embedding. Callers must not modify it.
func (g *Gallery) Embedding(i int) []float64 {
	return g.embeddings[i]
}

// Identities returns the distinct identity keys with their entry counts.
func (g *Gallery) Identities() map[string]int {
	out := make(map[string]int)
	for i := 0; i < g.Len(); i++ {
		out[g.keys[i]]++
	}
	return out
}

// Match returns the first entry, in storage order, whose distance to query is
// within tolerance. It is deliberately not the nearest entry.
func (g *Gallery) Match(query []float64, tolerance float64) (int, bool) {
	for i := 0; i < g.Len(); i++ {
		if g.Distance(i, query) <= tolerance {
			return i, true
		}
	}
	return -1, false
}

// Distance returns the Euclidean distance between entry i and query.
// Embeddings of a different dimension are infinitely far away.
func (g *Gallery) Distance(i int, query []float64) float64 {
	e := g.embeddings[i]
	if len(e) != len(query) {
		return math.Inf(1)
	}
	return floats.Distance(e, query, 2)
}
