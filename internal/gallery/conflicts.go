package gallery

import (
	"sort"

	"github.com/coder/hnsw"
)

const (
	conflictNeighbors = 8
	hnswMaxNeighbors  = 16
)

// Conflict is a pair of entries for different identities that lie within
// tolerance of each other. With first-hit-wins matching the earlier entry
// shadows the later one for any query near both.
type Conflict struct {
	First     int     `json:"first"`
	FirstKey  string  `json:"first_key"`
	Second    int     `json:"second"`
	SecondKey string  `json:"second_key"`
	Distance  float64 `json:"distance"`
}

// FindConflicts lists conflicting entry pairs ordered by distance. Candidates
// come from an approximate nearest-neighbour graph, so very crowded galleries
// may miss a few pairs; distances are exact.
func FindConflicts(g *Gallery, tolerance float64) []Conflict {
	if g.Len() < 2 {
		return nil
	}

	graph := hnsw.NewGraph[int]()
	graph.M = hnswMaxNeighbors
	graph.Ml = 1.0 / float64(hnswMaxNeighbors)
	graph.Distance = hnsw.EuclideanDistance

	vectors := make([][]float32, g.Len())
	for i := 0; i < g.Len(); i++ {
		vectors[i] = toFloat32(g.Embedding(i))
		graph.Add(hnsw.MakeNode(i, vectors[i]))
	}

	k := min(conflictNeighbors, g.Len())
	seen := make(map[[2]int]struct{})
	var out []Conflict

	for i := 0; i < g.Len(); i++ {
		for _, n := range graph.Search(vectors[i], k) {
			j := n.Key
			if j == i || g.Key(i) == g.Key(j) {
				continue
			}
			a, b := min(i, j), max(i, j)
			if _, ok := seen[[2]int{a, b}]; ok {
				continue
			}
			d := g.Distance(a, g.Embedding(b))
			if d > tolerance {
				continue
			}
			seen[[2]int{a, b}] = struct{}{}
			out = append(out, Conflict{First: a, FirstKey: g.Key(a), Second: b, SecondKey: g.Key(b), Distance: d})
		}
	}

	sort.Slice(out, func(x, y int) bool {
		if out[x].Distance != out[y].Distance {
			return out[x].Distance < out[y].Distance
		}
		return out[x].First < out[y].First
	})
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
