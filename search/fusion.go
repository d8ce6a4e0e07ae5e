package search

import (
	"slices"

	"github.com/poiesic/groundwork/core"
)

const (
	// DefaultRRFConstant smooths the advantage of the first rank in each leg.
	DefaultRRFConstant = 60.0

	// DefaultPlaceholderSimilarity is the display similarity given to hits
	// found only by the lexical leg. It is a fixed midpoint, not a measurement.
	DefaultPlaceholderSimilarity = 0.5
)

// Fuse merges ranked legs with Reciprocal Rank Fusion and returns at most k
// hits ordered by descending fusion score. A hit at 1-based rank r in a leg
// adds 1/(rrfK+r) to its chunk's score. Equal scores keep the order in which
// chunks were first seen, scanning legs in argument order.
//
// A chunk keeps the signal of the first leg that produced it, so chunks found
// semantically keep their distance even when the lexical leg also ranked them.
func Fuse(k int, rrfK, placeholder float64, legs ...[]core.Hit) []core.FusedHit {
	if k <= 0 {
		return nil
	}

	var fused []core.FusedHit
	position := make(map[string]int)
	for _, leg := range legs {
		for rank, hit := range leg {
			contribution := 1 / (rrfK + float64(rank+1))
			if i, ok := position[hit.ID]; ok {
				fused[i].Fusion += contribution
				continue
			}
			position[hit.ID] = len(fused)
			fused = append(fused, core.FusedHit{
				Hit:        hit,
				Fusion:     contribution,
				Similarity: similarity(hit, placeholder),
			})
		}
	}

	slices.SortStableFunc(fused, func(a, b core.FusedHit) int {
		switch {
		case a.Fusion > b.Fusion:
			return -1
		case a.Fusion < b.Fusion:
			return 1
		}
		return 0
	})

	if len(fused) > k {
		fused = fused[:k]
	}
	return fused
}

func similarity(hit core.Hit, placeholder float64) float64 {
	if s, ok := hit.Signal.(core.Semantic); ok {
		return s.Similarity()
	}
	return placeholder
}
