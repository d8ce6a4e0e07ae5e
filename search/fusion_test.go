package search

import (
	"testing"

	"github.com/poiesic/groundwork/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func semanticHit(id string, distance float64) core.Hit {
	return core.Hit{Chunk: core.Chunk{ID: id, Text: id}, Signal: core.Semantic{Distance: distance}}
}

func lexicalHit(id string, score float64) core.Hit {
	return core.Hit{Chunk: core.Chunk{ID: id, Text: id}, Signal: core.Lexical{Score: score}}
}

func ids(hits []core.FusedHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestFuse_SumsContributionsAcrossLegs(t *testing.T) {
	semantic := []core.Hit{semanticHit("a", 0.1), semanticHit("b", 0.2), semanticHit("c", 0.3)}
	lexical := []core.Hit{lexicalHit("c", 4.2), lexicalHit("d", 1.1)}

	fused := Fuse(10, DefaultRRFConstant, DefaultPlaceholderSimilarity, semantic, lexical)

	// b and d tie at 1/62; b was seen first.
	require.Equal(t, []string{"c", "a", "b", "d"}, ids(fused))
	assert.InDelta(t, 1.0/63+1.0/61, fused[0].Fusion, 1e-12)
	assert.InDelta(t, 1.0/61, fused[1].Fusion, 1e-12)
	assert.InDelta(t, 1.0/62, fused[2].Fusion, 1e-12)
	assert.InDelta(t, 1.0/62, fused[3].Fusion, 1e-12)
}

func TestFuse_ScoresNeverIncrease(t *testing.T) {
	semantic := []core.Hit{semanticHit("a", 0.1), semanticHit("b", 0.4), semanticHit("c", 0.5), semanticHit("e", 0.9)}
	lexical := []core.Hit{lexicalHit("e", 3), lexicalHit("f", 2), lexicalHit("a", 1)}

	fused := Fuse(10, DefaultRRFConstant, DefaultPlaceholderSimilarity, semantic, lexical)
	require.Len(t, fused, 5)
	for i := 1; i < len(fused); i++ {
		assert.GreaterOrEqual(t, fused[i-1].Fusion, fused[i].Fusion)
	}

	for _, h := range fused {
		if h.ID == "a" || h.ID == "e" {
			assert.Greater(t, h.Fusion, 1.0/61, "chunk in both legs beats any single contribution")
		}
	}
}

func TestFuse_KeepsSemanticSignal(t *testing.T) {
	fused := Fuse(5, DefaultRRFConstant, DefaultPlaceholderSimilarity,
		[]core.Hit{semanticHit("a", 0.25)},
		[]core.Hit{lexicalHit("a", 2), lexicalHit("z", 1)})

	require.Len(t, fused, 2)
	assert.False(t, fused[0].LexicalOnly())
	assert.Equal(t, core.Semantic{Distance: 0.25}, fused[0].Signal)
	assert.InDelta(t, 0.75, fused[0].Similarity, 1e-12)

	assert.True(t, fused[1].LexicalOnly())
	assert.Equal(t, DefaultPlaceholderSimilarity, fused[1].Similarity)
	assert.InDelta(t, 0.5, fused[1].Distance(), 1e-12)
}

func TestFuse_Truncates(t *testing.T) {
	semantic := []core.Hit{semanticHit("a", 0.1), semanticHit("b", 0.2), semanticHit("c", 0.3)}

	assert.Equal(t, []string{"a", "b"}, ids(Fuse(2, DefaultRRFConstant, 0.5, semantic)))
	assert.Nil(t, Fuse(0, DefaultRRFConstant, 0.5, semantic))
}

func TestFuse_EmptyLegs(t *testing.T) {
	assert.Empty(t, Fuse(3, DefaultRRFConstant, 0.5, nil, nil))

	fused := Fuse(3, DefaultRRFConstant, 0.5, nil, []core.Hit{lexicalHit("x", 1)})
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61, fused[0].Fusion, 1e-12)
}

func TestFuse_CustomConstant(t *testing.T) {
	fused := Fuse(1, 1, 0.5, []core.Hit{semanticHit("a", 0)})
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.5, fused[0].Fusion, 1e-12)
}
