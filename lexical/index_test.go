package lexical

import (
	"fmt"
	"math"
	"testing"

	"github.com/poiesic/groundwork/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpus(texts ...string) []core.Chunk {
	chunks := make([]core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = core.NewChunk(core.Document{ID: fmt.Sprintf("d%d", i)}, 0, text)
	}
	return chunks
}

func TestSearchRanksMatchingChunks(t *testing.T) {
	ix := Build(corpus(
		"FastAPI is a modern web framework for building APIs with Python",
		"Newton's laws of motion describe the relationship between force and motion",
		"The first law of motion is also called the law of inertia",
	))

	hits := ix.Search("laws of motion", 4)
	require.NotEmpty(t, hits)
	assert.Equal(t, "d1_0", hits[0].ID)
	for _, h := range hits {
		assert.Greater(t, h.Signal.(core.Lexical).Score, 0.0)
	}
	assert.NotContains(t, ids(hits), "d0_0")
}

func TestSearchExcludesZeroScores(t *testing.T) {
	ix := Build(corpus("alpha beta", "gamma delta"))

	assert.Empty(t, ix.Search("epsilon", 10))
	assert.Equal(t, []string{"d0_0"}, ids(ix.Search("alpha", 10)))
}

func TestSearchIsCaseSensitiveByDefault(t *testing.T) {
	chunks := corpus("FastAPI performance is excellent", "unrelated text")

	assert.Empty(t, Build(chunks).Search("fastapi", 5))

	folded := Build(chunks, WithCaseInsensitive(true))
	assert.Equal(t, []string{"d0_0"}, ids(folded.Search("fastapi", 5)))
}

func TestSearchLimitsAndTies(t *testing.T) {
	ix := Build(corpus("same words", "same words", "same words", "other"))

	hits := ix.Search("same", 2)
	require.Len(t, hits, 2)
	// identical scores keep corpus order
	assert.Equal(t, []string{"d0_0", "d1_0"}, ids(hits))
	assert.Nil(t, ix.Search("same", 0))
}

func TestTermInEveryChunkStillScores(t *testing.T) {
	ix := Build(corpus("python", "python"))

	scores := ix.Scores("python")
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], 0.0)
	assert.InDelta(t, scores[0], scores[1], 1e-12)
}

func TestScoresMatchFormula(t *testing.T) {
	ix := Build(corpus("a b", "a c c c"))

	// N=2, n(c)=1, avgLen=3, doc length 4, tf=3
	idf := math.Log(1 + (2-1+0.5)/(1+0.5))
	norm := 1 - DefaultB + DefaultB*4/3.0
	want := idf * 3 * (DefaultK1 + 1) / (3 + DefaultK1*norm)

	scores := ix.Scores("c")
	assert.InDelta(t, 0, scores[0], 1e-12)
	assert.InDelta(t, want, scores[1], 1e-12)

	// repeated query terms count per occurrence
	assert.InDelta(t, 2*want, ix.Scores("c c")[1], 1e-12)
}

func TestEmptyIndex(t *testing.T) {
	ix := Empty()
	assert.Zero(t, ix.Len())
	assert.Empty(t, ix.Search("anything", 3))
	assert.Empty(t, ix.Scores("anything"))
}

func TestBuildCopiesCorpus(t *testing.T) {
	chunks := corpus("alpha")
	ix := Build(chunks)
	chunks[0].Text = "mutated"

	assert.Equal(t, "alpha", ix.Chunks()[0].Text)
	assert.Len(t, ix.Search("alpha", 1), 1)
}

func ids(hits []core.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}
