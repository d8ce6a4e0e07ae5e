package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/groundwork/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewDefaults(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, c.Size())
	assert.Equal(t, DefaultOverlap, c.Overlap())
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(WithChunkSize(tt.size), WithOverlap(tt.overlap))
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestSplitWindows(t *testing.T) {
	c, err := New(WithChunkSize(4), WithOverlap(1))
	require.NoError(t, err)

	got := c.Split(words(10))
	assert.Equal(t, []string{
		"w0 w1 w2 w3",
		"w3 w4 w5 w6",
		"w6 w7 w8 w9",
		"w9",
	}, got)
}

func TestSplitShortText(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, []string{"just a few words"}, c.Split("  just a\tfew\n words "))
}

func TestSplitEmpty(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split(" \n\t  "))
}

func TestSplitDefaultParameters(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	got := c.Split(words(300))
	// windows start at 0, 120, 240
	require.Len(t, got, 3)
	assert.Len(t, strings.Fields(got[0]), 150)
	assert.Len(t, strings.Fields(got[1]), 150)
	assert.Len(t, strings.Fields(got[2]), 60)
	assert.True(t, strings.HasPrefix(got[1], "w120 "))
}

func TestSplitIsDeterministic(t *testing.T) {
	c, err := New(WithChunkSize(7), WithOverlap(3))
	require.NoError(t, err)

	text := words(53)
	first := c.Split(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Split(text))
	}
}

func TestChunkAssignsStableIDs(t *testing.T) {
	c, err := New(WithChunkSize(3), WithOverlap(0))
	require.NoError(t, err)

	doc := core.Document{ID: "fastapi", Title: "FastAPI", Body: words(7)}
	chunks := c.Chunk(doc)
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, core.ChunkID("fastapi", i), ch.ID)
		assert.Equal(t, i, ch.Metadata.Ordinal)
		assert.Equal(t, "FastAPI", ch.Metadata.Title)
		assert.Equal(t, "fastapi", ch.Metadata.DocumentID)
	}
	assert.Equal(t, chunks, c.Chunk(doc))

	assert.Nil(t, c.Chunk(core.Document{ID: "empty"}))
}
