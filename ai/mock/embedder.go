package mock

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/go-crypt/x/blake2b"
)

// DefaultDimensions is the vector size produced by MockEmbedder.
const DefaultDimensions = 256

// MockEmbedder is a deterministic feature-hashing embedder.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	dimensions int
	callCount  atomic.Int64
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{dimensions: DefaultDimensions}
}

// NewMockEmbedderWithDimensions returns an embedder producing dim-sized vectors.
func NewMockEmbedderWithDimensions(dim int) *MockEmbedder {
	if dim < 1 {
		dim = DefaultDimensions
	}
	return &MockEmbedder{dimensions: dim}
}

func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return HashVector(text, m.dimensions), nil
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = HashVector(text, m.dimensions)
	}
	return vectors, nil
}

func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// words lower-cases text and splits it on anything that is not a letter or digit.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func bucket(word string, dim int) int {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(word))
	return int(binary.LittleEndian.Uint64(h.Sum(nil)) % uint64(dim))
}

// HashVector returns the unit-length hashed bag-of-words vector of text.
// Text without words maps to the zero vector.
func HashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	for _, w := range words(text) {
		vector[bucket(w, dim)]++
	}

	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}
	norm := math.Sqrt(sum)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}
