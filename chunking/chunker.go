// Package chunking splits document text into overlapping word windows.
package chunking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/groundwork/core"
)

const (
	// DefaultChunkSize is the default number of words per chunk.
	DefaultChunkSize = 150

	// DefaultOverlap is the default number of words shared by consecutive chunks.
	DefaultOverlap = 30
)

// ErrInvalidParameters indicates a chunk size or overlap that cannot produce
// forward progress. It is a configuration error and is only ever returned
// at construction time.
var ErrInvalidParameters = errors.New("chunking: invalid parameters")

// Chunker turns text into windows of Size words advancing by Size-Overlap.
// A Chunker is immutable and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in words.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithOverlap sets the number of words shared by consecutive windows.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a Chunker. It fails when overlap is negative or not strictly
// smaller than the chunk size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := Validate(c.size, c.overlap); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks chunking parameters without building a Chunker.
func Validate(size, overlap int) error {
	if size < 1 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidParameters, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidParameters, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidParameters, overlap, size)
	}
	return nil
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split returns the ordered, non-empty word windows of text. Whitespace-only
// input yields nil. Windows start every Size-Overlap words, so the trailing
// windows of a document may be shorter than Size.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.size - c.overlap
	windows := make([]string, 0, (len(words)+step-1)/step)
	for start := 0; start < len(words); start += step {
		end := min(start+c.size, len(words))
		windows = append(windows, strings.Join(words[start:end], " "))
	}
	return windows
}

// Chunk splits a document body and assigns each window its stable chunk ID.
func (c *Chunker) Chunk(doc core.Document) []core.Chunk {
	windows := c.Split(doc.Body)
	if len(windows) == 0 {
		return nil
	}
	chunks := make([]core.Chunk, len(windows))
	for i, text := range windows {
		chunks[i] = core.NewChunk(doc, i, text)
	}
	return chunks
}
