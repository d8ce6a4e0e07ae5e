package storage

import (
	"context"

	"github.com/poiesic/groundwork/core"
)

// VectorStore holds indexed chunks and answers nearest-neighbour queries.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	// Upsert writes chunks keyed by chunk ID. An existing ID's text, metadata
	// and vector are replaced, never duplicated.
	Upsert(ctx context.Context, chunks ...*core.IndexedChunk) error

	// Query returns up to n chunks closest to vector, ascending by cosine
	// distance. Every hit carries a core.Semantic signal.
	Query(ctx context.Context, vector []float32, n int) ([]core.Hit, error)

	// All returns every stored chunk without vectors.
	All(ctx context.Context) ([]core.Chunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Clear removes every stored chunk.
	Clear(ctx context.Context) error

	// Close releases resources. The store must not be used afterwards.
	Close() error
}
