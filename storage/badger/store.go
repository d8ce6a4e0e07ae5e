package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
)

// Store is an embedded vector store. Queries are an exact cosine scan over
// every stored chunk, which suits corpora of a few hundred thousand chunks.
type Store struct {
	backend     *Backend
	ownsBackend bool
	closed      atomic.Bool
	logger      *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger for store operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "badger-store")
		return nil
	}
}

// NewStore creates a store on an existing backend. Closing the store leaves
// the backend open.
func NewStore(backend *Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("badger store: backend is required")
	}
	s := &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OpenStore opens a backend at filePath and a store that owns it.
func OpenStore(filePath string, inMemory bool, opts ...Option) (*Store, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	s.ownsBackend = true
	return s, nil
}

func (s *Store) checkOpen() error {
	if s.closed.Load() || s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Upsert writes chunks keyed by ID, replacing existing entries.
func (s *Store) Upsert(ctx context.Context, chunks ...*core.IndexedChunk) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if err := core.ValidateIndexedChunk(c); err != nil {
			return err
		}
	}

	dim, err := s.dimension()
	if err != nil {
		return err
	}
	if dim == 0 {
		dim = len(chunks[0].Vector)
	}
	for _, c := range chunks {
		if len(c.Vector) != dim {
			return fmt.Errorf("%w: chunk %s has %d components, store has %d",
				storage.ErrDimensionMismatch, c.ID, len(c.Vector), dim)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.backend.WriteBatch(func(wb *badger.WriteBatch) error {
		if err := wb.Set([]byte(chunkDimensionKey), binary.AppendUvarint(nil, uint64(dim))); err != nil {
			return err
		}
		for _, c := range chunks {
			if err := wb.Set(makeChunkKey(c.ID), storage.MarshalIndexedChunk(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger store: upsert: %w", err)
	}
	s.logger.Debug("upserted chunks", "count", len(chunks))
	return nil
}

func (s *Store) dimension() (int, error) {
	var dim int
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(chunkDimensionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, n := binary.Uvarint(val)
			if n <= 0 {
				return storage.ErrTruncatedData
			}
			dim = int(v)
			return nil
		})
	}, false)
	return dim, err
}

// scan calls fn for every stored chunk in key order.
func (s *Store) scan(ctx context.Context, fn func(c *core.IndexedChunk)) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = chunkPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.IndexedChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalIndexedChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			fn(chunk)
		}
		return nil
	}, false)
}

// Query returns the n chunks closest to vector by cosine distance.
func (s *Store) Query(ctx context.Context, vector []float32, n int) ([]core.Hit, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if n <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	dim, err := s.dimension()
	if err != nil {
		return nil, err
	}
	if dim != 0 && dim != len(vector) {
		return nil, fmt.Errorf("%w: query has %d components, store has %d",
			storage.ErrDimensionMismatch, len(vector), dim)
	}

	var hits []core.Hit
	err = s.scan(ctx, func(c *core.IndexedChunk) {
		hits = append(hits, core.Hit{
			Chunk:  c.Chunk,
			Signal: core.Semantic{Distance: 1 - cosineSimilarity(vector, c.Vector)},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger store: query: %w", err)
	}

	slices.SortStableFunc(hits, func(a, b core.Hit) int {
		da := a.Signal.(core.Semantic).Distance
		db := b.Signal.(core.Semantic).Distance
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})

	if len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// All returns every stored chunk in key order.
func (s *Store) All(ctx context.Context) ([]core.Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var chunks []core.Chunk
	err := s.scan(ctx, func(c *core.IndexedChunk) {
		chunks = append(chunks, c.Chunk)
	})
	if err != nil {
		return nil, fmt.Errorf("badger store: all: %w", err)
	}
	return chunks, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = chunkPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return ctx.Err()
	}, false)
	if err != nil {
		return 0, fmt.Errorf("badger store: count: %w", err)
	}
	return count, nil
}

// Clear removes all chunks and forgets the vector dimension.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.backend.DropPrefix(chunkPrefix(), []byte(chunkDimensionKey)); err != nil {
		return fmt.Errorf("badger store: clear: %w", err)
	}
	s.logger.Info("cleared vector store")
	return nil
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsBackend {
		return s.backend.Close()
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// clamp rounding drift so distances stay inside [0,2]
	return max(-1, min(1, sim))
}
