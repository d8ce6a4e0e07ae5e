// Package qdrant implements storage.VectorStore on a Qdrant collection
// reached over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/storage"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// DefaultCollection is the collection used when none is configured.
	DefaultCollection = "docs_collection"

	scrollPageSize = 256
)

// Store keeps chunks as points of one cosine collection. The collection is
// created on first upsert, sized from the first vector written.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	logger      *slog.Logger

	mu         sync.Mutex
	dimensions int
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithLogger sets the logger for store operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "qdrant-store")
	}
}

// NewStore connects to Qdrant at the given gRPC address. The connection is
// established lazily by gRPC; the first call surfaces reachability errors.
func NewStore(addr string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("qdrant store: address is required")
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant store: dial %s: %w", addr, err)
	}
	s := &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  DefaultCollection,
		logger:      slog.Default().With("component", "qdrant-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) exists(ctx context.Context) (bool, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("qdrant store: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection creates the collection if it doesn't exist.
func (s *Store) ensureCollection(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimensions != 0 {
		if s.dimensions != dims {
			return fmt.Errorf("%w: vector has %d components, collection has %d",
				storage.ErrDimensionMismatch, dims, s.dimensions)
		}
		return nil
	}

	ok, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		_, err = s.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     uint64(dims),
						Distance: pb.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("qdrant store: create collection %s: %w", s.collection, err)
		}
		s.logger.Info("created collection", "collection", s.collection, "dimensions", dims)
	}
	s.dimensions = dims
	return nil
}

// Upsert stores chunks as points keyed by a UUID derived from the chunk ID.
func (s *Store) Upsert(ctx context.Context, chunks ...*core.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		if err := core.ValidateIndexedChunk(c); err != nil {
			return err
		}
		if len(c.Vector) != len(chunks[0].Vector) {
			return fmt.Errorf("%w: chunk %s", storage.ErrDimensionMismatch, c.ID)
		}
		points[i] = toPoint(c)
	}
	if err := s.ensureCollection(ctx, len(chunks[0].Vector)); err != nil {
		return err
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant store: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Query performs k-NN search. Qdrant reports cosine similarity; it is
// converted to distance so callers see the same scale as every other store.
func (s *Store) Query(ctx context.Context, vector []float32, n int) ([]core.Hit, error) {
	if n <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return nil, err
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(n),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: search: %w", err)
	}

	hits := make([]core.Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = core.Hit{
			Chunk:  chunkFromPayload(r.GetPayload()),
			Signal: core.Semantic{Distance: 1 - float64(r.GetScore())},
		}
	}
	return hits, nil
}

// All scrolls through every point of the collection.
func (s *Store) All(ctx context.Context) ([]core.Chunk, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return nil, err
	}

	var (
		chunks []core.Chunk
		offset *pb.PointId
		limit  = uint32(scrollPageSize)
	)
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant store: scroll: %w", err)
		}
		for _, p := range resp.GetResult() {
			chunks = append(chunks, chunkFromPayload(p.GetPayload()))
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return chunks, nil
		}
	}
}

func (s *Store) Count(ctx context.Context) (int, error) {
	ok, err := s.exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant store: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Clear drops the collection. It is recreated on the next upsert.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		_, err = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection})
		if err != nil {
			return fmt.Errorf("qdrant store: delete collection %s: %w", s.collection, err)
		}
	}
	s.dimensions = 0
	s.logger.Info("cleared collection", "collection", s.collection)
	return nil
}
