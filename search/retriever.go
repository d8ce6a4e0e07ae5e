package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/lexical"
	"github.com/poiesic/groundwork/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/poiesic/groundwork/search")

// Retriever provides hybrid semantic and lexical search over indexed chunks.
type Retriever struct {
	store       storage.VectorStore
	embedder    ai.Embedder
	index       *lexical.Holder
	rrfK        float64
	placeholder float64
	normalize   bool
	degrade     bool
	logger      *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithRRFConstant sets the fusion smoothing constant. Default: 60.
func WithRRFConstant(k float64) Option {
	return func(r *Retriever) error {
		if k <= 0 {
			return fmt.Errorf("search: rrf constant must be positive, got %v", k)
		}
		r.rrfK = k
		return nil
	}
}

// WithPlaceholderSimilarity sets the similarity reported for lexical-only
// hits. Default: 0.5.
func WithPlaceholderSimilarity(s float64) Option {
	return func(r *Retriever) error {
		if s < 0 || s > 1 {
			return fmt.Errorf("search: placeholder similarity must be in [0,1], got %v", s)
		}
		r.placeholder = s
		return nil
	}
}

// WithNormalize controls whether the query embedding is scaled to unit
// length before the vector store is queried. Default: true.
func WithNormalize(normalize bool) Option {
	return func(r *Retriever) error {
		r.normalize = normalize
		return nil
	}
}

// WithDegrade lets retrieval continue on lexical results alone when the
// semantic leg fails. By default a semantic failure fails the retrieval.
func WithDegrade(degrade bool) Option {
	return func(r *Retriever) error {
		r.degrade = degrade
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(
	store storage.VectorStore,
	embedder ai.Embedder,
	index *lexical.Holder,
	opts ...Option,
) (*Retriever, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	r := &Retriever{
		store:       store,
		embedder:    embedder,
		index:       index,
		rrfK:        DefaultRRFConstant,
		placeholder: DefaultPlaceholderSimilarity,
		normalize:   true,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")

	return r, nil
}

// Retrieve returns up to k fused hits for query, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]core.FusedHit, error) {
	return r.RetrieveWithMonitor(ctx, query, k, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, k int, monitor RetrievalMonitor) ([]core.FusedHit, error) {
	if k <= 0 {
		return nil, ErrInvalidLimit
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	ctx, span := tracer.Start(ctx, "search.retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	monitor.Start(query, k)
	candidates := 2 * k

	// Both legs run in parallel; the lexical leg reads a single snapshot.
	var semanticHits, lexicalHits []core.Hit
	var semanticErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		semanticHits, semanticErr = r.semantic(ctx, query, candidates)
	}()

	go func() {
		defer wg.Done()
		lexicalHits = r.index.Load().Search(query, candidates)
	}()

	wg.Wait()
	monitor.AfterSemanticLeg(semanticHits, semanticErr)
	monitor.AfterLexicalLeg(lexicalHits)

	if semanticErr != nil {
		if !r.degrade || errors.Is(semanticErr, context.Canceled) {
			span.RecordError(semanticErr)
			span.SetStatus(codes.Error, semanticErr.Error())
			r.logger.Error("semantic search failed", "err", semanticErr)
			return nil, semanticErr
		}
		r.logger.Warn("semantic search failed, using lexical results only", "err", semanticErr)
		semanticHits = nil
	}

	results := Fuse(k, r.rrfK, r.placeholder, semanticHits, lexicalHits)
	span.SetAttributes(
		attribute.Int("semantic_hits", len(semanticHits)),
		attribute.Int("lexical_hits", len(lexicalHits)),
		attribute.Int("results", len(results)),
	)
	r.logger.Debug("retrieval complete",
		"semantic", len(semanticHits),
		"lexical", len(lexicalHits),
		"results", len(results))
	monitor.Finish(results)

	return results, nil
}

func (r *Retriever) semantic(ctx context.Context, query string, n int) ([]core.Hit, error) {
	ctx, span := tracer.Start(ctx, "search.semantic")
	defer span.End()

	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if r.normalize {
		embedding = ai.NormalizeVector(embedding)
	}

	hits, err := r.store.Query(ctx, embedding, n)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	return hits, nil
}
