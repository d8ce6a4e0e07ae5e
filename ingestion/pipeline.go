// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/chunking"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/lexical"
	"github.com/poiesic/groundwork/resilience"
	"github.com/poiesic/groundwork/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/poiesic/groundwork/ingestion")

type Pipeline struct {
	store       storage.VectorStore
	embedder    ai.Embedder
	index       *lexical.Holder
	chunker     *chunking.Chunker
	pool        *ants.Pool
	embedPolicy *resilience.Policy
	storePolicy *resilience.Policy
	lexicalOpts []lexical.Option
	normalize   bool
	logger      *slog.Logger

	mu sync.Mutex // one pass at a time
}

type Option func(*Pipeline) error

// WithPoolSize sets the number of workers chunking documents.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunking.Chunker) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.chunker = c
		}
		return nil
	}
}

// WithEmbedPolicy sets the policy around the batch embedding call.
func WithEmbedPolicy(policy *resilience.Policy) Option {
	return func(p *Pipeline) error {
		if policy != nil {
			p.embedPolicy = policy
		}
		return nil
	}
}

// WithStorePolicy sets the policy around vector store writes and reads.
func WithStorePolicy(policy *resilience.Policy) Option {
	return func(p *Pipeline) error {
		if policy != nil {
			p.storePolicy = policy
		}
		return nil
	}
}

// WithLexicalOptions sets the options every rebuilt lexical index is built with.
func WithLexicalOptions(opts ...lexical.Option) Option {
	return func(p *Pipeline) error {
		p.lexicalOpts = opts
		return nil
	}
}

// WithNormalize controls whether embeddings are scaled to unit length before
// they are stored. Default: true.
func WithNormalize(normalize bool) Option {
	return func(p *Pipeline) error {
		p.normalize = normalize
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

func NewPipeline(
	store storage.VectorStore,
	embedder ai.Embedder,
	index *lexical.Holder,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	chunker, err := chunking.New()
	if err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		index:       index,
		chunker:     chunker,
		pool:        pool,
		embedPolicy: resilience.Single("embedder"),
		storePolicy: resilience.Single("vector-store"),
		normalize:   true,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Release frees the worker pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Ingest runs one pass over docs. It never returns a nil report; failures
// are collected in it instead of aborting the pass.
func (p *Pipeline) Ingest(ctx context.Context, docs []core.Document) *Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ingest(ctx, docs)
}

// Reingest clears the vector store and the lexical index, then ingests docs.
// If clearing fails nothing else happens.
func (p *Pipeline) Reingest(ctx context.Context, docs []core.Document) *Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.storePolicy.Do(ctx, p.store.Clear); err != nil {
		report := &Report{}
		report.fail(fmt.Errorf("clear vector store: %w", err))
		return report
	}
	p.index.Swap(lexical.Empty(p.lexicalOpts...))
	p.logger.Info("cleared indices for reingest")
	return p.ingest(ctx, docs)
}

// Rebuild replaces the lexical index with one built from the store's
// current contents.
func (p *Pipeline) Rebuild(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rebuild(ctx)
}

func (p *Pipeline) ingest(ctx context.Context, docs []core.Document) *Report {
	ctx, span := tracer.Start(ctx, "ingestion.ingest")
	defer span.End()

	report := &Report{}
	chunks := p.chunkAll(docs, report)
	report.Chunks = len(chunks)
	report.Fingerprint = fingerprint(chunks)
	span.SetAttributes(
		attribute.Int("documents", report.Documents),
		attribute.Int("chunks", report.Chunks),
	)

	if len(chunks) == 0 {
		report.Indexed = p.index.Load().Len()
		p.logger.Info("nothing to ingest", "documents", report.Documents, "failures", len(report.Failures))
		return report
	}

	if err := p.embedAndStore(ctx, chunks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		report.fail(err)
		report.Indexed = p.index.Load().Len()
		p.logger.Error("ingestion batch failed", "chunks", len(chunks), "err", err)
		return report
	}

	indexed, err := p.rebuild(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		report.fail(err)
		indexed = p.index.Load().Len()
	}
	report.Indexed = indexed

	p.logger.Info("ingestion complete",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"indexed", report.Indexed,
		"failures", len(report.Failures))
	return report
}

// chunkAll chunks documents on the pool and flattens the result in
// document order.
func (p *Pipeline) chunkAll(docs []core.Document, report *Report) []core.Chunk {
	perDoc := make([][]core.Chunk, len(docs))
	errs := make([]error, len(docs))
	seen := make(map[string]struct{}, len(docs))

	var wg sync.WaitGroup
	for i := range docs {
		doc := docs[i]
		if err := core.ValidateDocument(&doc); err != nil {
			errs[i] = fmt.Errorf("document %d: %w", i, err)
			continue
		}
		if _, dup := seen[doc.ID]; dup {
			errs[i] = fmt.Errorf("document %q: %w", doc.ID, ErrDuplicateDocument)
			continue
		}
		seen[doc.ID] = struct{}{}

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			perDoc[i] = p.chunker.Chunk(doc)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("document %q: schedule chunking: %w", doc.ID, err)
		}
	}
	wg.Wait()

	var chunks []core.Chunk
	for i := range docs {
		if errs[i] != nil {
			report.fail(errs[i])
			continue
		}
		report.Documents++
		chunks = append(chunks, perDoc[i]...)
	}
	return chunks
}

func (p *Pipeline) embedAndStore(ctx context.Context, chunks []core.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embedCtx, span := tracer.Start(ctx, "ingestion.embed")
	vectors, err := resilience.Call(embedCtx, p.embedPolicy, func(ctx context.Context) ([][]float32, error) {
		return p.embedder.EmbedTexts(ctx, texts)
	})
	span.End()
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks", ErrEmbeddingCount, len(vectors), len(chunks))
	}
	if p.normalize {
		vectors = ai.NormalizeVectors(vectors)
	}

	indexed := make([]*core.IndexedChunk, len(chunks))
	for i, c := range chunks {
		indexed[i] = &core.IndexedChunk{Chunk: c, Vector: vectors[i]}
	}

	upsertCtx, span := tracer.Start(ctx, "ingestion.upsert")
	defer span.End()
	err = p.storePolicy.Do(upsertCtx, func(ctx context.Context) error {
		return p.store.Upsert(ctx, indexed...)
	})
	if err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(indexed), err)
	}
	return nil
}

func (p *Pipeline) rebuild(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "ingestion.rebuild")
	defer span.End()

	all, err := resilience.Call(ctx, p.storePolicy, p.store.All)
	if err != nil {
		return 0, fmt.Errorf("rebuild lexical index: %w", err)
	}
	ix := lexical.Build(all, p.lexicalOpts...)
	p.index.Swap(ix)
	span.SetAttributes(attribute.Int("corpus", ix.Len()))
	p.logger.Debug("lexical index rebuilt", "chunks", ix.Len())
	return ix.Len(), nil
}
