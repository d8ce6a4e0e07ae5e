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


package groundwork

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/gate"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/lexical"
	"github.com/poiesic/groundwork/loader"
	"github.com/poiesic/groundwork/metrics"
	"github.com/poiesic/groundwork/search"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/synthesis"
)

var (
	ErrStoreRequired    = errors.New("vector store required")
	ErrProviderRequired = errors.New("AI provider required")
	ErrLoaderRequired   = errors.New("document loader required")
)

// Engine answers questions over an ingested document set. It owns the
// vector store and AI provider handed to it and closes them on Close.
type Engine struct {
	store       storage.VectorStore
	provider    ai.AIProvider
	index       *lexical.Holder
	pipeline    *ingestion.Pipeline
	retriever   *search.Retriever
	gate        *gate.Gate
	synthesizer *synthesis.Synthesizer
	recorder    *metrics.Recorder
	loader      *loader.Loader
	retrieveK   int
	askK        int
	newTraceID  func() string
	logger      *slog.Logger
}

// NewEngine wires an engine around store and provider. The lexical index is
// built from whatever the store already holds, so a restarted process can
// answer keyword queries without re-ingesting.
func NewEngine(ctx context.Context, store storage.VectorStore, provider ai.AIProvider, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	options := defaultEngineOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	logger := options.logger.With("component", "engine")

	index := lexical.NewHolder(lexical.Empty(options.lexicalOpts...))
	pipeline, err := ingestion.NewPipeline(store, provider.Embedder(), index,
		append([]ingestion.Option{
			ingestion.WithLexicalOptions(options.lexicalOpts...),
			ingestion.WithLogger(options.logger),
		}, options.ingestionOpts...)...)
	if err != nil {
		return nil, err
	}

	warmed, err := pipeline.Rebuild(ctx)
	if err != nil {
		pipeline.Release()
		return nil, fmt.Errorf("warm lexical index: %w", err)
	}
	logger.Info("lexical index warmed", "chunks", warmed)

	retriever, err := search.NewRetriever(store, provider.Embedder(), index,
		append([]search.Option{search.WithLogger(options.logger)}, options.retrieverOpts...)...)
	if err != nil {
		pipeline.Release()
		return nil, err
	}

	synthesizer, err := synthesis.New(provider.Generator(),
		append([]synthesis.Option{synthesis.WithLogger(options.logger)}, options.synthesisOpts...)...)
	if err != nil {
		pipeline.Release()
		return nil, err
	}

	return &Engine{
		store:       store,
		provider:    provider,
		index:       index,
		pipeline:    pipeline,
		retriever:   retriever,
		gate:        options.gate,
		synthesizer: synthesizer,
		recorder:    options.recorder,
		loader:      options.loader,
		retrieveK:   options.retrieveK,
		askK:        options.askK,
		newTraceID:  uuid.NewString,
		logger:      logger,
	}, nil
}

func (e *Engine) Close() error {
	e.pipeline.Release()

	// Close AI provider first
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}

// Ingest chunks, embeds and indexes docs.
func (e *Engine) Ingest(ctx context.Context, docs []core.Document) *ingestion.Report {
	return e.pipeline.Ingest(ctx, docs)
}

// IngestSources loads documents from the configured loader and ingests
// them. Files that fail to load are reported alongside ingestion failures.
func (e *Engine) IngestSources(ctx context.Context) *ingestion.Report {
	if e.loader == nil {
		report := &ingestion.Report{}
		report.AddFailures(ErrLoaderRequired)
		return report
	}
	docs, failures := e.loader.Load(ctx)
	report := e.pipeline.Ingest(ctx, docs)
	report.AddFailures(failures...)
	return report
}

// Reingest clears both indices and ingests the loader's documents.
func (e *Engine) Reingest(ctx context.Context) *ingestion.Report {
	if e.loader == nil {
		report := &ingestion.Report{}
		report.AddFailures(ErrLoaderRequired)
		return report
	}
	docs, failures := e.loader.Load(ctx)
	report := e.pipeline.Reingest(ctx, docs)
	report.AddFailures(failures...)
	return report
}

// ReingestDocuments clears both indices and ingests docs.
func (e *Engine) ReingestDocuments(ctx context.Context, docs []core.Document) *ingestion.Report {
	return e.pipeline.Reingest(ctx, docs)
}

// Retrieve returns up to k passages for query. A non-positive k uses the
// configured default. Passages found only by keyword carry the placeholder
// distance rather than a measured one.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]core.Passage, error) {
	if k <= 0 {
		k = e.retrieveK
	}
	hits, err := e.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	passages := make([]core.Passage, len(hits))
	for i, h := range hits {
		passages[i] = h.Passage()
	}
	return passages, nil
}

// Ask answers query from the ingested documents. It always returns a result;
// failures are reported through its status.
func (e *Engine) Ask(ctx context.Context, query string) core.AnswerResult {
	start := time.Now()
	traceID := e.newTraceID()
	logger := e.logger.With("trace_id", traceID)
	logger.Info("ask", "query", query)

	var monitor search.RetrievalMonitor
	if logger.Enabled(ctx, slog.LevelDebug) {
		monitor = search.NewLogMonitor(logger)
	}
	hits, err := e.retriever.RetrieveWithMonitor(ctx, query, e.askK, monitor)
	if err != nil {
		logger.Error("retrieval failed", "err", err)
		e.recorder.Record(core.StatusError, time.Since(start))
		return core.AnswerResult{
			Answer:  fmt.Sprintf("Error in retrieval: %v", err),
			Status:  core.StatusError,
			TraceID: traceID,
			Sources: []core.FusedHit{},
		}
	}

	decision := e.gate.Decide(hits)
	logger.Debug("gate decision",
		"accept", decision.Accept,
		"qualifying", len(decision.Qualifying),
		"top_confidence", decision.TopConfidence)

	result := e.synthesizer.Synthesize(ctx, query, decision)
	result.TraceID = traceID
	if result.Sources == nil {
		result.Sources = []core.FusedHit{}
	}

	latency := time.Since(start)
	e.recorder.RecordScored(result.Status, latency, decision.TopConfidence)
	logger.Info("ask complete", "status", result.Status, "sources", len(result.Sources), "latency", latency)
	return result
}

// Metrics returns the outcome statistics since the engine started.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.recorder.Snapshot()
}

// Count returns the number of chunks in the vector store.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// Loader returns the configured document loader, or nil.
func (e *Engine) Loader() *loader.Loader {
	return e.loader
}
