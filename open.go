package groundwork

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/ai/ollama"
	"github.com/poiesic/groundwork/ai/openai"
	"github.com/poiesic/groundwork/chunking"
	"github.com/poiesic/groundwork/config"
	"github.com/poiesic/groundwork/gate"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/lexical"
	"github.com/poiesic/groundwork/loader"
	"github.com/poiesic/groundwork/search"
	"github.com/poiesic/groundwork/storage"
	"github.com/poiesic/groundwork/storage/badger"
	"github.com/poiesic/groundwork/storage/qdrant"
	"github.com/poiesic/groundwork/synthesis"
)

// Open validates cfg and builds an engine with the store and provider it
// names. Extra options are applied after the ones derived from cfg.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	derived, err := engineOptionsFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	provider, err := NewProvider(cfg.ToAIConfig())
	if err != nil {
		store.Close()
		return nil, err
	}

	engine, err := NewEngine(ctx, store, provider, append(derived, opts...)...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}
	return engine, nil
}

// OpenStore opens the vector store selected by the [storage] section.
func OpenStore(cfg config.Storage, logger *slog.Logger) (storage.VectorStore, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		store, err := badger.OpenStore(cfg.Path, cfg.InMemory, badger.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendQdrant:
		store, err := qdrant.NewStore(cfg.QdrantAddr, qdrant.WithCollection(cfg.Collection), qdrant.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// NewProvider builds the AI provider selected by cfg.Provider.
func NewProvider(cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return openai.NewProvider(cfg)
	case ai.ProviderOllama:
		return ollama.NewProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func engineOptionsFromConfig(cfg *config.Config, logger *slog.Logger) ([]EngineOption, error) {
	chunker, err := chunking.New(
		chunking.WithChunkSize(cfg.Chunking.Size),
		chunking.WithOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return nil, err
	}

	embedPolicy, err := cfg.Ingestion.EmbedPolicy.Build("embedder")
	if err != nil {
		return nil, err
	}
	storePolicy, err := cfg.Ingestion.StorePolicy.Build("vector-store")
	if err != nil {
		return nil, err
	}
	generatorPolicy, err := cfg.Synthesis.Policy.Build("generator")
	if err != nil {
		return nil, err
	}

	g, err := gate.New(
		gate.WithThreshold(cfg.Gate.Threshold),
		gate.WithMinQualifying(cfg.Gate.MinQualifying),
		gate.WithLexicalConfidence(cfg.Gate.LexicalConfidence),
	)
	if err != nil {
		return nil, err
	}

	l, err := loader.New(cfg.Loader.Root,
		loader.WithJSONPattern(cfg.Loader.JSONPattern),
		loader.WithPDFPattern(cfg.Loader.PDFPattern),
		loader.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	ingestionOpts := []ingestion.Option{
		ingestion.WithChunker(chunker),
		ingestion.WithEmbedPolicy(embedPolicy),
		ingestion.WithStorePolicy(storePolicy),
		ingestion.WithNormalize(cfg.Ingestion.Normalize),
	}
	if cfg.Ingestion.PoolSize > 0 {
		ingestionOpts = append(ingestionOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}

	return []EngineOption{
		WithLogger(logger),
		WithIngestionOptions(ingestionOpts...),
		WithRetrieverOptions(
			search.WithRRFConstant(cfg.Retrieval.RRFConstant),
			search.WithPlaceholderSimilarity(cfg.Retrieval.PlaceholderSimilarity),
			search.WithNormalize(cfg.Ingestion.Normalize),
			search.WithDegrade(cfg.Retrieval.Degrade),
		),
		WithSynthesisOptions(
			synthesis.WithPolicy(generatorPolicy),
			synthesis.WithMaxContext(cfg.Synthesis.MaxContext),
			synthesis.WithLexicalSourceScore(cfg.Synthesis.LexicalSourceScore),
		),
		WithLexicalOptions(lexical.WithCaseInsensitive(cfg.Retrieval.CaseInsensitive)),
		WithGate(g),
		WithLoader(l),
		WithRetrieveK(cfg.Retrieval.K),
		WithAskK(cfg.Retrieval.AskK),
	}, nil
}
