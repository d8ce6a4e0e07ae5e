package groundwork

import (
	"errors"
	"log/slog"

	"github.com/poiesic/groundwork/gate"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/lexical"
	"github.com/poiesic/groundwork/loader"
	"github.com/poiesic/groundwork/metrics"
	"github.com/poiesic/groundwork/search"
	"github.com/poiesic/groundwork/synthesis"
)

const (
	// DefaultRetrieveK is the number of passages a plain retrieval returns.
	DefaultRetrieveK = 3

	// DefaultAskK is the number of fused candidates an ask request gates.
	DefaultAskK = 7
)

// EngineOption configures an Engine.
type EngineOption func(*engineOptions) error

type engineOptions struct {
	ingestionOpts []ingestion.Option
	retrieverOpts []search.Option
	synthesisOpts []synthesis.Option
	lexicalOpts   []lexical.Option
	gate          *gate.Gate
	recorder      *metrics.Recorder
	loader        *loader.Loader
	retrieveK     int
	askK          int
	logger        *slog.Logger
}

func defaultEngineOptions() *engineOptions {
	return &engineOptions{
		gate:      gate.Default(),
		recorder:  metrics.NewRecorder(),
		retrieveK: DefaultRetrieveK,
		askK:      DefaultAskK,
		logger:    slog.Default(),
	}
}

func WithIngestionOptions(opts ...ingestion.Option) EngineOption {
	return func(o *engineOptions) error {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
		return nil
	}
}

func WithRetrieverOptions(opts ...search.Option) EngineOption {
	return func(o *engineOptions) error {
		o.retrieverOpts = append(o.retrieverOpts, opts...)
		return nil
	}
}

func WithSynthesisOptions(opts ...synthesis.Option) EngineOption {
	return func(o *engineOptions) error {
		o.synthesisOpts = append(o.synthesisOpts, opts...)
		return nil
	}
}

// WithLexicalOptions sets how the lexical index tokenizes and scores. The
// same options apply to the warm start and every rebuild.
func WithLexicalOptions(opts ...lexical.Option) EngineOption {
	return func(o *engineOptions) error {
		o.lexicalOpts = opts
		return nil
	}
}

func WithGate(g *gate.Gate) EngineOption {
	return func(o *engineOptions) error {
		if g != nil {
			o.gate = g
		}
		return nil
	}
}

// WithRecorder shares a metrics recorder, for example one feeding
// Prometheus collectors.
func WithRecorder(r *metrics.Recorder) EngineOption {
	return func(o *engineOptions) error {
		if r != nil {
			o.recorder = r
		}
		return nil
	}
}

// WithLoader enables IngestSources and Reingest.
func WithLoader(l *loader.Loader) EngineOption {
	return func(o *engineOptions) error {
		o.loader = l
		return nil
	}
}

func WithRetrieveK(k int) EngineOption {
	return func(o *engineOptions) error {
		if k < 1 {
			return errors.New("engine: retrieve k must be positive")
		}
		o.retrieveK = k
		return nil
	}
}

func WithAskK(k int) EngineOption {
	return func(o *engineOptions) error {
		if k < 1 {
			return errors.New("engine: ask k must be positive")
		}
		o.askK = k
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}
