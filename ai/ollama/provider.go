// Package ollama provides AI service implementations backed by a local
// Ollama server.
package ollama

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/ai/langchain"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Provider implements ai.AIProvider with Ollama models.
type Provider struct {
	embedder  *langchain.Embedder
	generator *langchain.Generator
	logger    *slog.Logger
}

// NewProvider creates a provider for config.Provider == "ollama".
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Provider != ai.ProviderOllama {
		return nil, fmt.Errorf("ollama: config selects provider %q", config.Provider)
	}

	embedClient, err := ollama.New(
		ollama.WithServerURL(config.EmbeddingHost),
		ollama.WithModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(embedClient)
	if err != nil {
		return nil, fmt.Errorf("ollama: embedder: %w", err)
	}

	genClient, err := ollama.New(
		ollama.WithServerURL(config.GenerationHost),
		ollama.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: generation client: %w", err)
	}

	return &Provider{
		embedder:  langchain.NewEmbedder(embedder, slog.Default().With("component", "ollama-embedder")),
		generator: langchain.NewGenerator(genClient, config.Temperature, slog.Default().With("component", "ollama-generator")),
		logger:    slog.Default().With("component", "ollama-provider"),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

func (p *Provider) Close() error {
	p.logger.Debug("closing Ollama provider")
	return nil
}
