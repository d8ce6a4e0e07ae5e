package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434", cfg.GenerationHost)
	assert.Equal(t, "all-minilm", cfg.EmbeddingModel)
	assert.Equal(t, "llama3.1:8b", cfg.GenerationModel)
	assert.InDelta(t, 0.1, cfg.Temperature, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080"))

		assert.Equal(t, "http://custom:8080", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080", cfg.GenerationHost)
	})

	t.Run("with separate hosts and models", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderOpenAI),
			WithEmbeddingHost("http://embed:8080/v1"),
			WithGenerationHost("https://router.huggingface.co/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithGenerationModel("meta-llama/Llama-3.1-8B-Instruct"),
			WithAPIKey("secret"),
			WithTemperature(0.3),
		)

		assert.Equal(t, ProviderOpenAI, cfg.Provider)
		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "https://router.huggingface.co/v1", cfg.GenerationHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct", cfg.GenerationModel)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.InDelta(t, 0.3, cfg.Temperature, 1e-9)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("openai hosts gain /v1", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(" OpenAI "),
			WithEmbeddingHost("http://localhost:8000/"),
			WithGenerationHost("https://router.huggingface.co/v1/"),
		)
		cfg.Normalize()

		assert.Equal(t, ProviderOpenAI, cfg.Provider)
		assert.Equal(t, "http://localhost:8000/v1", cfg.EmbeddingHost)
		assert.Equal(t, "https://router.huggingface.co/v1", cfg.GenerationHost)
	})

	t.Run("ollama hosts are untouched", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://localhost:11434"))
		cfg.Normalize()

		assert.Equal(t, "http://localhost:11434", cfg.EmbeddingHost)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		opts []ConfigOption
		want string
	}{
		{"unknown provider", []ConfigOption{WithProvider("bedrock")}, `ai config: unknown provider "bedrock"`},
		{"missing embedding host", []ConfigOption{WithEmbeddingHost("")}, "ai config: EmbeddingHost is required"},
		{"missing generation host", []ConfigOption{WithGenerationHost("")}, "ai config: GenerationHost is required"},
		{"missing embedding model", []ConfigOption{WithEmbeddingModel("")}, "ai config: EmbeddingModel is required"},
		{"missing generation model", []ConfigOption{WithGenerationModel("")}, "ai config: GenerationModel is required"},
		{"temperature out of range", []ConfigOption{WithTemperature(3)}, "ai config: Temperature must be between 0 and 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opts...).Validate()
			require.Error(t, err)
			assert.EqualError(t, err, tt.want)
		})
	}

	t.Run("openai needs credentials", func(t *testing.T) {
		cfg := NewConfig(WithProvider(ProviderOpenAI))
		assert.ErrorIs(t, cfg.Validate(), ErrMissingCredentials)

		cfg.APIKey = "key"
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})
}
