package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/chunking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groundwork.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearKeys(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	t.Setenv(FallbackAPIKeyEnv, "")
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, 150, cfg.Chunking.Size)
	assert.Equal(t, 30, cfg.Chunking.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.Equal(t, 7, cfg.Retrieval.AskK)
	assert.Equal(t, 60.0, cfg.Retrieval.RRFConstant)
	assert.Equal(t, 0.6, cfg.Gate.Threshold)
	assert.Equal(t, 1, cfg.Gate.MinQualifying)
	assert.Equal(t, 0.8, cfg.Gate.LexicalConfidence)
	assert.Equal(t, 5, cfg.Synthesis.MaxContext)
	assert.Equal(t, 1, cfg.Synthesis.Policy.MaxAttempts)
	assert.Equal(t, 0.1, cfg.AI.Temperature)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysFile(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, `
[storage]
backend = "qdrant"
qdrant_addr = "qdrant:6334"

[ai]
provider = "openai"
generation_host = "https://router.huggingface.co"
embedding_host = "https://router.huggingface.co"
generation_model = "meta-llama/Llama-3.1-8B-Instruct"
api_key = "from-file"

[chunking]
size = 200

[synthesis.policy]
max_attempts = 3
base_delay = "250ms"
timeout = "30s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendQdrant, cfg.Storage.Backend)
	assert.Equal(t, "qdrant:6334", cfg.Storage.QdrantAddr)
	assert.Equal(t, "docs_collection", cfg.Storage.Collection, "unset keys keep defaults")
	assert.Equal(t, 200, cfg.Chunking.Size)
	assert.Equal(t, 30, cfg.Chunking.Overlap)
	assert.Equal(t, "from-file", cfg.AI.APIKey)
	assert.Equal(t, 3, cfg.Synthesis.Policy.MaxAttempts)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Synthesis.Policy.BaseDelay)
	assert.Equal(t, Duration(30*time.Second), cfg.Synthesis.Policy.Timeout)
	require.NoError(t, cfg.Validate())

	aiCfg := cfg.ToAIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "https://router.huggingface.co/v1", aiCfg.GenerationHost)
}

func TestLoad_APIKeyFromEnvironment(t *testing.T) {
	t.Run("primary variable", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "primary")
		t.Setenv(FallbackAPIKeyEnv, "fallback")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "primary", cfg.AI.APIKey)
	})

	t.Run("fallback variable", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		t.Setenv(FallbackAPIKeyEnv, "fallback")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "fallback", cfg.AI.APIKey)
	})

	t.Run("file wins", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "primary")
		cfg, err := Load(writeConfig(t, "[ai]\napi_key = \"file\"\n"))
		require.NoError(t, err)
		assert.Equal(t, "file", cfg.AI.APIKey)
	})
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[chunking\nsize = 1"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[synthesis.policy]\nbase_delay = \"soon\"\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearKeys(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"overlap not below size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }, chunking.ErrInvalidParameters},
		{"openai without key", func(c *Config) { c.AI.Provider = ai.ProviderOpenAI }, ai.ErrMissingCredentials},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "chroma" }, ErrInvalidConfig},
		{"qdrant without address", func(c *Config) {
			c.Storage.Backend = BackendQdrant
			c.Storage.QdrantAddr = ""
		}, ErrInvalidConfig},
		{"threshold out of range", func(c *Config) { c.Gate.Threshold = 1.5 }, ErrInvalidConfig},
		{"zero k", func(c *Config) { c.Retrieval.K = 0 }, ErrInvalidConfig},
		{"zero attempts", func(c *Config) { c.Ingestion.EmbedPolicy.MaxAttempts = 0 }, ErrInvalidConfig},
		{"bad rate limit", func(c *Config) {
			c.Synthesis.Policy.RatePerSecond = 2
			c.Synthesis.Policy.RateBurst = 0
		}, ErrInvalidConfig},
		{"no loader root", func(c *Config) { c.Loader.Root = "" }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Synthesis.Policy.Timeout = Duration(45 * time.Second)

	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "45s")

	loaded, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg.Synthesis, loaded.Synthesis)
	assert.Equal(t, cfg.Gate, loaded.Gate)
}
