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


// Package config loads engine configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/chunking"
	"github.com/poiesic/groundwork/gate"
	"github.com/poiesic/groundwork/loader"
	"github.com/poiesic/groundwork/resilience"
	"github.com/poiesic/groundwork/search"
	"github.com/poiesic/groundwork/storage/qdrant"
	"github.com/poiesic/groundwork/synthesis"
)

const (
	BackendBadger = "badger"
	BackendQdrant = "qdrant"

	// APIKeyEnv is read when the file carries no API key.
	APIKeyEnv = "GROUNDWORK_API_KEY"

	// FallbackAPIKeyEnv is read when APIKeyEnv is unset.
	FallbackAPIKeyEnv = "HUGGINGFACE_API_KEY"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as a string such as "500ms" in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Storage   Storage   `toml:"storage"`
	AI        AI        `toml:"ai"`
	Chunking  Chunking  `toml:"chunking"`
	Retrieval Retrieval `toml:"retrieval"`
	Gate      Gate      `toml:"gate"`
	Synthesis Synthesis `toml:"synthesis"`
	Ingestion Ingestion `toml:"ingestion"`
	Loader    Loader    `toml:"loader"`
	NATS      NATS      `toml:"nats"`
}

type Storage struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	InMemory   bool   `toml:"in_memory"`
	QdrantAddr string `toml:"qdrant_addr"`
	Collection string `toml:"collection"`
}

type AI struct {
	Provider        string  `toml:"provider"`
	EmbeddingHost   string  `toml:"embedding_host"`
	GenerationHost  string  `toml:"generation_host"`
	EmbeddingModel  string  `toml:"embedding_model"`
	GenerationModel string  `toml:"generation_model"`
	APIKey          string  `toml:"api_key"`
	Temperature     float64 `toml:"temperature"`
}

type Chunking struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

type Retrieval struct {
	K                     int     `toml:"k"`
	AskK                  int     `toml:"ask_k"`
	RRFConstant           float64 `toml:"rrf_constant"`
	PlaceholderSimilarity float64 `toml:"placeholder_similarity"`
	CaseInsensitive       bool    `toml:"case_insensitive"`
	Degrade               bool    `toml:"degrade"`
}

type Gate struct {
	Threshold         float64 `toml:"threshold"`
	MinQualifying     int     `toml:"min_qualifying"`
	LexicalConfidence float64 `toml:"lexical_confidence"`
}

// Policy configures retries, timeouts and rate limits around a collaborator.
type Policy struct {
	MaxAttempts   int      `toml:"max_attempts"`
	BaseDelay     Duration `toml:"base_delay"`
	Timeout       Duration `toml:"timeout"`
	RatePerSecond float64  `toml:"rate_per_second"`
	RateBurst     int      `toml:"rate_burst"`
}

type Synthesis struct {
	MaxContext         int     `toml:"max_context"`
	LexicalSourceScore float64 `toml:"lexical_source_score"`
	Policy             Policy  `toml:"policy"`
}

type Ingestion struct {
	PoolSize    int    `toml:"pool_size"`
	Normalize   bool   `toml:"normalize"`
	EmbedPolicy Policy `toml:"embed_policy"`
	StorePolicy Policy `toml:"store_policy"`
}

type Loader struct {
	Root        string `toml:"root"`
	JSONPattern string `toml:"json_pattern"`
	PDFPattern  string `toml:"pdf_pattern"`
}

type NATS struct {
	URL    string `toml:"url"`
	Prefix string `toml:"prefix"`
	Queue  string `toml:"queue"`
}

func defaultPolicy() Policy {
	return Policy{MaxAttempts: 1, BaseDelay: Duration(500 * time.Millisecond), RateBurst: 1}
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Storage: Storage{
			Backend:    BackendBadger,
			Path:       "data/groundwork.db",
			QdrantAddr: "localhost:6334",
			Collection: qdrant.DefaultCollection,
		},
		AI: AI{
			Provider:        aiDefaults.Provider,
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			GenerationHost:  aiDefaults.GenerationHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			GenerationModel: aiDefaults.GenerationModel,
			Temperature:     aiDefaults.Temperature,
		},
		Chunking: Chunking{
			Size:    chunking.DefaultChunkSize,
			Overlap: chunking.DefaultOverlap,
		},
		Retrieval: Retrieval{
			K:                     3,
			AskK:                  7,
			RRFConstant:           search.DefaultRRFConstant,
			PlaceholderSimilarity: search.DefaultPlaceholderSimilarity,
		},
		Gate: Gate{
			Threshold:         gate.DefaultThreshold,
			MinQualifying:     gate.DefaultMinQualifying,
			LexicalConfidence: gate.DefaultLexicalConfidence,
		},
		Synthesis: Synthesis{
			MaxContext:         synthesis.DefaultMaxContext,
			LexicalSourceScore: synthesis.DefaultLexicalSourceScore,
			Policy:             defaultPolicy(),
		},
		Ingestion: Ingestion{
			Normalize:   true,
			EmbedPolicy: defaultPolicy(),
			StorePolicy: defaultPolicy(),
		},
		Loader: Loader{
			Root:        "data",
			JSONPattern: loader.DefaultJSONPattern,
			PDFPattern:  loader.DefaultPDFPattern,
		},
		NATS: NATS{
			URL:    "nats://127.0.0.1:4222",
			Prefix: "groundwork",
			Queue:  "groundwork",
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
// The API key falls back to the environment in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.AI.APIKey != "" {
		return
	}
	if key := os.Getenv(APIKeyEnv); key != "" {
		c.AI.APIKey = key
		return
	}
	c.AI.APIKey = os.Getenv(FallbackAPIKeyEnv)
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// ToAIConfig converts the [ai] section.
func (c *Config) ToAIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(c.AI.Provider),
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithTemperature(c.AI.Temperature),
	)
}

// Build turns the section into a resilience policy.
func (p Policy) Build(name string) (*resilience.Policy, error) {
	opts := []resilience.Option{
		resilience.WithMaxAttempts(p.MaxAttempts),
		resilience.WithBaseDelay(time.Duration(p.BaseDelay)),
	}
	if p.Timeout > 0 {
		opts = append(opts, resilience.WithAttemptTimeout(time.Duration(p.Timeout)))
	}
	if p.RatePerSecond > 0 {
		opts = append(opts, resilience.WithRateLimit(p.RatePerSecond, p.RateBurst))
	}
	return resilience.New(name, opts...)
}

// Validate returns the first configuration error found.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			return fmt.Errorf("%w: storage.path is required for the badger backend", ErrInvalidConfig)
		}
	case BackendQdrant:
		if c.Storage.QdrantAddr == "" {
			return fmt.Errorf("%w: storage.qdrant_addr is required for the qdrant backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	if err := c.ToAIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := chunking.Validate(c.Chunking.Size, c.Chunking.Overlap); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Retrieval.K < 1 || c.Retrieval.AskK < 1 {
		return fmt.Errorf("%w: retrieval.k and retrieval.ask_k must be positive", ErrInvalidConfig)
	}
	if _, err := gate.New(
		gate.WithThreshold(c.Gate.Threshold),
		gate.WithMinQualifying(c.Gate.MinQualifying),
		gate.WithLexicalConfidence(c.Gate.LexicalConfidence),
	); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Synthesis.MaxContext < 1 {
		return fmt.Errorf("%w: synthesis.max_context must be positive", ErrInvalidConfig)
	}
	for _, p := range []struct {
		name   string
		policy Policy
	}{
		{"synthesis.policy", c.Synthesis.Policy},
		{"ingestion.embed_policy", c.Ingestion.EmbedPolicy},
		{"ingestion.store_policy", c.Ingestion.StorePolicy},
	} {
		if _, err := p.policy.Build(p.name); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, p.name, err)
		}
	}
	if c.Loader.Root == "" {
		return fmt.Errorf("%w: loader.root is required", ErrInvalidConfig)
	}
	return nil
}
