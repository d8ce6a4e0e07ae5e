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


// Package synthesis turns accepted retrieval results into a generated answer.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/groundwork/ai"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/gate"
	"github.com/poiesic/groundwork/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultMaxContext is the number of qualifying passages placed in the prompt.
	DefaultMaxContext = 5

	// DefaultLexicalSourceScore is the score shown for keyword-only sources.
	DefaultLexicalSourceScore = 0.9999
)

var (
	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	ErrInvalidMaxContext = errors.New("synthesis: max context must be positive")
)

var tracer = otel.Tracer("github.com/poiesic/groundwork/synthesis")

// Synthesizer asks the generative model for an answer grounded in the
// passages a gate accepted.
type Synthesizer struct {
	generator    ai.Generator
	policy       *resilience.Policy
	maxContext   int
	lexicalScore float64
	logger       *slog.Logger
}

type Option func(*Synthesizer) error

// WithPolicy sets the retry and timeout policy around generation.
// Default: a single attempt.
func WithPolicy(policy *resilience.Policy) Option {
	return func(s *Synthesizer) error {
		if policy != nil {
			s.policy = policy
		}
		return nil
	}
}

func WithMaxContext(n int) Option {
	return func(s *Synthesizer) error {
		if n < 1 {
			return ErrInvalidMaxContext
		}
		s.maxContext = n
		return nil
	}
}

func WithLexicalSourceScore(score float64) Option {
	return func(s *Synthesizer) error {
		s.lexicalScore = score
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

func New(generator ai.Generator, opts ...Option) (*Synthesizer, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	s := &Synthesizer{
		generator:    generator,
		policy:       resilience.Single("generator"),
		maxContext:   DefaultMaxContext,
		lexicalScore: DefaultLexicalSourceScore,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "synthesizer")
	return s, nil
}

// Refuse builds the low-context result for a rejected decision. Every
// retrieved hit is returned as a source so callers can see what was found.
func Refuse(d gate.Decision) core.AnswerResult {
	return core.AnswerResult{
		Answer:      core.RefusalSentence,
		Status:      core.StatusLowContext,
		Sources:     d.Hits,
		Explanation: d.Explanation,
	}
}

// Synthesize generates an answer for query from an accepted decision. A
// rejected decision yields Refuse(d) without calling the model.
//
// The model sees at most MaxContext qualifying passages, in rank order. An
// answer that declines is reported as low context. A generator failure is
// reported as an error result carrying every retrieved hit.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, d gate.Decision) core.AnswerResult {
	if !d.Accept {
		return Refuse(d)
	}

	ctx, span := tracer.Start(ctx, "synthesis.synthesize")
	defer span.End()

	passages := d.Qualifying
	if len(passages) > s.maxContext {
		passages = passages[:s.maxContext]
	}
	span.SetAttributes(attribute.Int("passages", len(passages)))

	prompt := BuildPrompt(query, passages)
	answer, err := resilience.Call(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.generator.Complete(ctx, prompt)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("answer generation failed", "err", err)
		return core.AnswerResult{
			Answer:  fmt.Sprintf("Error generating answer: %v", err),
			Status:  core.StatusError,
			Sources: d.Hits,
		}
	}

	answer = strings.TrimSpace(answer)
	status := core.StatusSuccess
	if IsRefusal(answer) {
		status = core.StatusLowContext
		s.logger.Info("model declined to answer from accepted context", "passages", len(passages))
	}

	return core.AnswerResult{
		Answer:  answer,
		Status:  status,
		Sources: s.score(passages),
	}
}

// score attaches the display score to each source.
func (s *Synthesizer) score(passages []core.FusedHit) []core.FusedHit {
	sources := make([]core.FusedHit, len(passages))
	for i, p := range passages {
		if p.LexicalOnly() {
			p.Confidence = s.lexicalScore
		} else {
			p.Confidence = p.Similarity
		}
		sources[i] = p
	}
	return sources
}
