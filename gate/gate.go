// Package gate decides whether retrieved evidence is strong enough to
// attempt an answer.
package gate

import (
	"errors"
	"fmt"

	"github.com/poiesic/groundwork/core"
)

const (
	// DefaultThreshold is the similarity a semantic hit needs to qualify.
	DefaultThreshold = 0.60

	// DefaultMinQualifying is the number of qualifying hits needed to accept.
	DefaultMinQualifying = 1

	// DefaultLexicalConfidence is the confidence assigned to hits found only
	// by keyword match. Such hits always qualify.
	DefaultLexicalConfidence = 0.8
)

var ErrInvalidPolicy = errors.New("gate: invalid policy")

// Gate is an immutable acceptance policy.
type Gate struct {
	threshold         float64
	minQualifying     int
	lexicalConfidence float64
}

type Option func(*Gate)

func WithThreshold(t float64) Option {
	return func(g *Gate) { g.threshold = t }
}

func WithMinQualifying(n int) Option {
	return func(g *Gate) { g.minQualifying = n }
}

func WithLexicalConfidence(c float64) Option {
	return func(g *Gate) { g.lexicalConfidence = c }
}

// New builds a gate. Threshold and lexical confidence must lie in [0,1] and
// at least one qualifying hit must be required.
func New(opts ...Option) (*Gate, error) {
	g := &Gate{
		threshold:         DefaultThreshold,
		minQualifying:     DefaultMinQualifying,
		lexicalConfidence: DefaultLexicalConfidence,
	}
	for _, opt := range opts {
		opt(g)
	}
	switch {
	case g.threshold < 0 || g.threshold > 1:
		return nil, fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidPolicy, g.threshold)
	case g.lexicalConfidence < 0 || g.lexicalConfidence > 1:
		return nil, fmt.Errorf("%w: lexical confidence %v outside [0,1]", ErrInvalidPolicy, g.lexicalConfidence)
	case g.minQualifying < 1:
		return nil, fmt.Errorf("%w: minimum qualifying hits must be at least 1, got %d", ErrInvalidPolicy, g.minQualifying)
	}
	return g, nil
}

// Default returns the gate with default policy values.
func Default() *Gate {
	g, _ := New()
	return g
}

func (g *Gate) Threshold() float64 { return g.threshold }

func (g *Gate) MinQualifying() int { return g.minQualifying }

// Decision is the outcome of gating one retrieval.
type Decision struct {
	Accept bool

	// TopConfidence is the highest confidence among all hits, 0 when there
	// were none.
	TopConfidence float64

	// Hits are the input hits with Confidence filled in, in input order.
	Hits []core.FusedHit

	// Qualifying is the subset of Hits that met the policy, in input order.
	Qualifying []core.FusedHit

	Threshold   float64
	MinRequired int

	// Explanation is set on rejection only.
	Explanation string
}

// Decide applies the policy to fused hits. Semantic hits are scored by
// similarity and qualify at or above the threshold. Lexical-only hits get
// the fixed lexical confidence and always qualify. TopConfidence is the
// maximum over every hit, so a keyword match lifts it to the lexical
// confidence even when a weaker semantic hit came first.
func (g *Gate) Decide(hits []core.FusedHit) Decision {
	d := Decision{
		Hits:        make([]core.FusedHit, len(hits)),
		Threshold:   g.threshold,
		MinRequired: g.minQualifying,
	}

	for i, hit := range hits {
		qualifies := false
		if hit.LexicalOnly() {
			hit.Confidence = g.lexicalConfidence
			qualifies = true
		} else {
			hit.Confidence = clamp(hit.Similarity)
			qualifies = hit.Similarity >= g.threshold
		}
		d.TopConfidence = max(d.TopConfidence, hit.Confidence)
		d.Hits[i] = hit
		if qualifies {
			d.Qualifying = append(d.Qualifying, hit)
		}
	}

	d.Accept = len(d.Qualifying) >= g.minQualifying
	if !d.Accept {
		d.Explanation = g.explain(len(hits), len(d.Qualifying), d.TopConfidence)
	}
	return d
}

func (g *Gate) explain(total, qualifying int, top float64) string {
	if total == 0 {
		return fmt.Sprintf("No relevant documents found (threshold %.2f, needed %d, top score %.4f)",
			g.threshold, g.minQualifying, top)
	}
	return fmt.Sprintf("Only found %d chunks above %.2f threshold (needed %d). Top score: %.4f",
		qualifying, g.threshold, g.minQualifying, top)
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
