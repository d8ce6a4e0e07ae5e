// Package resilience wraps collaborator calls in a single retry, timeout and
// rate-limit policy.
//
// The zero-configuration policy makes exactly one attempt with no timeout,
// so wrapping a call changes nothing until a policy is configured.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidRateLimit is returned for a non-positive rate or burst.
	ErrInvalidRateLimit = errors.New("rate limit must have positive rate and burst")
)

// Policy governs how a collaborator call is attempted.
type Policy struct {
	name        string
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy) error

// WithMaxAttempts sets how many times an operation is tried.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = n
		return nil
	}
}

// WithBaseDelay sets the first backoff delay; it doubles after every failure.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) error {
		p.baseDelay = d
		return nil
	}
}

// WithAttemptTimeout bounds each attempt. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(p *Policy) error {
		p.timeout = d
		return nil
	}
}

// WithRateLimit admits at most perSecond attempts per second with the given
// burst. Waiting for admission honours the caller's context.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *Policy) error {
		if perSecond <= 0 || burst <= 0 {
			return ErrInvalidRateLimit
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// New builds a policy named after the collaborator it protects.
func New(name string, opts ...Option) (*Policy, error) {
	p := &Policy{
		name:        name,
		maxAttempts: 1,
		baseDelay:   500 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "resilience", "policy", name)
	return p, nil
}

// Single returns a policy that makes one attempt with no timeout or limit.
func Single(name string) *Policy {
	p, _ := New(name)
	return p
}

func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Do runs op under the policy and returns nil on the first success or the
// last error. Each attempt gets its own context, bounded by the attempt
// timeout when one is set.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	return RetryWithBackoff(ctx, func() error {
		attempt++
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}
		attemptCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		err := op(attemptCtx)
		if err != nil && attempt < p.maxAttempts {
			p.logger.Warn("attempt failed", "attempt", attempt, "maxAttempts", p.maxAttempts, "err", err)
		}
		return err
	}, p.maxAttempts, p.baseDelay)
}

// Call is Do for operations that produce a value.
func Call[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
