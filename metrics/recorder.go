// Package metrics tracks the outcome of every ask request.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/poiesic/groundwork/core"
)

// Counts holds per-status request totals.
type Counts struct {
	Success    int64 `json:"success"`
	LowContext int64 `json:"low_context"`
	Error      int64 `json:"error"`
}

// Snapshot is a point-in-time view of the recorder.
type Snapshot struct {
	UptimeSeconds int64   `json:"uptime_seconds"`
	TotalRequests int64   `json:"total_requests"`
	SuccessRate   float64 `json:"success_rate"`
	RefusalRate   float64 `json:"refusal_rate"`
	ErrorRate     float64 `json:"error_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	AvgTopScore   float64 `json:"avg_top_score"`
	Counts        Counts  `json:"counts"`
}

// Recorder accumulates request outcomes. It is safe for concurrent use and
// lives as long as the engine that owns it.
type Recorder struct {
	mu         sync.Mutex
	start      time.Time
	now        func() time.Time
	total      int64
	counts     Counts
	latency    time.Duration
	scoreSum   float64
	scoreCount int64
	collectors *Collectors
}

type Option func(*Recorder)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCollectors mirrors every recorded outcome into Prometheus collectors.
func WithCollectors(c *Collectors) Option {
	return func(r *Recorder) {
		r.collectors = c
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.now()
	return r
}

// Record counts one request without a top score, as for failures that
// happen before anything is retrieved.
func (r *Recorder) Record(status core.Status, latency time.Duration) {
	r.record(status, latency, 0, false)
}

// RecordScored counts one request together with its top confidence.
func (r *Recorder) RecordScored(status core.Status, latency time.Duration, topConfidence float64) {
	r.record(status, latency, topConfidence, true)
}

func (r *Recorder) record(status core.Status, latency time.Duration, score float64, scored bool) {
	r.mu.Lock()
	r.total++
	r.latency += latency
	switch status {
	case core.StatusSuccess:
		r.counts.Success++
	case core.StatusLowContext:
		r.counts.LowContext++
	default:
		r.counts.Error++
	}
	if scored {
		r.scoreSum += score
		r.scoreCount++
	}
	r.mu.Unlock()

	if r.collectors != nil {
		r.collectors.observe(status, latency, score, scored)
	}
}

// Snapshot computes rates and averages as of now. All ratios are 0 before
// the first request.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		UptimeSeconds: int64(r.now().Sub(r.start) / time.Second),
		TotalRequests: r.total,
		Counts:        r.counts,
	}
	if r.total > 0 {
		n := float64(r.total)
		s.SuccessRate = float64(r.counts.Success) / n
		s.RefusalRate = float64(r.counts.LowContext) / n
		s.ErrorRate = float64(r.counts.Error) / n
		avgMs := float64(r.latency) / float64(time.Millisecond) / n
		s.AvgLatencyMs = round(avgMs, 2)
	}
	if r.scoreCount > 0 {
		s.AvgTopScore = round(r.scoreSum/float64(r.scoreCount), 4)
	}
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
