package metrics

import (
	"time"

	"github.com/poiesic/groundwork/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors exposes recorder outcomes to Prometheus.
type Collectors struct {
	Requests      *prometheus.CounterVec
	Latency       prometheus.Histogram
	TopConfidence prometheus.Histogram
}

// NewCollectors creates the ask collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groundwork_ask_requests_total",
			Help: "Total number of ask requests by outcome",
		}, []string{"status"}),

		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "groundwork_ask_latency_seconds",
			Help:    "End-to-end ask latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),

		TopConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "groundwork_ask_top_confidence",
			Help:    "Highest retrieval confidence seen per ask request",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}

	// Pre-create the status series so they report zero before first use.
	for _, s := range []core.Status{core.StatusSuccess, core.StatusLowContext, core.StatusError} {
		c.Requests.WithLabelValues(string(s))
	}

	if reg != nil {
		for _, collector := range []prometheus.Collector{c.Requests, c.Latency, c.TopConfidence} {
			if err := reg.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Collectors) observe(status core.Status, latency time.Duration, score float64, scored bool) {
	c.Requests.WithLabelValues(string(status)).Inc()
	c.Latency.Observe(latency.Seconds())
	if scored {
		c.TopConfidence.Observe(score)
	}
}
