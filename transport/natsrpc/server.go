// Package natsrpc serves engine operations over NATS request/reply.
//
// Every operation listens on "<prefix>.<op>" within a queue group, takes a
// JSON request body and replies with a JSON body. Failures are replied as
// {"error": "..."}. Trace context travels in message headers.
package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	OpIngest   = "ingest"
	OpReingest = "reingest"
	OpRetrieve = "retrieve"
	OpAsk      = "ask"
	OpMetrics  = "metrics"
	OpCount    = "count"
)

// Ops lists every served operation.
var Ops = []string{OpIngest, OpReingest, OpRetrieve, OpAsk, OpMetrics, OpCount}

const (
	// DefaultWorkers bounds the requests handled at once per server.
	DefaultWorkers = 16

	// DefaultDrainTimeout bounds how long Stop waits for in-flight requests.
	DefaultDrainTimeout = 30 * time.Second
)

var (
	ErrBackendRequired = errors.New("natsrpc: backend required")
	ErrUnknownOp       = errors.New("natsrpc: unknown operation")
	ErrEmptyQuery      = errors.New("natsrpc: query is required")
	ErrAlreadyStarted  = errors.New("natsrpc: server already started")
	ErrInvalidWorkers  = errors.New("natsrpc: workers must be positive")
)

var tracer = otel.Tracer("github.com/poiesic/groundwork/transport/natsrpc")

// Backend is the engine surface exposed over NATS.
type Backend interface {
	IngestSources(ctx context.Context) *ingestion.Report
	Reingest(ctx context.Context) *ingestion.Report
	Retrieve(ctx context.Context, query string, k int) ([]core.Passage, error)
	Ask(ctx context.Context, query string) core.AnswerResult
	Metrics() metrics.Snapshot
	Count(ctx context.Context) (int, error)
}

type RetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type RetrieveResponse struct {
	Results []core.Passage `json:"results"`
}

type AskRequest struct {
	Query string `json:"query"`
}

type IngestResponse struct {
	Status string            `json:"status"`
	Stats  *ingestion.Report `json:"stats"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	backend Backend
	prefix  string
	queue   string
	timeout time.Duration
	workers int
	drain   time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
	pool *ants.Pool
}

type Option func(*Server)

// WithPrefix sets the subject prefix. Default: "groundwork".
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithQueue sets the queue group shared by server instances.
func WithQueue(queue string) Option {
	return func(s *Server) {
		s.queue = queue
	}
}

// WithRequestTimeout bounds each request's context. Zero means no bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithWorkers sets how many requests are handled concurrently. A request
// arriving while every worker is busy waits for one to free up.
func WithWorkers(n int) Option {
	return func(s *Server) {
		s.workers = n
	}
}

// WithDrainTimeout bounds how long Stop waits for in-flight requests.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.drain = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

func NewServer(backend Backend, opts ...Option) (*Server, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	s := &Server{
		backend: backend,
		prefix:  "groundwork",
		queue:   "groundwork",
		workers: DefaultWorkers,
		drain:   DefaultDrainTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers <= 0 {
		return nil, ErrInvalidWorkers
	}
	s.logger = s.logger.With("component", "natsrpc")
	return s, nil
}

// Subject returns the subject an operation is served on.
func (s *Server) Subject(op string) string {
	return s.prefix + "." + op
}

// Start subscribes every operation on nc. Messages are handed to a worker
// pool so a slow request never holds up the others.
func (s *Server) Start(nc *nats.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return ErrAlreadyStarted
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return fmt.Errorf("natsrpc: create worker pool: %w", err)
	}
	s.pool = pool

	for _, op := range Ops {
		sub, err := nc.QueueSubscribe(s.Subject(op), s.queue, func(msg *nats.Msg) {
			s.dispatchMsg(pool, op, msg)
		})
		if err != nil {
			s.stopLocked()
			return fmt.Errorf("natsrpc: subscribe %s: %w", s.Subject(op), err)
		}
		s.subs = append(s.subs, sub)
	}
	s.logger.Info("serving", "prefix", s.prefix, "queue", s.queue, "ops", len(Ops), "workers", s.workers)
	return nil
}

// Stop drains every subscription and waits for in-flight requests to
// finish, up to the drain timeout.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Server) stopLocked() {
	deadline := time.Now().Add(s.drain)
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			s.logger.Warn("drain failed", "subject", sub.Subject, "err", err)
		}
	}
	for _, sub := range s.subs {
		for sub.IsValid() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}
	s.subs = nil

	if s.pool == nil {
		return
	}
	if err := s.pool.ReleaseTimeout(max(time.Until(deadline), time.Millisecond)); err != nil {
		s.logger.Warn("in-flight requests outlived drain timeout", "err", err)
	}
	s.pool = nil
}

// dispatchMsg runs on the subscription's delivery goroutine. It blocks only
// while every worker is busy.
func (s *Server) dispatchMsg(pool *ants.Pool, op string, msg *nats.Msg) {
	if err := pool.Submit(func() { s.serve(op, msg) }); err != nil {
		s.logger.Error("submit request", "op", op, "err", err)
		if msg.Reply != "" {
			out, _ := json.Marshal(ErrorResponse{Error: err.Error()})
			_ = msg.Respond(out)
		}
	}
}

func (s *Server) serve(op string, msg *nats.Msg) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply := s.Handle(ctx, op, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		s.logger.Error("respond failed", "op", op, "err", err)
	}
}

// Handle runs one operation on a JSON request body and returns the JSON
// reply. It never fails; errors become an ErrorResponse body.
func (s *Server) Handle(ctx context.Context, op string, data []byte) []byte {
	ctx, span := tracer.Start(ctx, "natsrpc."+op)
	defer span.End()
	span.SetAttributes(attribute.String("op", op))

	v, err := s.dispatch(ctx, op, data)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("request failed", "op", op, "err", err)
		v = ErrorResponse{Error: err.Error()}
	}
	out, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode reply", "op", op, "err", err)
		out, _ = json.Marshal(ErrorResponse{Error: err.Error()})
	}
	return out
}

func (s *Server) dispatch(ctx context.Context, op string, data []byte) (any, error) {
	switch op {
	case OpIngest:
		return ingestResponse(s.backend.IngestSources(ctx)), nil
	case OpReingest:
		return ingestResponse(s.backend.Reingest(ctx)), nil
	case OpRetrieve:
		var req RetrieveRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		if req.Query == "" {
			return nil, ErrEmptyQuery
		}
		results, err := s.backend.Retrieve(ctx, req.Query, req.K)
		if err != nil {
			return nil, err
		}
		if results == nil {
			results = []core.Passage{}
		}
		return RetrieveResponse{Results: results}, nil
	case OpAsk:
		var req AskRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		if req.Query == "" {
			return nil, ErrEmptyQuery
		}
		return s.backend.Ask(ctx, req.Query), nil
	case OpMetrics:
		return s.backend.Metrics(), nil
	case OpCount:
		n, err := s.backend.Count(ctx)
		if err != nil {
			return nil, err
		}
		return CountResponse{Count: n}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

func ingestResponse(report *ingestion.Report) IngestResponse {
	status := "success"
	if !report.OK() {
		status = "partial"
	}
	return IngestResponse{Status: status, Stats: report}
}

func decode(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyQuery
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("natsrpc: decode request: %w", err)
	}
	return nil
}
