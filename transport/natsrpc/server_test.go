package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

type fakeBackend struct {
	report    *ingestion.Report
	reingests int
	passages  []core.Passage
	retrErr   error
	lastQuery string
	lastK     int
	answer    core.AnswerResult
	snapshot  metrics.Snapshot
	count     int
	countErr  error
}

func (f *fakeBackend) IngestSources(context.Context) *ingestion.Report { return f.report }

func (f *fakeBackend) Reingest(context.Context) *ingestion.Report {
	f.reingests++
	return f.report
}

func (f *fakeBackend) Retrieve(_ context.Context, query string, k int) ([]core.Passage, error) {
	f.lastQuery, f.lastK = query, k
	return f.passages, f.retrErr
}

func (f *fakeBackend) Ask(_ context.Context, query string) core.AnswerResult {
	f.lastQuery = query
	return f.answer
}

func (f *fakeBackend) Metrics() metrics.Snapshot { return f.snapshot }

func (f *fakeBackend) Count(context.Context) (int, error) { return f.count, f.countErr }

func newTestServer(t *testing.T, b *fakeBackend) *Server {
	t.Helper()
	s, err := NewServer(b, WithPrefix("rag"))
	require.NoError(t, err)
	return s
}

func handle(t *testing.T, s *Server, op, body string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(s.Handle(context.Background(), op, []byte(body)), &out))
	return out
}

func TestNewServer_RequiresBackend(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrBackendRequired)
}

func TestSubjects(t *testing.T) {
	s, err := NewServer(&fakeBackend{})
	require.NoError(t, err)
	assert.Equal(t, "groundwork.ask", s.Subject(OpAsk))

	s = newTestServer(t, &fakeBackend{})
	assert.Equal(t, "rag.count", s.Subject(OpCount))
}

func TestHandle_Ingest(t *testing.T) {
	b := &fakeBackend{report: &ingestion.Report{Documents: 2, Chunks: 9, Indexed: 9}}
	s := newTestServer(t, b)

	out := handle(t, s, OpIngest, "")
	assert.Equal(t, "success", out["status"])
	stats := out["stats"].(map[string]any)
	assert.Equal(t, float64(9), stats["chunk_count"])

	b.report.AddFailures(errors.New("doc_3: unreadable"))
	out = handle(t, s, OpReingest, "")
	assert.Equal(t, "partial", out["status"])
	assert.Equal(t, 1, b.reingests)
}

func TestHandle_Retrieve(t *testing.T) {
	b := &fakeBackend{passages: []core.Passage{{Text: "FastAPI is fast", Distance: 0.2}}}
	s := newTestServer(t, b)

	out := handle(t, s, OpRetrieve, `{"query":"fastapi","k":2}`)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "FastAPI is fast", results[0].(map[string]any)["text"])
	assert.Equal(t, "fastapi", b.lastQuery)
	assert.Equal(t, 2, b.lastK)
}

func TestHandle_RetrieveEmptyResultsIsArray(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})
	raw := s.Handle(context.Background(), OpRetrieve, []byte(`{"query":"nothing"}`))
	assert.JSONEq(t, `{"results":[]}`, string(raw))
}

func TestHandle_Ask(t *testing.T) {
	b := &fakeBackend{answer: core.AnswerResult{
		Answer:  "FastAPI is fast.",
		Status:  core.StatusSuccess,
		TraceID: "abc",
		Sources: []core.FusedHit{},
	}}
	s := newTestServer(t, b)

	out := handle(t, s, OpAsk, `{"query":"is fastapi fast?"}`)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "abc", out["trace_id"])
	assert.Equal(t, "is fastapi fast?", b.lastQuery)
}

func TestHandle_MetricsAndCount(t *testing.T) {
	b := &fakeBackend{snapshot: metrics.Snapshot{TotalRequests: 4}, count: 12}
	s := newTestServer(t, b)

	out := handle(t, s, OpMetrics, "")
	assert.Equal(t, float64(4), out["total_requests"])

	raw := s.Handle(context.Background(), OpCount, nil)
	assert.JSONEq(t, `{"count":12}`, string(raw))
}

func TestHandle_Errors(t *testing.T) {
	b := &fakeBackend{retrErr: errors.New("store offline"), countErr: errors.New("store closed")}
	s := newTestServer(t, b)

	tests := []struct {
		name string
		op   string
		body string
		want string
	}{
		{"unknown op", "delete", "", `natsrpc: unknown operation: "delete"`},
		{"empty body", OpAsk, "", ErrEmptyQuery.Error()},
		{"blank query", OpRetrieve, `{"query":""}`, ErrEmptyQuery.Error()},
		{"backend failure", OpRetrieve, `{"query":"x"}`, "store offline"},
		{"count failure", OpCount, "", "store closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := handle(t, s, tt.op, tt.body)
			assert.Equal(t, tt.want, out["error"])
		})
	}

	out := handle(t, s, OpAsk, `{not json`)
	assert.Contains(t, out["error"], "decode request")
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{Subject: "rag.ask"}
	c := (*headerCarrier)(msg)
	assert.Empty(t, c.Get("traceparent"))
	assert.Empty(t, c.Keys())

	c.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", msg.Header.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestHeaderCarrier_RoundTripsTraceContext(t *testing.T) {
	prop := propagation.TraceContext{}
	in := &nats.Msg{Header: nats.Header{}}
	in.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	ctx := prop.Extract(context.Background(), (*headerCarrier)(in))
	out := &nats.Msg{}
	prop.Inject(ctx, (*headerCarrier)(out))
	assert.Equal(t, in.Header.Get("traceparent"), out.Header.Get("traceparent"))
}
