package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spindlehq/spindle/internal/stats"
)

type fakeStatsSource struct {
	snap stats.Snapshot
	id   string
}

func (f *fakeStatsSource) Stats() stats.Snapshot { return f.snap }
func (f *fakeStatsSource) CrawlID() string       { return f.id }

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeStatsSource{id: "c1"}, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Stats(t *testing.T) {
	t.Parallel()

	source := &fakeStatsSource{id: "crawl-42"}
	source.snap.Requests = 7
	source.snap.Responses = 5
	source.snap.Failures = 2

	server := NewServer(source, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload struct {
		CrawlID string         `json:"crawl_id"`
		Stats   stats.Snapshot `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "crawl-42", payload.CrawlID)
	require.Equal(t, int64(7), payload.Stats.Requests)
	require.Equal(t, int64(5), payload.Stats.Responses)
	require.Equal(t, int64(2), payload.Stats.Failures)
}

func TestServer_Stats_NoSource(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "no crawl attached")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spindle_test_counter_total",
		Help: "Test counter.",
	})
	require.NoError(t, registry.Register(counter))
	counter.Add(3)

	server := NewServer(&fakeStatsSource{id: "c1"}, registry, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "spindle_test_counter_total 3")
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeStatsSource{id: "c1"}, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
