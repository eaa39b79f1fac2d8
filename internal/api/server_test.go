package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taxrag/tax-rag-crawler/internal/crawler"
)

type stubReporter struct {
	state crawler.RunState
	snap  crawler.MetricsSnapshot
}

func (s stubReporter) State() crawler.RunState           { return s.state }
func (s stubReporter) Snapshot() crawler.MetricsSnapshot { return s.snap }

func TestHealthz(t *testing.T) {
	srv := NewServer(nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzWithoutRun(t *testing.T) {
	srv := NewServer(nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunStatus(t *testing.T) {
	reporter := stubReporter{
		state: crawler.RunStateRunning,
		snap:  crawler.MetricsSnapshot{CrawlType: "ita", URLsProcessed: 12},
	}
	srv := NewServer(reporter, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/run/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State   string                  `json:"state"`
		Metrics crawler.MetricsSnapshot `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, string(crawler.RunStateRunning), body.State)
	require.Equal(t, 12, body.Metrics.URLsProcessed)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(nil, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}
