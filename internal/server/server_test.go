package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cpanel_exporter/internal/config"
	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/exposition"
	"cpanel_exporter/internal/metrics"
	"cpanel_exporter/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubScraper struct {
	snap *metrics.Snapshot
	err  error
}

func (s *stubScraper) Snapshot(ctx context.Context) (*metrics.Snapshot, error) {
	return s.snap, s.err
}

func newTestServer(scraper server.Scraper) *server.Server {
	cfg := &config.Config{}
	cfg.Server.Addr = ":0"
	cfg.Server.ShutdownTimeout = time.Second
	return server.New(&server.Params{
		Config:  cfg,
		Logger:  zap.NewNop(),
		Scraper: scraper,
	})
}

func TestMetricsEndpoint(t *testing.T) {
	b := metrics.NewBuilder(time.Now())
	b.SetAccounts(1)
	b.Add(metrics.OK("statsbar", "alice", []metrics.Measurement{
		{Name: "cpanel_diskusage", Labels: map[string]string{"user": "alice"}, Value: 7},
	}, 0))
	snap := b.Build(time.Now())

	srv := newTestServer(&stubScraper{snap: snap})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, exposition.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `cpanel_diskusage{user="alice"} 7`)
	assert.Contains(t, rec.Body.String(), "cpanel_exporter_accounts 1")
}

func TestMetricsEndpointEnumerationFailure(t *testing.T) {
	scraper := &stubScraper{err: &cpanel.EnumerationError{Err: errors.New("listaccts exited 1")}}
	srv := newTestServer(scraper)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "scrape failed")
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubScraper{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestInternalMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&stubScraper{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "cpanel_exporter_failed_scrapes_total")
}
