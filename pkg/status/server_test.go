package status

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numbergroup/autopool-notifier/pkg/config"
	"github.com/numbergroup/autopool-notifier/pkg/rpcpool"
)

type nopClient struct{}

func (nopClient) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (nopClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (nopClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (nopClient) Close() {}

type fakePoller struct {
	running bool
	block   uint64
}

func (f fakePoller) Running() bool            { return f.running }
func (f fakePoller) LastScannedBlock() uint64 { return f.block }

func newTestServer(t *testing.T, poller PollerState) *Server {
	t.Helper()
	pool, err := rpcpool.New(t.Context(), []config.Endpoint{
		{Name: "primary-1", URL: "a", Tier: config.TierPrimary},
		{Name: "fallback-1", URL: "b", Tier: config.TierFallback},
	}, rpcpool.Options{
		Dialer: func(ctx context.Context, url string) (rpcpool.ChainClient, error) { return nopClient{}, nil },
		Log:    logrus.New(),
	})
	require.NoError(t, err)
	stats := rpcpool.NewStats()
	stats.Observe(100*time.Millisecond, true)
	stats.Observe(0, false)
	return NewServer(":0", pool, stats, poller, logrus.New())
}

func TestHealth_Report(t *testing.T) {
	s := newTestServer(t, fakePoller{running: true, block: 4242})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "ok", report.Status)
	assert.True(t, report.IsRunning)
	assert.Equal(t, uint64(4242), report.LastScannedBlock)
	assert.Equal(t, 2, report.EndpointCount)
	assert.Len(t, report.Endpoints, 2)
	assert.Equal(t, uint64(2), report.Stats.Requests)
	assert.Equal(t, uint64(1), report.Stats.Errors)
	assert.InDelta(t, 50.0, report.Stats.AvgResponseMs, 0.001)
}

func TestHealth_StoppedPoller(t *testing.T) {
	s := newTestServer(t, fakePoller{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "stopped", report.Status)
}

func TestMetricsAndUnknownPaths(t *testing.T) {
	s := newTestServer(t, fakePoller{running: true})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autopool_rpc_requests_total")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
