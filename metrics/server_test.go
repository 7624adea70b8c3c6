package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHealthEndpoint(t *testing.T) {
	server := httptest.NewServer(newRouter())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestServerMetricsEndpoint(t *testing.T) {
	// The /metrics handler serves the default registry; register there once
	// for this test.
	m := NewWith("metricssrv", prometheus.DefaultRegisterer)
	m.ProcessedBlocks.WithLabelValues("42").Inc()
	m.WorkersActive.Set(2)

	server := httptest.NewServer(newRouter())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Text exposition format with our collectors present.
	assert.Contains(t, string(body), `metricssrv_processed_blocks_total{stream_id="42"} 1`)
	assert.Contains(t, string(body), "metricssrv_workers_active 2")
}

func TestServerUnknownRoute(t *testing.T) {
	server := httptest.NewServer(newRouter())
	defer server.Close()

	resp, err := http.Get(server.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
