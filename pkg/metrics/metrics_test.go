package metrics

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "200"))

	ObserveHTTPRequest(http.MethodGet, http.StatusOK)
	ObserveHTTPRequest(http.MethodGet, http.StatusOK)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "200"))
	assert.InDelta(t, 2, after-before, 1e-9)
}

func TestHandler(t *testing.T) {
	JudgeFailuresTotal.WithLabelValues("faithfulness").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `llmsentinel_judge_failures_total{axis="faithfulness"}`)
}

type pushedRequest struct {
	method string
	path   string
	body   []byte
}

func newPushgateway(t *testing.T, status int) (*httptest.Server, <-chan pushedRequest) {
	t.Helper()

	requests := make(chan pushedRequest, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- pushedRequest{method: r.Method, path: r.URL.Path, body: body}

		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, requests
}

func TestPush_DefaultRegistry(t *testing.T) {
	srv, requests := newPushgateway(t, http.StatusOK)

	EvaluationsTotal.WithLabelValues("manual", "my_local_v1").Inc()
	AcquisitionLatency.WithLabelValues("manual").Observe(0.4)
	TraceReportsTotal.WithLabelValues("skipped").Inc()
	PersistFailuresTotal.Inc()

	require.NoError(t, Push(context.Background(), nil, srv.URL, "llmsentinel", "host-a"))

	req := <-requests

	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/metrics/job/llmsentinel/instance/host-a", req.path)

	for _, name := range []string{
		"llmsentinel_evaluations_total",
		"llmsentinel_acquisition_latency_seconds",
		"llmsentinel_trace_reports_total",
		"llmsentinel_persist_failures_total",
	} {
		assert.True(t, bytes.Contains(req.body, []byte(name)), "pushed body is missing %s", name)
	}
}

func TestPush_WithoutInstance(t *testing.T) {
	srv, requests := newPushgateway(t, http.StatusAccepted)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "runs_total", Help: "runs"})
	reg.MustRegister(counter)
	counter.Inc()

	require.NoError(t, Push(context.Background(), reg, srv.URL, "nightly", ""))

	req := <-requests
	assert.Equal(t, "/metrics/job/nightly", req.path)
	assert.True(t, bytes.Contains(req.body, []byte("runs_total")))
}

func TestPush_GatewayError(t *testing.T) {
	srv, _ := newPushgateway(t, http.StatusInternalServerError)

	err := Push(context.Background(), prometheus.NewRegistry(), srv.URL, "llmsentinel", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pushing metrics to")
}
