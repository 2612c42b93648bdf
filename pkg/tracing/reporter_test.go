package tracing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func tracingConfig(host string) *config.TracingConfig {
	return &config.TracingConfig{
		Host:      host,
		PublicKey: "pk-lf-test",
		SecretKey: "sk-lf-test",
		Project:   "default",
		Timeout:   "2s",
	}
}

var testScores = []Score{
	{Name: ScoreLatency, Value: 1.25},
	{Name: ScoreFaithfulness, Value: 4},
	{Name: ScoreRelevance, Value: 5},
}

func TestReporter_Sent(t *testing.T) {
	var (
		gotPath    string
		gotAuth    string
		gotType    string
		gotPayload map[string]any
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &gotPayload))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(testLogger(), tracingConfig(srv.URL), srv.Client()).(*reporter)
	r.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	out := r.Report(context.Background(), "trace-manual-1", testScores, "m1", "s1")

	require.Equal(t, StatusSent, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, http.StatusOK, out.StatusCode)

	assert.Equal(t, "/api/public/traces", gotPath)
	assert.Equal(t, "Basic cGstbGYtdGVzdDpzay1sZi10ZXN0", gotAuth)
	assert.Equal(t, "application/json", gotType)

	assert.Equal(t, "trace-manual-1", gotPayload["traceId"])

	metadata, ok := gotPayload["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "m1", metadata["model_name"])
	assert.Equal(t, "s1", metadata["sample_id"])
	assert.InDelta(t, 1.25, metadata["latency"], 1e-9)
	assert.InDelta(t, 4, metadata["faithfulness"], 1e-9)
	assert.InDelta(t, 5, metadata["relevance"], 1e-9)
	assert.InDelta(t, 1_700_000_000, metadata["timestamp"], 0)
}

func TestReporter_SkippedWithoutCredentials(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		cfg  *config.TracingConfig
	}{
		{name: "missing host", cfg: &config.TracingConfig{PublicKey: "pk", SecretKey: "sk"}},
		{name: "missing public key", cfg: &config.TracingConfig{Host: srv.URL, SecretKey: "sk"}},
		{name: "missing secret key", cfg: &config.TracingConfig{Host: srv.URL, PublicKey: "pk"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewReporter(testLogger(), tt.cfg, srv.Client()).
				Report(context.Background(), "trace-1", testScores, "m", "s")

			assert.Equal(t, StatusSkipped, out.Status)
			assert.Error(t, out.Err)
		})
	}

	assert.Zero(t, calls.Load())
}

func TestReporter_FailedOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	out := NewReporter(testLogger(), tracingConfig(srv.URL), srv.Client()).
		Report(context.Background(), "trace-1", testScores, "m", "s")

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, http.StatusUnauthorized, out.StatusCode)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "401")
	assert.Contains(t, out.Err.Error(), "unauthorized")
}

func TestReporter_FailedOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	host := srv.URL
	srv.Close()

	out := NewReporter(testLogger(), tracingConfig(host), nil).
		Report(context.Background(), "trace-1", testScores, "m", "s")

	assert.Equal(t, StatusFailed, out.Status)
	assert.Error(t, out.Err)
}

func TestBuildPayload_Defaults(t *testing.T) {
	p := buildPayload("t1", []Score{{Name: ScoreLatency, Value: 0.5}}, "", "", time.Unix(10, 0))

	assert.Equal(t, unknownModel, p.Metadata.ModelName)
	assert.Equal(t, unknownSample, p.Metadata.SampleID)
	require.NotNil(t, p.Metadata.Latency)
	assert.InDelta(t, 0.5, *p.Metadata.Latency, 1e-9)
	assert.Nil(t, p.Metadata.Faithfulness)
	assert.Nil(t, p.Metadata.Relevance)
	assert.Equal(t, int64(10), p.Metadata.Timestamp)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"faithfulness":null`)
}

func TestTraceURL(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"cloud host", "https://cloud.langfuse.com", "https://cloud.langfuse.com/project/default/traces/trace-manual-1"},
		{"trailing slash", "http://localhost:3000/", "http://localhost:3000/project/default/traces/trace-manual-1"},
		{"empty host", "", ""},
		{"blank host", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TraceURL(tt.host, "default", "trace-manual-1"))
		})
	}
}
