package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "llmsentinel"

var (
	// EvaluationsTotal counts completed evaluation runs.
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of evaluation runs",
		},
		[]string{"mode", "model"},
	)

	// AcquisitionLatency observes the time spent obtaining the model output.
	AcquisitionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquisition_latency_seconds",
			Help:      "Latency of obtaining the output under evaluation",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"mode"},
	)

	// JudgeFailuresTotal counts judge calls that produced no usable score.
	JudgeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_failures_total",
			Help:      "Total number of judge calls that failed or returned an unparseable score",
		},
		[]string{"axis"},
	)

	// TraceReportsTotal counts trace metadata reports by outcome.
	TraceReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trace_reports_total",
			Help:      "Total number of trace metadata reports by outcome",
		},
		[]string{"status"},
	)

	// PersistFailuresTotal counts evaluations that could not be stored.
	PersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Total number of evaluation records that failed to persist",
		},
	)

	// HTTPRequestsTotal counts dashboard requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_http_requests_total",
			Help:      "Total number of dashboard HTTP requests",
		},
		[]string{"method", "code"},
	)
)

// ObserveHTTPRequest records a served dashboard request.
func ObserveHTTPRequest(method string, status int) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Push sends everything gathered by g to a Prometheus Pushgateway under the
// given job, replacing what was previously pushed for the same job and
// instance. A nil gatherer pushes the default registry. An empty instance
// omits the instance grouping label.
func Push(ctx context.Context, g prometheus.Gatherer, gatewayURL, job, instance string) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}

	pusher := push.New(gatewayURL, job).Gatherer(g)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gatewayURL, err)
	}

	return nil
}
