package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/acquire"
	"github.com/ethpandaops/llmsentinel/pkg/judge"
	"github.com/ethpandaops/llmsentinel/pkg/metrics"
	"github.com/ethpandaops/llmsentinel/pkg/store"
	"github.com/ethpandaops/llmsentinel/pkg/tracing"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// SpanName names the span wrapping a single evaluation.
	SpanName = "LLMSentinel-TestRun"

	// previewLength is how many characters of the output are echoed.
	previewLength = 200
)

// Runner executes one evaluation: acquire, judge, report, persist.
type Runner interface {
	Run(ctx context.Context, query, referenceContext string) (*Summary, error)
}

// Config for the runner.
type Config struct {
	ModelName   string
	SampleID    string
	TracingHost string
	Project     string
}

// Summary is what a run produced. Degraded stages are reported here rather
// than as errors.
type Summary struct {
	Output       string
	Faithfulness int
	Relevance    int
	Latency      float64
	TraceID      string
	TraceURL     string
	CreatedAt    int64

	Judge  judge.Result
	Report tracing.Outcome

	Persisted  bool
	RecordID   uint
	PersistErr error

	// AcquireErr is set when a remote endpoint failed and the run continued
	// with an empty output.
	AcquireErr error
}

// NewRunner creates a new runner instance.
func NewRunner(
	log logrus.FieldLogger,
	cfg *Config,
	strategy acquire.Strategy,
	j judge.Judge,
	reporter tracing.Reporter,
	st store.Store,
	console io.Writer,
) Runner {
	if console == nil {
		console = io.Discard
	}

	return &runner{
		log:      log.WithField("component", "runner"),
		cfg:      cfg,
		strategy: strategy,
		judge:    j,
		reporter: reporter,
		store:    st,
		console:  console,
		now:      time.Now,
	}
}

type runner struct {
	log      logrus.FieldLogger
	cfg      *Config
	strategy acquire.Strategy
	judge    judge.Judge
	reporter tracing.Reporter
	store    store.Store
	console  io.Writer
	now      func() time.Time
}

// Ensure interface compliance.
var _ Runner = (*runner)(nil)

// Run performs a single evaluation. Only a failure to obtain output in
// local-model or manual mode is returned as an error.
func (r *runner) Run(ctx context.Context, query, referenceContext string) (*Summary, error) {
	mode := r.strategy.Name()

	log := r.log.WithFields(logrus.Fields{
		"mode":      mode,
		"model":     r.cfg.ModelName,
		"sample_id": r.cfg.SampleID,
	})

	ctx, span := tracing.StartSpan(ctx, SpanName,
		attribute.String("llmsentinel.mode", string(mode)),
		attribute.String("llmsentinel.model_name", r.cfg.ModelName),
		attribute.String("llmsentinel.sample_id", r.cfg.SampleID),
	)
	defer span.End()

	summary := &Summary{}

	start := time.Now()
	output, err := r.strategy.Acquire(ctx, query, referenceContext)
	latency := time.Since(start).Seconds()

	if err != nil {
		if mode != acquire.ModeRemoteEndpoint {
			span.RecordError(err)
			span.SetStatus(codes.Error, "acquiring model output")

			return nil, fmt.Errorf("acquiring model output: %w", err)
		}

		log.WithError(err).Warn("Model endpoint call failed, evaluating an empty output")
		r.say("\nAPI call failed: %v\n", err)

		summary.AcquireErr = err
		output = ""
	}

	summary.Output = output
	summary.Latency = latency

	metrics.AcquisitionLatency.WithLabelValues(string(mode)).Observe(latency)

	r.say("\nModel output (first %d chars): %s...\n", previewLength, preview(output, previewLength))
	r.say("Latency: %.2fs\n", latency)

	summary.TraceID = tracing.CurrentTraceID(ctx)
	if summary.TraceID == "" {
		summary.TraceID = fmt.Sprintf("trace-%s-%d", mode, r.now().Unix())
	}

	r.say("Trace ID: %s\n", summary.TraceID)
	r.say("\nRunning LLM-as-a-Judge evaluation...\n")

	summary.Judge = r.judge.Score(ctx, query, output, referenceContext)
	summary.Faithfulness = summary.Judge.Faithfulness
	summary.Relevance = summary.Judge.Relevance

	if summary.Judge.Failed() {
		r.say("Evaluation failed: %v\n", summary.Judge.Err)
	}

	span.SetAttributes(
		attribute.Float64("llmsentinel.latency", latency),
		attribute.Int("llmsentinel.faithfulness", summary.Faithfulness),
		attribute.Int("llmsentinel.relevance", summary.Relevance),
	)

	summary.Report = r.reporter.Report(ctx, summary.TraceID, []tracing.Score{
		{Name: tracing.ScoreLatency, Value: latency},
		{Name: tracing.ScoreFaithfulness, Value: float64(summary.Faithfulness)},
		{Name: tracing.ScoreRelevance, Value: float64(summary.Relevance)},
	}, r.cfg.ModelName, r.cfg.SampleID)

	switch summary.Report.Status {
	case tracing.StatusSent:
		r.say("Metadata attached to trace.\n")
	case tracing.StatusSkipped:
		r.say("Missing tracing configuration, metadata not sent.\n")
	case tracing.StatusFailed:
		r.say("Failed to send metadata: %v\n", summary.Report.Err)
	}

	summary.CreatedAt = r.now().Unix()

	record := &store.Record{
		TraceID:      summary.TraceID,
		ModelName:    r.cfg.ModelName,
		SampleID:     r.cfg.SampleID,
		Query:        query,
		Context:      referenceContext,
		Faithfulness: summary.Faithfulness,
		Relevance:    summary.Relevance,
		Latency:      latency,
		CreatedAt:    summary.CreatedAt,
	}

	if err := r.store.Append(ctx, record); err != nil {
		summary.PersistErr = err
		metrics.PersistFailuresTotal.Inc()

		log.WithError(err).Error("Failed to save evaluation")
		r.say("Failed to save evaluation to DB: %v\n", err)
	} else {
		summary.Persisted = true
		summary.RecordID = record.ID

		r.say("Saved evaluation to local DB.\n")
	}

	summary.TraceURL = tracing.TraceURL(r.cfg.TracingHost, r.cfg.Project, summary.TraceID)
	if summary.TraceURL != "" {
		r.say("View trace: %s\n", summary.TraceURL)
	}

	metrics.EvaluationsTotal.WithLabelValues(string(mode), r.cfg.ModelName).Inc()

	log.WithFields(logrus.Fields{
		"trace_id":     summary.TraceID,
		"faithfulness": summary.Faithfulness,
		"relevance":    summary.Relevance,
		"latency":      latency,
	}).Info("Evaluation complete")

	return summary, nil
}

func (r *runner) say(format string, args ...any) {
	_, _ = fmt.Fprintf(r.console, format, args...)
}

// preview returns the first n characters of s.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n])
}
