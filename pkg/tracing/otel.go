package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	otlpTracesPath = "/api/public/otel/v1/traces"
	serviceName    = "llmsentinel"
	tracerName     = "github.com/ethpandaops/llmsentinel"
)

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(ctx context.Context) error

// NewTracerProvider installs a global OpenTelemetry tracer provider that
// exports spans to the tracing host over OTLP/HTTP. When export is disabled
// or credentials are missing the global no-op provider is left in place.
func NewTracerProvider(ctx context.Context, log logrus.FieldLogger, cfg *config.TracingConfig) (ShutdownFunc, error) {
	log = log.WithField("component", "otel")

	noop := func(context.Context) error { return nil }

	if !cfg.OTLP.Enabled {
		return noop, nil
	}

	if !cfg.HasCredentials() {
		log.Warn("OTLP export enabled but tracing credentials are missing, spans will not be exported")

		return noop, nil
	}

	timeout, err := config.ParseDuration(cfg.OTLP.Timeout, 20*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parsing otlp timeout: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Host+otlpTracesPath),
		otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Basic " + BasicAuth(cfg.PublicKey, cfg.SecretKey),
		}),
		otlptracehttp.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)

	otel.SetTracerProvider(tp)

	log.WithFields(logrus.Fields{
		"endpoint": cfg.Host + otlpTracesPath,
		"timeout":  timeout,
	}).Debug("OTLP trace export enabled")

	return tp.Shutdown, nil
}

// StartSpan starts a span on the global tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// CurrentTraceID returns the trace id of the active span, or "" when no
// span is being recorded for an exporting provider.
func CurrentTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}

	return sc.TraceID().String()
}
