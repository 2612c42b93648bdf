package tracing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/ethpandaops/llmsentinel/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	tracesPath = "/api/public/traces"

	unknownModel  = "unknown_model"
	unknownSample = "unknown_sample"

	// maxErrorBody caps how much of a failed response is kept for the log.
	maxErrorBody = 512
)

// Score names used in trace metadata.
const (
	ScoreLatency      = "latency"
	ScoreFaithfulness = "faithfulness"
	ScoreRelevance    = "relevance"
)

// Score is a named numeric value attached to a trace.
type Score struct {
	Name  string
	Value float64
}

// Status is the outcome of a report attempt.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome describes what happened to a report. Reporting never fails the
// caller; Err carries the reason for a skipped or failed report.
type Outcome struct {
	Status     Status
	StatusCode int
	Err        error
}

// Reporter attaches evaluation metadata to a remote trace.
type Reporter interface {
	Report(ctx context.Context, traceID string, scores []Score, modelName, sampleID string) Outcome
}

// Compile-time interface check.
var _ Reporter = (*reporter)(nil)

type reporter struct {
	log     logrus.FieldLogger
	cfg     *config.TracingConfig
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
}

// NewReporter creates a Reporter. A nil client uses http.DefaultClient.
func NewReporter(log logrus.FieldLogger, cfg *config.TracingConfig, client *http.Client) Reporter {
	if client == nil {
		client = http.DefaultClient
	}

	timeout, err := config.ParseDuration(cfg.Timeout, 10*time.Second)
	if err != nil || timeout == 0 {
		timeout = 10 * time.Second
	}

	return &reporter{
		log:     log.WithField("component", "trace-reporter"),
		cfg:     cfg,
		client:  client,
		timeout: timeout,
		now:     time.Now,
	}
}

type tracePayload struct {
	TraceID  string        `json:"traceId"`
	Metadata traceMetadata `json:"metadata"`
}

type traceMetadata struct {
	ModelName    string   `json:"model_name"`
	SampleID     string   `json:"sample_id"`
	Latency      *float64 `json:"latency"`
	Faithfulness *float64 `json:"faithfulness"`
	Relevance    *float64 `json:"relevance"`
	Timestamp    int64    `json:"timestamp"`
}

// Report sends the trace metadata once. It is skipped without any network
// call when the host or credentials are missing.
func (r *reporter) Report(
	ctx context.Context,
	traceID string,
	scores []Score,
	modelName, sampleID string,
) Outcome {
	out := r.send(ctx, traceID, scores, modelName, sampleID)

	metrics.TraceReportsTotal.WithLabelValues(string(out.Status)).Inc()

	log := r.log.WithField("trace_id", traceID)

	switch out.Status {
	case StatusSent:
		log.Info("Metadata attached to trace")
	case StatusSkipped:
		log.WithError(out.Err).Warn("Skipping trace metadata")
	case StatusFailed:
		log.WithError(out.Err).Warn("Failed to attach trace metadata")
	}

	return out
}

func (r *reporter) send(
	ctx context.Context,
	traceID string,
	scores []Score,
	modelName, sampleID string,
) Outcome {
	if !r.cfg.HasCredentials() {
		return Outcome{Status: StatusSkipped, Err: fmt.Errorf("missing tracing host or credentials")}
	}

	body, err := json.Marshal(buildPayload(traceID, scores, modelName, sampleID, r.now()))
	if err != nil {
		return Outcome{Status: StatusFailed, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Host+tracesPath, bytes.NewReader(body))
	if err != nil {
		return Outcome{Status: StatusFailed, Err: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+BasicAuth(r.cfg.PublicKey, r.cfg.SecretKey))

	resp, err := r.client.Do(req)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: fmt.Errorf("posting metadata: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return Outcome{
			Status:     StatusFailed,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("tracing service responded with %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return Outcome{Status: StatusSent, StatusCode: resp.StatusCode}
}

func buildPayload(traceID string, scores []Score, modelName, sampleID string, now time.Time) tracePayload {
	if modelName == "" {
		modelName = unknownModel
	}

	if sampleID == "" {
		sampleID = unknownSample
	}

	return tracePayload{
		TraceID: traceID,
		Metadata: traceMetadata{
			ModelName:    modelName,
			SampleID:     sampleID,
			Latency:      findScore(scores, ScoreLatency),
			Faithfulness: findScore(scores, ScoreFaithfulness),
			Relevance:    findScore(scores, ScoreRelevance),
			Timestamp:    now.Unix(),
		},
	}
}

// findScore returns the first score with the given name, or nil.
func findScore(scores []Score, name string) *float64 {
	for _, s := range scores {
		if s.Name == name {
			v := s.Value

			return &v
		}
	}

	return nil
}

// BasicAuth encodes a public/secret key pair for an Authorization header.
func BasicAuth(publicKey, secretKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(publicKey + ":" + secretKey))
}

// TraceURL builds the link to a trace in the tracing UI. Without a host
// there is nothing to link to and the result is empty.
func TraceURL(host, project, traceID string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}

	return host + "/project/" + project + "/traces/" + traceID
}
