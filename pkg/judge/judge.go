package judge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/llm"
	"github.com/ethpandaops/llmsentinel/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Axis names a scoring dimension.
type Axis string

const (
	AxisFaithfulness Axis = "faithfulness"
	AxisRelevance    Axis = "relevance"
)

// ErrUnparseableScore is returned when a judge reply does not start with an
// integer.
var ErrUnparseableScore = errors.New("judge reply does not start with an integer score")

// Verdict is the outcome of a single judge call.
type Verdict struct {
	Axis  Axis
	Reply string
	Score int
	Err   error
}

// Result holds both scores of an evaluation. When any judge call fails both
// scores are zero and Err is set, so a failure is distinguishable from a
// genuine low score.
type Result struct {
	Faithfulness int
	Relevance    int
	Faithful     Verdict
	Relevant     Verdict
	Err          error
}

// Failed reports whether the judge could not produce scores.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Judge scores a model output for faithfulness and relevance.
type Judge interface {
	Score(ctx context.Context, query, modelOutput, referenceContext string) Result
}

// Options tunes the judge.
type Options struct {
	// CallTimeout bounds each judge call. Zero means no extra bound.
	CallTimeout time.Duration
}

// Compile-time interface check.
var _ Judge = (*judge)(nil)

type judge struct {
	log    logrus.FieldLogger
	client llm.Client
	opts   Options
}

// New creates a judge backed by the given chat client.
func New(log logrus.FieldLogger, client llm.Client, opts Options) Judge {
	return &judge{
		log:    log.WithField("component", "judge"),
		client: client,
		opts:   opts,
	}
}

// Score asks the judge model for both scores. It never returns an error;
// failures are reported in the Result.
func (j *judge) Score(ctx context.Context, query, modelOutput, referenceContext string) Result {
	faithful := j.ask(ctx, AxisFaithfulness, []llm.Message{
		llm.System(faithfulnessSystemPrompt),
		llm.User(faithfulnessUserPrompt(modelOutput, referenceContext)),
	})

	relevant := j.ask(ctx, AxisRelevance, []llm.Message{
		llm.System(relevanceSystemPrompt),
		llm.User(relevanceUserPrompt(query, modelOutput)),
	})

	result := Result{
		Faithful: faithful,
		Relevant: relevant,
	}

	if err := errors.Join(faithful.Err, relevant.Err); err != nil {
		result.Err = err

		j.log.WithError(err).Warn("Evaluation failed, both scores set to 0")

		return result
	}

	result.Faithfulness = faithful.Score
	result.Relevance = relevant.Score

	return result
}

func (j *judge) ask(ctx context.Context, axis Axis, messages []llm.Message) Verdict {
	v := Verdict{Axis: axis}

	if j.opts.CallTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, j.opts.CallTimeout)
		defer cancel()
	}

	reply, err := j.client.Complete(ctx, messages)
	if err != nil {
		v.Err = fmt.Errorf("%s judge call: %w", axis, err)
		metrics.JudgeFailuresTotal.WithLabelValues(string(axis)).Inc()

		return v
	}

	v.Reply = strings.TrimSpace(reply)

	score, err := ParseScore(v.Reply)
	if err != nil {
		v.Err = fmt.Errorf("%s judge reply %q: %w", axis, truncate(v.Reply, 80), err)
		metrics.JudgeFailuresTotal.WithLabelValues(string(axis)).Inc()

		return v
	}

	v.Score = score

	j.log.WithFields(logrus.Fields{
		"axis":  axis,
		"score": score,
	}).Debug("Judge scored output")

	return v
}

// ParseScore reads the first whitespace-delimited token of a reply as an
// integer. The range is not checked.
func ParseScore(reply string) (int, error) {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return 0, ErrUnparseableScore
	}

	score, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, ErrUnparseableScore
	}

	return score, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n]) + "..."
}
