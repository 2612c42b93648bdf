// Package report renders evaluation results as markdown tables for the
// terminal.
package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/ethpandaops/llmsentinel/pkg/dashboard"
	"github.com/ethpandaops/llmsentinel/pkg/runner"
)

// ModelTable renders per-model means. It returns an empty string when there
// are no aggregates.
func ModelTable(aggs []dashboard.ModelAggregate) string {
	if len(aggs) == 0 {
		return ""
	}

	var buf bytes.Buffer

	table := createStandardTable([]string{
		"Model", "Evaluations", "Faithfulness", "Relevance", "Latency (s)",
	}, &buf)

	for _, a := range aggs {
		_ = table.Append([]string{
			a.Model,
			strconv.Itoa(a.Count),
			fmt.Sprintf("%.2f", a.Faithfulness),
			fmt.Sprintf("%.2f", a.Relevance),
			fmt.Sprintf("%.2f", a.Latency),
		})
	}

	_ = table.Render()

	return buf.String()
}

// SummaryTable renders the outcome of a single run.
func SummaryTable(s *runner.Summary) string {
	var buf bytes.Buffer

	table := createStandardTable([]string{"Field", "Value"}, &buf)

	persisted := "no"
	if s.Persisted {
		persisted = fmt.Sprintf("yes (id %d)", s.RecordID)
	}

	judged := "ok"
	if s.Judge.Failed() {
		judged = "failed: " + s.Judge.Err.Error()
	}

	rows := [][]string{
		{"Trace ID", s.TraceID},
		{"Faithfulness", strconv.Itoa(s.Faithfulness)},
		{"Relevance", strconv.Itoa(s.Relevance)},
		{"Latency (s)", fmt.Sprintf("%.2f", s.Latency)},
		{"Judge", judged},
		{"Trace report", string(s.Report.Status)},
		{"Persisted", persisted},
	}

	if s.TraceURL != "" {
		rows = append(rows, []string{"Trace URL", s.TraceURL})
	}

	for _, row := range rows {
		_ = table.Append(row)
	}

	_ = table.Render()

	return buf.String()
}
