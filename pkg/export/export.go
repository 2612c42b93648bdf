// Package export writes the evaluations table and its charts to disk and
// optionally uploads them to S3-compatible storage.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/dashboard"
	"github.com/ethpandaops/llmsentinel/pkg/store"
)

// Exported file names.
const (
	CSVFile        = "evaluations.csv"
	AvgScoresFile  = "avg_scores_by_model.svg"
	ScoreTrendFile = "score_trend.svg"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("no evaluation data to export")

var csvHeader = []string{
	"id", "trace_id", "model_name", "sample_id", "query", "context",
	"faithfulness", "relevance", "latency", "created_at",
}

// Export writes the table as CSV plus the average-score and score-trend
// charts into dir, creating it if needed. The trend covers the first model
// by name, averaged per day. It returns the written paths.
func Export(ctx context.Context, rows []store.Record, dir string) ([]string, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	written := make([]string, 0, 3)

	csvPath := filepath.Join(dir, CSVFile)
	if err := writeCSV(csvPath, rows); err != nil {
		return nil, err
	}

	written = append(written, csvPath)

	if err := ctx.Err(); err != nil {
		return written, err
	}

	avgPath := filepath.Join(dir, AvgScoresFile)
	if err := writeFile(avgPath, dashboard.AverageScoresChart(dashboard.MeanByModel(rows), true)); err != nil {
		return written, err
	}

	written = append(written, avgPath)

	model := dashboard.Models(rows)[0]

	trendPath := filepath.Join(dir, ScoreTrendFile)
	if err := writeFile(trendPath, dashboard.ScoreTrendChart(model, dashboard.DailyTrend(rows, model), true)); err != nil {
		return written, err
	}

	written = append(written, trendPath)

	return written, nil
}

func writeCSV(path string, rows []store.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)

	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.TraceID,
			r.ModelName,
			r.SampleID,
			r.Query,
			r.Context,
			strconv.Itoa(r.Faithfulness),
			strconv.Itoa(r.Relevance),
			strconv.FormatFloat(r.Latency, 'f', -1, 64),
			time.Unix(r.CreatedAt, 0).UTC().Format(time.RFC3339),
		}

		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing csv row %d: %w", r.ID, err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	return f.Close()
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}

	return nil
}
