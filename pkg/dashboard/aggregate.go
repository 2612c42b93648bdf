package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/store"
)

// ModelAggregate holds the mean scores of one model.
type ModelAggregate struct {
	Model        string  `json:"model"`
	Count        int     `json:"count"`
	Faithfulness float64 `json:"faithfulness"`
	Relevance    float64 `json:"relevance"`
	Latency      float64 `json:"latency"`
}

// TrendPoint is one point of a model's score history.
type TrendPoint struct {
	CreatedAt    int64   `json:"created_at"`
	Faithfulness float64 `json:"faithfulness"`
	Relevance    float64 `json:"relevance"`
	Latency      float64 `json:"latency"`
}

// Time returns the point's timestamp in UTC.
func (p TrendPoint) Time() time.Time {
	return time.Unix(p.CreatedAt, 0).UTC()
}

// SortColumn is a column rows can be ordered by.
type SortColumn string

const (
	SortFaithfulness SortColumn = "faithfulness"
	SortRelevance    SortColumn = "relevance"
	SortLatency      SortColumn = "latency"
	SortCreatedAt    SortColumn = "created_at"
)

// SortColumns lists the sortable columns.
func SortColumns() []SortColumn {
	return []SortColumn{SortCreatedAt, SortFaithfulness, SortRelevance, SortLatency}
}

// ParseSortColumn parses a column name. An empty name selects created_at.
func ParseSortColumn(s string) (SortColumn, error) {
	switch SortColumn(s) {
	case "":
		return SortCreatedAt, nil
	case SortFaithfulness, SortRelevance, SortLatency, SortCreatedAt:
		return SortColumn(s), nil
	default:
		return "", fmt.Errorf("unknown sort column %q", s)
	}
}

// Models returns the sorted distinct model names.
func Models(rows []store.Record) []string {
	return distinct(rows, func(r store.Record) string { return r.ModelName })
}

// SampleIDs returns the sorted distinct sample ids.
func SampleIDs(rows []store.Record) []string {
	return distinct(rows, func(r store.Record) string { return r.SampleID })
}

func distinct(rows []store.Record, key func(store.Record) string) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0)

	for _, r := range rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// Filter keeps rows whose model and sample id are both selected. An empty
// selection matches nothing.
func Filter(rows []store.Record, models, sampleIDs []string) []store.Record {
	modelSet := toSet(models)
	sampleSet := toSet(sampleIDs)

	out := make([]store.Record, 0, len(rows))

	for _, r := range rows {
		if _, ok := modelSet[r.ModelName]; !ok {
			continue
		}

		if _, ok := sampleSet[r.SampleID]; !ok {
			continue
		}

		out = append(out, r)
	}

	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return set
}

// MeanByModel computes per-model means, ordered by model name.
func MeanByModel(rows []store.Record) []ModelAggregate {
	byModel := make(map[string]*ModelAggregate)

	for _, r := range rows {
		agg, ok := byModel[r.ModelName]
		if !ok {
			agg = &ModelAggregate{Model: r.ModelName}
			byModel[r.ModelName] = agg
		}

		agg.Count++
		agg.Faithfulness += float64(r.Faithfulness)
		agg.Relevance += float64(r.Relevance)
		agg.Latency += r.Latency
	}

	out := make([]ModelAggregate, 0, len(byModel))

	for _, agg := range byModel {
		n := float64(agg.Count)
		agg.Faithfulness /= n
		agg.Relevance /= n
		agg.Latency /= n

		out = append(out, *agg)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })

	return out
}

// Trend returns the history of one model ordered by creation time.
func Trend(rows []store.Record, model string) []TrendPoint {
	points := make([]TrendPoint, 0)

	for _, r := range rows {
		if r.ModelName != model {
			continue
		}

		points = append(points, TrendPoint{
			CreatedAt:    r.CreatedAt,
			Faithfulness: float64(r.Faithfulness),
			Relevance:    float64(r.Relevance),
			Latency:      r.Latency,
		})
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].CreatedAt < points[j].CreatedAt })

	return points
}

// DailyTrend averages one model's history per UTC day. Days without rows
// are omitted.
func DailyTrend(rows []store.Record, model string) []TrendPoint {
	type bucket struct {
		point TrendPoint
		n     int
	}

	buckets := make(map[int64]*bucket)

	for _, p := range Trend(rows, model) {
		t := p.Time()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()

		b, ok := buckets[day]
		if !ok {
			b = &bucket{point: TrendPoint{CreatedAt: day}}
			buckets[day] = b
		}

		b.n++
		b.point.Faithfulness += p.Faithfulness
		b.point.Relevance += p.Relevance
		b.point.Latency += p.Latency
	}

	out := make([]TrendPoint, 0, len(buckets))

	for _, b := range buckets {
		n := float64(b.n)
		b.point.Faithfulness /= n
		b.point.Relevance /= n
		b.point.Latency /= n

		out = append(out, b.point)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })

	return out
}

// MeanLatency is the mean latency of the points, or 0 when there are none.
func MeanLatency(points []TrendPoint) float64 {
	if len(points) == 0 {
		return 0
	}

	var sum float64
	for _, p := range points {
		sum += p.Latency
	}

	return sum / float64(len(points))
}

// Search keeps rows whose model name or sample id contains text, ignoring
// case. Blank text matches everything.
func Search(rows []store.Record, text string) []store.Record {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return rows
	}

	out := make([]store.Record, 0, len(rows))

	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.ModelName), needle) ||
			strings.Contains(strings.ToLower(r.SampleID), needle) {
			out = append(out, r)
		}
	}

	return out
}

// SortRows returns a copy of rows ordered by column. Ties keep id order.
func SortRows(rows []store.Record, column SortColumn, desc bool) []store.Record {
	out := make([]store.Record, len(rows))
	copy(out, rows)

	key := func(r store.Record) float64 {
		switch column {
		case SortFaithfulness:
			return float64(r.Faithfulness)
		case SortRelevance:
			return float64(r.Relevance)
		case SortLatency:
			return r.Latency
		default:
			return float64(r.CreatedAt)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(out[i]), key(out[j])
		if a == b {
			return out[i].ID < out[j].ID
		}

		if desc {
			return a > b
		}

		return a < b
	})

	return out
}
