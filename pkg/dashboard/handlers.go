package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethpandaops/llmsentinel/pkg/store"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// view is the filter, search and sort state carried in query parameters.
type view struct {
	Models     []string
	SampleIDs  []string
	Search     string
	Sort       SortColumn
	Desc       bool
	TrendModel string
	Refresh    bool
}

// parseView reads the view state. Absent model or sample parameters select
// every value present in rows; present but empty ones select nothing.
func parseView(r *http.Request, rows []store.Record) (view, error) {
	q := r.URL.Query()

	v := view{
		Models:     selection(q["model"], q.Has("model"), Models(rows)),
		SampleIDs:  selection(q["sample"], q.Has("sample"), SampleIDs(rows)),
		Search:     q.Get("q"),
		Desc:       true,
		TrendModel: q.Get("trend"),
	}

	col, err := ParseSortColumn(q.Get("sort"))
	if err != nil {
		return v, err
	}

	v.Sort = col

	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		v.Desc = false
	default:
		return v, fmt.Errorf("unknown sort order %q", q.Get("order"))
	}

	if v.TrendModel == "" {
		if models := Models(rows); len(models) > 0 {
			v.TrendModel = models[0]
		}
	}

	return v, nil
}

func selection(values []string, present bool, all []string) []string {
	if !present {
		return all
	}

	out := make([]string, 0, len(values))

	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}

	return out
}

// apply filters, searches and sorts rows for the table.
func (v view) apply(rows []store.Record) []store.Record {
	return SortRows(Search(Filter(rows, v.Models, v.SampleIDs), v.Search), v.Sort, v.Desc)
}

func refreshRequested(r *http.Request) bool {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	return refresh
}

// loadRows returns the memoized table, writing an error response on failure.
func (s *server) loadRows(w http.ResponseWriter, r *http.Request) ([]store.Record, bool) {
	rows, err := s.cache.Rows(r.Context(), refreshRequested(r))
	if err != nil {
		s.log.WithError(err).Error("Failed to load evaluations")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"loading evaluations failed"})

		return nil, false
	}

	return rows, true
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type evaluationsResponse struct {
	Total       int            `json:"total"`
	Evaluations []store.Record `json:"evaluations"`
}

// handleEvaluations returns the filtered, searched and sorted rows.
func (s *server) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.loadRows(w, r)
	if !ok {
		return
	}

	v, err := parseView(r, rows)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	out := v.apply(rows)

	writeJSON(w, http.StatusOK, evaluationsResponse{Total: len(out), Evaluations: out})
}

type aggregatesResponse struct {
	Aggregates []ModelAggregate `json:"aggregates"`
}

// handleAggregates returns per-model means over the filtered rows.
func (s *server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.loadRows(w, r)
	if !ok {
		return
	}

	v, err := parseView(r, rows)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, aggregatesResponse{
		Aggregates: MeanByModel(Filter(rows, v.Models, v.SampleIDs)),
	})
}

type trendResponse struct {
	Model       string       `json:"model"`
	Points      []TrendPoint `json:"points"`
	MeanLatency float64      `json:"mean_latency"`
}

// handleTrend returns the time-ordered history of one model.
func (s *server) handleTrend(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	if model == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"model is required"})

		return
	}

	rows, ok := s.loadRows(w, r)
	if !ok {
		return
	}

	points := Trend(rows, model)

	writeJSON(w, http.StatusOK, trendResponse{
		Model:       model,
		Points:      points,
		MeanLatency: MeanLatency(points),
	})
}

// handleIndex renders the HTML dashboard.
func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rows, err := s.cache.Rows(r.Context(), refreshRequested(r))
	if err != nil {
		s.log.WithError(err).Error("Failed to load evaluations")
		http.Error(w, "loading evaluations failed", http.StatusInternalServerError)

		return
	}

	v, err := parseView(r, rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := renderPage(w, buildPage(rows, v)); err != nil {
		s.log.WithError(err).Error("Failed to render dashboard")
	}
}
