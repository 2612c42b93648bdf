package dashboard

import (
	"html/template"
	"io"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/store"
)

const rowTimeLayout = "2006-01-02 15:04:05"

// Informational banners shown instead of empty charts.
const (
	msgNoData        = "No evaluation data found. Run evaluations first."
	msgNoFilteredRow = "No data for selected filters."
	msgNoTrend       = "Not enough data for trend visualization."
	msgNoLatency     = "Not enough latency data available."
)

type option struct {
	Value    string
	Selected bool
}

type rowView struct {
	store.Record
	CreatedAtText string
}

type pageData struct {
	Empty       bool
	Total       int
	Models      []option
	SampleIDs   []option
	TrendModels []option
	SortColumns []option
	Desc        bool
	Search      string

	BarChart template.HTML
	BarInfo  string

	TrendModel   string
	TrendChart   template.HTML
	TrendInfo    string
	LatencyChart template.HTML
	LatencyInfo  string

	Rows []rowView
}

func options(all, selected []string) []option {
	set := toSet(selected)
	out := make([]option, 0, len(all))

	for _, v := range all {
		_, ok := set[v]
		out = append(out, option{Value: v, Selected: ok})
	}

	return out
}

// buildPage computes everything the page shows for the given view.
func buildPage(rows []store.Record, v view) pageData {
	data := pageData{Empty: len(rows) == 0}
	if data.Empty {
		return data
	}

	models := Models(rows)

	data.Models = options(models, v.Models)
	data.SampleIDs = options(SampleIDs(rows), v.SampleIDs)
	data.TrendModels = options(models, []string{v.TrendModel})
	data.TrendModel = v.TrendModel
	data.Search = v.Search
	data.Desc = v.Desc

	cols := make([]string, 0, len(SortColumns()))
	for _, c := range SortColumns() {
		cols = append(cols, string(c))
	}

	data.SortColumns = options(cols, []string{string(v.Sort)})

	filtered := Filter(rows, v.Models, v.SampleIDs)
	data.Total = len(filtered)

	if aggs := MeanByModel(filtered); len(aggs) > 0 {
		data.BarChart = template.HTML(AverageScoresChart(aggs, false))
	} else {
		data.BarInfo = msgNoFilteredRow
	}

	// The trend view covers every row of the chosen model, regardless of filters.
	points := Trend(rows, v.TrendModel)
	if len(points) > 0 {
		data.TrendChart = template.HTML(ScoreTrendChart(v.TrendModel, points, false))
		data.LatencyChart = template.HTML(LatencyTrendChart(v.TrendModel, points))
	} else {
		data.TrendInfo = msgNoTrend
		data.LatencyInfo = msgNoLatency
	}

	for _, r := range v.apply(rows) {
		data.Rows = append(data.Rows, rowView{
			Record:        r,
			CreatedAtText: time.Unix(r.CreatedAt, 0).UTC().Format(rowTimeLayout),
		})
	}

	return data
}

// AverageScoresChart renders mean faithfulness and relevance per model.
func AverageScoresChart(aggs []ModelAggregate, stacked bool) string {
	labels := make([]string, 0, len(aggs))
	faith := make([]float64, 0, len(aggs))
	rel := make([]float64, 0, len(aggs))

	for _, a := range aggs {
		labels = append(labels, a.Model)
		faith = append(faith, a.Faithfulness)
		rel = append(rel, a.Relevance)
	}

	return BarChart("Average Scores by Model", "Average score", labels, []Series{
		{Name: "Faithfulness", Color: ColorFaithfulness, Values: faith},
		{Name: "Relevance", Color: ColorRelevance, Values: rel},
	}, stacked)
}

// ScoreTrendChart renders the faithfulness and relevance history of a model.
func ScoreTrendChart(model string, points []TrendPoint, daily bool) string {
	times := make([]int64, 0, len(points))
	faith := make([]float64, 0, len(points))
	rel := make([]float64, 0, len(points))

	for _, p := range points {
		times = append(times, p.CreatedAt)
		faith = append(faith, p.Faithfulness)
		rel = append(rel, p.Relevance)
	}

	return LineChart("Score Trend for "+model, "Score (1-5)", times, []Series{
		{Name: "Faithfulness", Color: ColorFaithfulness, Values: faith},
		{Name: "Relevance", Color: ColorRelevance, Values: rel},
	}, nil, daily)
}

// LatencyTrendChart renders a model's latency history with its mean.
func LatencyTrendChart(model string, points []TrendPoint) string {
	times := make([]int64, 0, len(points))
	lat := make([]float64, 0, len(points))

	for _, p := range points {
		times = append(times, p.CreatedAt)
		lat = append(lat, p.Latency)
	}

	return LineChart("Latency Trend for "+model, "Latency (seconds)", times, []Series{
		{Name: "Latency", Color: ColorLatency, Values: lat},
	}, &ReferenceLine{Label: "Mean latency", Value: MeanLatency(points)}, false)
}

func renderPage(w io.Writer, data pageData) error {
	return pageTemplate.Execute(w, data)
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Model Evaluation Dashboard</title>
<style>
body { font-family: sans-serif; margin: 1.5rem; }
.info { background: #e8f1fb; border-left: 4px solid #007bff; padding: .6rem 1rem; margin: .5rem 0; }
.warning { background: #fff4e0; border-left: 4px solid #ff7f0e; padding: .6rem 1rem; }
table { border-collapse: collapse; font-size: .85rem; }
th, td { border: 1px solid #ddd; padding: .3rem .5rem; text-align: left; vertical-align: top; }
form { display: flex; gap: 1rem; flex-wrap: wrap; align-items: flex-end; }
</style>
</head>
<body>
<h1>Model Evaluation Dashboard</h1>
{{- if .Empty }}
<div class="warning">` + msgNoData + `</div>
{{- else }}
<form method="get" action="/">
<label>Models<br><select name="model" multiple size="5">{{ range .Models }}<option value="{{ .Value }}"{{ if .Selected }} selected{{ end }}>{{ .Value }}</option>{{ end }}</select></label>
<label>Sample IDs<br><select name="sample" multiple size="5">{{ range .SampleIDs }}<option value="{{ .Value }}"{{ if .Selected }} selected{{ end }}>{{ .Value }}</option>{{ end }}</select></label>
<label>Trend model<br><select name="trend">{{ range .TrendModels }}<option value="{{ .Value }}"{{ if .Selected }} selected{{ end }}>{{ .Value }}</option>{{ end }}</select></label>
<label>Search<br><input type="text" name="q" value="{{ .Search }}"></label>
<label>Sort by<br><select name="sort">{{ range .SortColumns }}<option value="{{ .Value }}"{{ if .Selected }} selected{{ end }}>{{ .Value }}</option>{{ end }}</select></label>
<label>Order<br><select name="order"><option value="desc"{{ if .Desc }} selected{{ end }}>descending</option><option value="asc"{{ if not .Desc }} selected{{ end }}>ascending</option></select></label>
<button type="submit">Apply</button>
</form>
<p><strong>Total evaluations shown:</strong> {{ .Total }}</p>

<h2>Average Scores by Model</h2>
{{ if .BarInfo }}<div class="info">{{ .BarInfo }}</div>{{ else }}{{ .BarChart }}{{ end }}

<h2>Model Score Trends (Faithfulness &amp; Relevance)</h2>
{{ if .TrendInfo }}<div class="info">{{ .TrendInfo }}</div>{{ else }}{{ .TrendChart }}{{ end }}

<h2>Latency Trend (Response Time Over Time)</h2>
{{ if .LatencyInfo }}<div class="info">{{ .LatencyInfo }}</div>{{ else }}{{ .LatencyChart }}{{ end }}

<h2>Raw Evaluation Rows</h2>
<table>
<thead><tr><th>id</th><th>trace_id</th><th>model_name</th><th>sample_id</th><th>query</th><th>context</th><th>faithfulness</th><th>relevance</th><th>latency</th><th>created_at</th></tr></thead>
<tbody>
{{- range .Rows }}
<tr><td>{{ .ID }}</td><td>{{ .TraceID }}</td><td>{{ .ModelName }}</td><td>{{ .SampleID }}</td><td>{{ .Query }}</td><td>{{ .Context }}</td><td>{{ .Faithfulness }}</td><td>{{ .Relevance }}</td><td>{{ printf "%.2f" .Latency }}</td><td>{{ .CreatedAtText }}</td></tr>
{{- end }}
</tbody>
</table>
{{- end }}
</body>
</html>
`))
