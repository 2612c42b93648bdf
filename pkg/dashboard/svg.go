package dashboard

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"
)

const (
	chartWidth   = 800
	chartHeight  = 320
	marginLeft   = 56
	marginRight  = 24
	marginTop    = 40
	marginBottom = 72

	// Chart colors.
	ColorFaithfulness = "#007bff"
	ColorRelevance    = "#ff7f0e"
	ColorLatency      = "#ff3b3b"
	colorAxis         = "#444444"
	colorGrid         = "#dddddd"

	trendTimeLayout = "Jan 02 15:04"
	dayTimeLayout   = "Jan 02"
)

// Series is one named sequence of values in a chart.
type Series struct {
	Name   string
	Color  string
	Values []float64
}

// ReferenceLine is a horizontal marker drawn across a line chart.
type ReferenceLine struct {
	Label string
	Value float64
}

// BarChart renders one group of bars per label. When stacked is set the
// series of a group are drawn on top of each other instead of side by side.
func BarChart(title, yLabel string, labels []string, series []Series, stacked bool) string {
	var b strings.Builder

	yMax := barMax(labels, series, stacked)
	plotW, plotH := plotSize()

	openSVG(&b, title)
	drawAxes(&b, yLabel, yMax)

	if len(labels) > 0 && len(series) > 0 {
		groupW := plotW / float64(len(labels))

		barW := groupW * 0.7
		if !stacked {
			barW /= float64(len(series))
		}

		for i, label := range labels {
			x0 := marginLeft + float64(i)*groupW + groupW*0.15
			base := 0.0

			for s, ser := range series {
				v := valueAt(ser.Values, i)
				h := v / yMax * plotH

				x := x0 + float64(s)*barW
				y := marginTop + plotH - h

				if stacked {
					x = x0
					y -= base / yMax * plotH
					base += v
				}

				fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%s: %.2f</title></rect>`,
					x, y, barW, h, ser.Color, html.EscapeString(label+" "+ser.Name), v)
			}

			fmt.Fprintf(&b, `<text x="%.1f" y="%d" font-size="11" text-anchor="end" transform="rotate(-45 %.1f %d)">%s</text>`,
				x0+groupW*0.35, marginTop+int(plotH)+16, x0+groupW*0.35, marginTop+int(plotH)+16, html.EscapeString(label))
		}
	}

	drawLegend(&b, series)
	b.WriteString("</svg>")

	return b.String()
}

// LineChart renders time-ordered series against the given timestamps
// (Unix seconds). Points are spaced evenly in time order.
func LineChart(title, yLabel string, times []int64, series []Series, ref *ReferenceLine, daily bool) string {
	var b strings.Builder

	yMax := 0.0
	for _, s := range series {
		for _, v := range s.Values {
			yMax = math.Max(yMax, v)
		}
	}

	if ref != nil {
		yMax = math.Max(yMax, ref.Value)
	}

	yMax = niceMax(yMax)
	plotW, plotH := plotSize()

	// x is proportional to elapsed time so uneven gaps between runs stay
	// visible. A single distinct timestamp is centered.
	var tMin, tMax int64
	for i, ts := range times {
		if i == 0 || ts < tMin {
			tMin = ts
		}

		if i == 0 || ts > tMax {
			tMax = ts
		}
	}

	xAt := func(i int) float64 {
		if tMax == tMin || i >= len(times) {
			return marginLeft + plotW/2
		}

		return marginLeft + float64(times[i]-tMin)/float64(tMax-tMin)*plotW
	}

	yAt := func(v float64) float64 {
		return marginTop + plotH - v/yMax*plotH
	}

	openSVG(&b, title)
	drawAxes(&b, yLabel, yMax)

	layout := trendTimeLayout
	if daily {
		layout = dayTimeLayout
	}

	for i, ts := range times {
		if !showTick(i, len(times)) {
			continue
		}

		x := xAt(i)
		fmt.Fprintf(&b, `<text x="%.1f" y="%d" font-size="11" text-anchor="end" transform="rotate(-30 %.1f %d)">%s</text>`,
			x, marginTop+int(plotH)+16, x, marginTop+int(plotH)+16, time.Unix(ts, 0).UTC().Format(layout))
	}

	for _, s := range series {
		points := make([]string, 0, len(s.Values))
		for i, v := range s.Values {
			points = append(points, fmt.Sprintf("%.1f,%.1f", xAt(i), yAt(v)))
		}

		fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"/>`,
			s.Color, strings.Join(points, " "))

		for i, v := range s.Values {
			fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="3.5" fill="%s" stroke="#ffffff"><title>%s: %.2f</title></circle>`,
				xAt(i), yAt(v), s.Color, html.EscapeString(s.Name), v)
		}
	}

	if ref != nil {
		y := yAt(ref.Value)
		fmt.Fprintf(&b, `<line class="reference" x1="%d" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-dasharray="6 4"/>`,
			marginLeft, y, marginLeft+plotW, y, colorAxis)
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" font-size="11" text-anchor="end">%s</text>`,
			marginLeft+plotW, y-4, html.EscapeString(fmt.Sprintf("%s: %.2f", ref.Label, ref.Value)))
	}

	drawLegend(&b, series)
	b.WriteString("</svg>")

	return b.String()
}

func plotSize() (float64, float64) {
	return chartWidth - marginLeft - marginRight, chartHeight - marginTop - marginBottom
}

func openSVG(b *strings.Builder, title string) {
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		chartWidth, chartHeight, chartWidth, chartHeight)
	b.WriteString(`<rect width="100%" height="100%" fill="#ffffff"/>`)
	fmt.Fprintf(b, `<text x="%d" y="24" font-size="14" font-weight="bold" text-anchor="middle">%s</text>`,
		chartWidth/2, html.EscapeString(title))
}

func drawAxes(b *strings.Builder, yLabel string, yMax float64) {
	plotW, plotH := plotSize()

	const ticks = 5

	for i := 0; i <= ticks; i++ {
		v := yMax * float64(i) / ticks
		y := marginTop + plotH - plotH*float64(i)/ticks

		fmt.Fprintf(b, `<line x1="%d" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-dasharray="4 4"/>`,
			marginLeft, y, marginLeft+plotW, y, colorGrid)
		fmt.Fprintf(b, `<text x="%d" y="%.1f" font-size="11" text-anchor="end">%s</text>`,
			marginLeft-6, y+4, formatTick(v))
	}

	fmt.Fprintf(b, `<line x1="%d" y1="%d" x2="%d" y2="%.1f" stroke="%s"/>`,
		marginLeft, marginTop, marginLeft, marginTop+plotH, colorAxis)
	fmt.Fprintf(b, `<line x1="%d" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"/>`,
		marginLeft, marginTop+plotH, marginLeft+plotW, marginTop+plotH, colorAxis)
	fmt.Fprintf(b, `<text x="14" y="%.1f" font-size="12" text-anchor="middle" transform="rotate(-90 14 %.1f)">%s</text>`,
		marginTop+plotH/2, marginTop+plotH/2, html.EscapeString(yLabel))
}

func drawLegend(b *strings.Builder, series []Series) {
	x := chartWidth - marginRight - 140

	for i, s := range series {
		y := marginTop + 4 + i*16
		fmt.Fprintf(b, `<rect x="%d" y="%d" width="10" height="10" fill="%s"/>`, x, y, s.Color)
		fmt.Fprintf(b, `<text x="%d" y="%d" font-size="11">%s</text>`, x+14, y+9, html.EscapeString(s.Name))
	}
}

func barMax(labels []string, series []Series, stacked bool) float64 {
	yMax := 0.0

	for i := range labels {
		sum := 0.0

		for _, s := range series {
			v := valueAt(s.Values, i)
			if stacked {
				sum += v
			} else {
				yMax = math.Max(yMax, v)
			}
		}

		yMax = math.Max(yMax, sum)
	}

	return niceMax(yMax)
}

func valueAt(values []float64, i int) float64 {
	if i >= len(values) || math.IsNaN(values[i]) || values[i] < 0 {
		return 0
	}

	return values[i]
}

// niceMax rounds the top of the y axis up to a whole number.
func niceMax(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return 1
	}

	if v < 1 {
		return math.Ceil(v*10) / 10
	}

	return math.Ceil(v)
}

func formatTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}

	return fmt.Sprintf("%.2f", v)
}

// showTick thins x-axis labels to at most about ten.
func showTick(i, n int) bool {
	if n <= 10 {
		return true
	}

	step := (n + 9) / 10

	return i%step == 0 || i == n-1
}
