package dashboard

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertWellFormed(t *testing.T, svg string) {
	t.Helper()

	dec := xml.NewDecoder(strings.NewReader(svg))

	for {
		_, err := dec.Token()
		if err != nil {
			require.Equal(t, "EOF", err.Error(), "svg is not well formed")

			return
		}
	}
}

func TestBarChart(t *testing.T) {
	svg := AverageScoresChart([]ModelAggregate{
		{Model: "A", Faithfulness: 4, Relevance: 3.5},
		{Model: "<B&C>", Faithfulness: 2, Relevance: 5},
	}, false)

	assertWellFormed(t, svg)
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Equal(t, 4, strings.Count(svg, "<rect x=")-2, "one bar per model and series")
	assert.Contains(t, svg, "&lt;B&amp;C&gt;")
	assert.NotContains(t, svg, "<B&C>")
}

func TestBarChart_Stacked(t *testing.T) {
	svg := AverageScoresChart([]ModelAggregate{{Model: "A", Faithfulness: 4, Relevance: 5}}, true)

	assertWellFormed(t, svg)
	// The axis reaches the stacked total.
	assert.Contains(t, svg, ">9</text>")
}

func TestLineChart_ReferenceLine(t *testing.T) {
	points := []TrendPoint{
		{CreatedAt: 1_700_000_000, Latency: 1},
		{CreatedAt: 1_700_000_600, Latency: 3},
	}

	svg := LatencyTrendChart("A", points)

	assertWellFormed(t, svg)
	assert.Contains(t, svg, `class="reference"`)
	assert.Contains(t, svg, "Mean latency: 2.00")
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
}

func TestLineChart_SinglePoint(t *testing.T) {
	svg := ScoreTrendChart("A", []TrendPoint{{CreatedAt: 1, Faithfulness: 5, Relevance: 4}}, false)

	assertWellFormed(t, svg)
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
}

func TestLineChart_XFollowsTime(t *testing.T) {
	tests := []struct {
		name  string
		times []int64
		want  []string
	}{
		{
			name:  "uneven gaps",
			times: []int64{0, 10, 100},
			want:  []string{`cx="56.0"`, `cx="128.0"`, `cx="776.0"`},
		},
		{
			name:  "single point centered",
			times: []int64{1_700_000_000},
			want:  []string{`cx="416.0"`},
		},
		{
			name:  "equal timestamps centered",
			times: []int64{42, 42},
			want:  []string{`cx="416.0"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]float64, len(tt.times))
			for i := range values {
				values[i] = 1
			}

			svg := LineChart("T", "Y", tt.times, []Series{
				{Name: "S", Color: "#000000", Values: values},
			}, nil, false)

			assertWellFormed(t, svg)

			for _, w := range tt.want {
				assert.Contains(t, svg, w)
			}

			assert.Equal(t, len(tt.times), strings.Count(svg, "<circle"))
		})
	}
}

func TestNiceMax(t *testing.T) {
	assert.InDelta(t, 1.0, niceMax(0), 1e-9)
	assert.InDelta(t, 0.5, niceMax(0.42), 1e-9)
	assert.InDelta(t, 5.0, niceMax(4.2), 1e-9)
	assert.InDelta(t, 5.0, niceMax(5), 1e-9)
}
