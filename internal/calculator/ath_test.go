package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"ATHScanner/internal/model"
)

func series(n int, value float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = value
	}
	return closes
}

func TestClassify_Table(t *testing.T) {
	rising := append(series(20, 10), 12, 15)
	falling := append(series(20, 5), 5, 4)

	tests := []struct {
		name   string
		series model.PriceSeries
		ratio  float64
		kind   model.OutcomeKind
		high   float64
		latest float64
	}{
		{"latest at high", model.PriceSeries{Closes: rising, Latest: 15}, 0.98, model.Match, 15, 15},
		{"below threshold", model.PriceSeries{Closes: falling, Latest: 4}, 0.98, model.NoMatch, 5, 4},
		{"within two percent", model.PriceSeries{Closes: append(series(20, 100), 98.5)}, 0.98, model.Match, 100, 98.5},
		{"strict ratio", model.PriceSeries{Closes: append(series(20, 100), 99.9)}, 1.0, model.NoMatch, 100, 99.9},
		{"live quote overrides last close", model.PriceSeries{Closes: falling, Latest: 5.2}, 0.98, model.Match, 5, 5.2},
		{"short history", model.PriceSeries{Closes: series(19, 1), Latest: 1}, 0.98, model.NotEvaluable, 0, 0},
		{"empty", model.PriceSeries{}, 0.98, model.NotEvaluable, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.series, tt.ratio, DefaultMinHistory)
			assert.Equal(t, tt.kind, out.Kind)
			if tt.kind != model.NotEvaluable {
				assert.InDelta(t, tt.high, out.High, 1e-9)
				assert.InDelta(t, tt.latest, out.Latest, 1e-9)
			}
		})
	}
}

func TestClassify_InvalidClosesAreFiltered(t *testing.T) {
	closes := append(series(19, 10), 0, -3, math.NaN(), math.Inf(1))
	out := Classify(model.PriceSeries{Closes: closes}, 0.98, DefaultMinHistory)
	assert.Equal(t, model.NotEvaluable, out.Kind, "only 19 valid closes remain")

	closes = append(closes, 10)
	out = Classify(model.PriceSeries{Closes: closes}, 0.98, DefaultMinHistory)
	assert.Equal(t, model.Match, out.Kind)
	assert.Equal(t, 10.0, out.High)
}

func TestClassify_LatestEqualToMaxAlwaysMatches(t *testing.T) {
	closes := []float64{3, 7, 1, 9, 2, 8, 4, 6, 5, 9, 3, 2, 1, 4, 5, 6, 7, 8, 2, 3, 4}
	for _, ratio := range []float64{0.01, 0.5, 0.9, 0.98, 0.995, 1.0} {
		out := Classify(model.PriceSeries{Closes: closes, Latest: 9}, ratio, DefaultMinHistory)
		assert.Equal(t, model.Match, out.Kind, "ratio %.3f", ratio)
	}
}

func TestClassify_ShortSeriesNeverMatches(t *testing.T) {
	for n := 0; n < DefaultMinHistory; n++ {
		out := Classify(model.PriceSeries{Closes: series(n, 50), Latest: 1000}, 0.5, DefaultMinHistory)
		assert.Equal(t, model.NotEvaluable, out.Kind, "n=%d", n)
	}
}

func TestClassify_NonPositiveLatestFallsBackToLastClose(t *testing.T) {
	closes := append(series(20, 10), 8)
	out := Classify(model.PriceSeries{Closes: closes, Latest: -1}, 0.98, DefaultMinHistory)
	assert.Equal(t, model.NoMatch, out.Kind)
	assert.Equal(t, 8.0, out.Latest)
}

func TestClassifier_UsesConfiguredRatio(t *testing.T) {
	c := Classifier{ThresholdRatio: 0.5, MinHistory: 2}
	out := c.Classify(model.PriceSeries{Closes: []float64{10, 6}})
	assert.Equal(t, model.Match, out.Kind)
}
