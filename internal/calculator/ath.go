package calculator

import (
	"math"

	"ATHScanner/internal/model"
)

// DefaultMinHistory is the minimum number of valid closes a series needs
// before it can be classified.
const DefaultMinHistory = 20

// ValidCloses returns the positive, finite closes of the series in order.
func ValidCloses(closes []float64) []float64 {
	valid := make([]float64, 0, len(closes))
	for _, c := range closes {
		if c > 0 && !math.IsInf(c, 0) && !math.IsNaN(c) {
			valid = append(valid, c)
		}
	}
	return valid
}

// HistoricalHigh returns the maximum of the given closes, or 0 for an empty slice.
func HistoricalHigh(closes []float64) float64 {
	high := 0.0
	for _, c := range closes {
		if c > high {
			high = c
		}
	}
	return high
}

// Classify decides whether the series trades at or near its historical high.
// A series matches when its latest price is at least thresholdRatio times
// the highest valid close. Series with fewer than minHistory valid closes
// are NotEvaluable.
func Classify(series model.PriceSeries, thresholdRatio float64, minHistory int) model.Outcome {
	valid := ValidCloses(series.Closes)
	if len(valid) == 0 || len(valid) < minHistory {
		return model.Outcome{Kind: model.NotEvaluable}
	}

	high := HistoricalHigh(valid)
	if high <= 0 {
		return model.Outcome{Kind: model.NotEvaluable}
	}

	latest := valid[len(valid)-1]
	if l := series.Latest; l > 0 && !math.IsInf(l, 0) {
		latest = l
	}

	out := model.Outcome{Kind: model.NoMatch, Latest: latest, High: high, Name: series.Name}
	if latest >= high*thresholdRatio {
		out.Kind = model.Match
	}
	return out
}

// Classifier binds the threshold configuration to Classify.
type Classifier struct {
	ThresholdRatio float64
	MinHistory     int
}

func (c Classifier) Classify(series model.PriceSeries) model.Outcome {
	return Classify(series, c.ThresholdRatio, c.MinHistory)
}
