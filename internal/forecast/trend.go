package forecast

import (
	"math"

	"finclusion/internal/stats"
	"finclusion/pkg/contracts/domain"
)

// TrendModel is a fitted baseline trend, evaluated at any year.
type TrendModel interface {
	Predict(year int) float64
	Family() domain.TrendFamily
	ResidualStd() float64
}

// linearModel projects a straight line.
type linearModel struct {
	fit stats.LinearFit
}

func (m linearModel) Predict(year int) float64   { return m.fit.Predict(year) }
func (m linearModel) Family() domain.TrendFamily { return domain.TrendLinear }
func (m linearModel) ResidualStd() float64       { return m.fit.ResidualStd }

// logisticModel projects a saturating curve bounded by [0, 100],
// fitted as a line in logit space. Percentage indicators approaching
// saturation bend this way; a straight line would overshoot 100.
type logisticModel struct {
	fit         stats.LinearFit
	residualStd float64
}

func (m logisticModel) Predict(year int) float64 {
	z := m.fit.Predict(year)
	return 100 / (1 + math.Exp(-z))
}

func (m logisticModel) Family() domain.TrendFamily { return domain.TrendLogistic }
func (m logisticModel) ResidualStd() float64       { return m.residualStd }

// FitTrend fits the trend family that tracks the series' historical
// curvature best. Percentage series strictly inside (0, 100) are
// candidates for the logistic form; whichever family reproduces the
// history with lower error wins, with ties going to linear.
func FitTrend(series domain.Series, unit string) TrendModel {
	years := series.Years()
	values := series.Values()

	linear := linearModel{fit: stats.FitLinear(years, values)}
	if unit != "percent" || !strictlyInside(values, 0, 100) {
		return linear
	}

	logits := make([]float64, len(values))
	for i, v := range values {
		logits[i] = math.Log(v / (100 - v))
	}
	logistic := logisticModel{fit: stats.FitLinear(years, logits)}

	linPred := make([]float64, len(years))
	logPred := make([]float64, len(years))
	for i, y := range years {
		linPred[i] = linear.Predict(y)
		logPred[i] = logistic.Predict(y)
	}
	linErr := stats.RMSE(values, linPred)
	logErr := stats.RMSE(values, logPred)

	if logErr >= linErr {
		return linear
	}

	// Residual noise in value space, not logit space, so confidence
	// bands stay comparable across families.
	logistic.residualStd = logErr
	return logistic
}

func strictlyInside(values []float64, lo, hi float64) bool {
	for _, v := range values {
		if v <= lo || v >= hi {
			return false
		}
	}
	return true
}
