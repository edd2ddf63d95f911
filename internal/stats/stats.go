// Package stats provides the small set of statistics the impact and
// forecast models share: ordinary least squares on annual series and
// summary moments.
package stats

import (
	"math"
)

// LinearFit is a least-squares line fitted to (year, value) pairs.
type LinearFit struct {
	Intercept   float64
	Slope       float64
	ResidualStd float64
	N           int
}

// FitLinear fits a least-squares line to the points. Years and values
// must have equal length of at least two.
func FitLinear(years []int, values []float64) LinearFit {
	n := float64(len(years))
	if len(years) < 2 || len(years) != len(values) {
		return LinearFit{N: len(years)}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range years {
		x := float64(y)
		sumX += x
		sumY += values[i]
		sumXY += x * values[i]
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return LinearFit{Intercept: sumY / n, N: len(years)}
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	var ssr float64
	for i, y := range years {
		resid := values[i] - (intercept + slope*float64(y))
		ssr += resid * resid
	}
	residStd := 0.0
	if len(years) > 2 {
		residStd = math.Sqrt(ssr / (n - 2))
	} else {
		residStd = math.Sqrt(ssr / n)
	}

	return LinearFit{
		Intercept:   intercept,
		Slope:       slope,
		ResidualStd: residStd,
		N:           len(years),
	}
}

// Predict evaluates the fitted line at a year.
func (f LinearFit) Predict(year int) float64 {
	return f.Intercept + f.Slope*float64(year)
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Std returns the sample standard deviation, or 0 when fewer than two
// values are given.
func Std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// RMSE returns the root mean squared error between two equal-length
// slices.
func RMSE(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var ss float64
	for i := range a {
		d := a[i] - b[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(a)))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
