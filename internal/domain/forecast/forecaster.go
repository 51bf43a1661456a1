package forecast

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"
)

var ErrTooShort = errors.New("series too short to fit")

// Forecaster extends a numeric series by horizon steps.
type Forecaster interface {
	Forecast(history []float64, horizon int) ([]float64, error)
}

// LinearForecaster extrapolates the least-squares line through the history.
type LinearForecaster struct{}

func (LinearForecaster) Forecast(history []float64, horizon int) ([]float64, error) {
	slope, intercept, _, err := fitLine(history)
	if err != nil {
		return nil, err
	}
	out := make([]float64, horizon)
	n := float64(len(history))
	for i := range out {
		out[i] = intercept + slope*(n+float64(i))
	}
	return out, nil
}

// fitLine fits y = intercept + slope*x over x = 0..len(ys)-1 and returns the
// fitted values alongside the coefficients.
func fitLine(ys []float64) (slope, intercept float64, fitted []float64, err error) {
	if len(ys) < 2 {
		return 0, 0, nil, ErrTooShort
	}
	series := make(stats.Series, len(ys))
	for i, y := range ys {
		series[i] = stats.Coordinate{X: float64(i), Y: y}
	}
	reg, err := stats.LinearRegression(series)
	if err != nil {
		return 0, 0, nil, err
	}
	fitted = make([]float64, len(reg))
	for i, c := range reg {
		fitted[i] = c.Y
	}
	last := len(reg) - 1
	slope = (reg[last].Y - reg[0].Y) / reg[last].X
	return slope, reg[0].Y, fitted, nil
}

// rSquared is the coefficient of determination of fitted against ys. A flat
// series is fitted perfectly.
func rSquared(ys, fitted []float64) float64 {
	mean, err := stats.Mean(ys)
	if err != nil {
		return 0
	}
	var ssRes, ssTot float64
	for i, y := range ys {
		ssRes += (y - fitted[i]) * (y - fitted[i])
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		ssTot = 1
	}
	return 1 - ssRes/ssTot
}

func diff(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}

func orZero(v float64, err error) float64 {
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func nonDecreasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			return false
		}
	}
	return true
}
