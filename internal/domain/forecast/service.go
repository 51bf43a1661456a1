// Package forecast projects per-state case statistics from a CSV dataset.
package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/montanaflynn/stats"
)

const (
	DefaultHorizon = 14
	MaxHorizon     = 90
	minPoints      = 5
	// cumulative series need one extra point to yield minPoints deltas.
	minCumulativePoints = 6
	analysisWindow      = 14
	changeWindow        = 7
)

var (
	ErrStateNotFound = errors.New("state not found in dataset")
	ErrNoSeries      = errors.New("no valid series to forecast")
)

// cumulativeMetrics are running totals in most published datasets.
var cumulativeMetrics = map[string]bool{"recovered": true, "confirmed": true, "deaths": true}

// Point is one forecast value. It serializes as {"date": ..., <metric>: value}.
type Point map[string]any

type Result struct {
	State    string             `json:"state"`
	Horizon  int                `json:"horizon"`
	Series   map[string][]Point `json:"series"`
	Analysis string             `json:"analysis"`
}

type DatasetSource interface {
	Dataset() (*Dataset, error)
}

type Service struct {
	source     DatasetSource
	forecaster Forecaster
	now        func() time.Time
}

func NewService(source DatasetSource, forecaster Forecaster) *Service {
	return &Service{source: source, forecaster: forecaster, now: time.Now}
}

func (s *Service) States() ([]string, error) {
	ds, err := s.source.Dataset()
	if err != nil {
		return nil, err
	}
	return ds.States(), nil
}

// Forecast projects every usable metric of state horizon days past the last
// observation.
func (s *Service) Forecast(state string, horizon int) (*Result, error) {
	if horizon < 1 || horizon > MaxHorizon {
		return nil, fmt.Errorf("days must be between 1 and %d", MaxHorizon)
	}
	ds, err := s.source.Dataset()
	if err != nil {
		return nil, err
	}
	series, ok := ds.SeriesFor(state, civil.DateOf(s.now()))
	if !ok {
		return nil, ErrStateNotFound
	}

	last := series.Dates[series.Len()-1]
	res := &Result{State: state, Horizon: horizon, Series: make(map[string][]Point)}
	var lines []string
	for _, metric := range Metrics {
		values, ok := series.Values[metric]
		if !ok || len(values) < minPoints {
			continue
		}
		fc, err := s.project(metric, values, horizon)
		if err != nil {
			continue
		}
		points := make([]Point, horizon)
		for i, v := range fc {
			points[i] = Point{"date": last.AddDays(i + 1).String(), metric: v}
		}
		res.Series[metric] = points
		lines = append(lines, analyse(metric, values))
	}
	if len(res.Series) == 0 {
		return nil, ErrNoSeries
	}
	res.Analysis = strings.Join(lines, " ")
	return res, nil
}

// project forecasts running totals on their clipped daily increments and
// re-accumulates them, so the projection never decreases. Other series are
// forecast directly and floored at zero.
func (s *Service) project(metric string, values []float64, horizon int) ([]float64, error) {
	if cumulativeMetrics[metric] && nonDecreasing(values) && len(values) >= minCumulativePoints {
		deltas := diff(values)
		for i, d := range deltas {
			deltas[i] = max(d, 0)
		}
		fc, err := s.forecaster.Forecast(deltas, horizon)
		if err != nil {
			return nil, err
		}
		level := values[len(values)-1]
		for i, d := range fc {
			level += max(d, 0)
			fc[i] = level
		}
		return fc, nil
	}
	fc, err := s.forecaster.Forecast(values, horizon)
	if err != nil {
		return nil, err
	}
	for i, v := range fc {
		fc[i] = max(v, 0)
	}
	return fc, nil
}

func tail(xs []float64, n int) []float64 {
	if n > len(xs) {
		n = len(xs)
	}
	return xs[len(xs)-n:]
}

// analyse summarises the recent window of a series in one sentence.
func analyse(metric string, values []float64) string {
	recent := tail(values, analysisWindow)
	last7 := tail(recent, changeWindow)
	prev7 := recent[:len(recent)-len(last7)]

	lastVal := recent[len(recent)-1]
	avgChange := orZero(stats.Mean(diff(last7)))
	lastMean := orZero(stats.Mean(last7))
	base := lastMean
	if len(prev7) > 0 {
		base = orZero(stats.Mean(prev7))
	}
	pctChange := (lastMean - base) / max(1e-6, base) * 100
	volatility := orZero(stats.StandardDeviationSample(diff(last7)))

	slope, r2 := 0.0, 0.0
	if s, _, fitted, err := fitLine(recent); err == nil {
		slope, r2 = s, rSquared(recent, fitted)
	}
	direction := "stable"
	switch {
	case slope > 0:
		direction = "increasing"
	case slope < 0:
		direction = "decreasing"
	}
	return fmt.Sprintf("%s: last=%.0f, avg Δ7d=%.2f, pct Δ≈%.1f%%, volatility≈%.2f, trend %s (R²=%.2f).",
		strings.ToUpper(metric[:1])+metric[1:], lastVal, avgChange, pctChange, volatility, direction, r2)
}
