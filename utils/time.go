// Package utils provides shared time and period-vector helpers.
package utils //nolint:revive // utils is a common and acceptable package name

import "time"

// UniformPeriods returns n period durations of step each, in hours.
func UniformPeriods(n int, step time.Duration) []float64 {
	periods := make([]float64, n)
	for i := range periods {
		periods[i] = step.Hours()
	}
	return periods
}

// PeriodEdges returns the n+1 boundary timestamps of a horizon starting at
// start with the given period durations in hours.
func PeriodEdges(start time.Time, periods []float64) []time.Time {
	edges := make([]time.Time, len(periods)+1)
	edges[0] = start
	for i, h := range periods {
		edges[i+1] = edges[i].Add(time.Duration(h * float64(time.Hour)))
	}
	return edges
}

// PeriodMidpoints returns the n center timestamps of the horizon's periods,
// the natural sampling points for forecast curves.
func PeriodMidpoints(start time.Time, periods []float64) []time.Time {
	mids := make([]time.Time, len(periods))
	edge := start
	for i, h := range periods {
		half := time.Duration(h * float64(time.Hour) / 2)
		mids[i] = edge.Add(half)
		edge = edge.Add(time.Duration(h * float64(time.Hour)))
	}
	return mids
}
