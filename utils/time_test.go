package utils

import (
	"math"
	"testing"
	"time"
)

func TestUniformPeriods(t *testing.T) {
	periods := UniformPeriods(4, 15*time.Minute)
	if len(periods) != 4 {
		t.Fatalf("length %d, want 4", len(periods))
	}
	for i, h := range periods {
		if math.Abs(h-0.25) > 1e-12 {
			t.Errorf("period %d = %v, want 0.25", i, h)
		}
	}
}

func TestPeriodEdges(t *testing.T) {
	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	edges := PeriodEdges(start, []float64{1, 0.5, 0.25})
	want := []time.Time{
		start,
		start.Add(time.Hour),
		start.Add(90 * time.Minute),
		start.Add(105 * time.Minute),
	}
	if len(edges) != len(want) {
		t.Fatalf("length %d, want %d", len(edges), len(want))
	}
	for i := range edges {
		if !edges[i].Equal(want[i]) {
			t.Errorf("edge %d = %v, want %v", i, edges[i], want[i])
		}
	}
}

func TestPeriodMidpoints(t *testing.T) {
	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	mids := PeriodMidpoints(start, []float64{1, 1})
	if !mids[0].Equal(start.Add(30 * time.Minute)) {
		t.Errorf("first midpoint = %v", mids[0])
	}
	if !mids[1].Equal(start.Add(90 * time.Minute)) {
		t.Errorf("second midpoint = %v", mids[1])
	}
}
