package model

import (
	"errors"
	"testing"
)

func TestSeriesResolve(t *testing.T) {
	cases := []struct {
		name   string
		series Series
		want   int
		expect []float64
	}{
		{"broadcast scalar", Scalar(2.5), 4, []float64{2.5, 2.5, 2.5, 2.5}},
		{"exact interval", Series{1, 2, 3}, 3, []float64{1, 2, 3}},
		{"exact boundary", Series{1, 2, 3, 4}, 4, []float64{1, 2, 3, 4}},
		{"single period", Series{7}, 1, []float64{7}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.series.resolve("el", "field", c.want)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if len(got) != len(c.expect) {
				t.Fatalf("length %d, want %d", len(got), len(c.expect))
			}
			for i := range got {
				if got[i] != c.expect[i] {
					t.Errorf("value %d = %v, want %v", i, got[i], c.expect[i])
				}
			}
		})
	}
}

func TestSeriesResolveLengthMismatch(t *testing.T) {
	_, err := Series{1, 2}.resolve("battery", "min_charge", 5)
	var ce *ConstructionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConstructionError, got %v", err)
	}
	if ce.Element != "battery" || ce.Field != "min_charge" {
		t.Errorf("error names %q.%q, want battery.min_charge", ce.Element, ce.Field)
	}
	if ce.Expected != 5 || ce.Actual != 2 {
		t.Errorf("lengths %d/%d, want 5/2", ce.Expected, ce.Actual)
	}
}

func TestSeriesChecks(t *testing.T) {
	if err := checkFraction("el", "f", []float64{0, 0.5, 1}); err != nil {
		t.Errorf("valid fractions rejected: %v", err)
	}
	if err := checkFraction("el", "f", []float64{1.01}); err == nil {
		t.Error("fraction above one accepted")
	}
	if err := checkEfficiency("el", "f", []float64{0.9, 1}); err != nil {
		t.Errorf("valid efficiencies rejected: %v", err)
	}
	if err := checkEfficiency("el", "f", []float64{0}); err == nil {
		t.Error("zero efficiency accepted")
	}
	if err := checkNonNegative("el", "f", []float64{0, 3}); err != nil {
		t.Errorf("valid limits rejected: %v", err)
	}
	if err := checkNonNegative("el", "f", []float64{-1}); err == nil {
		t.Error("negative limit accepted")
	}
}
