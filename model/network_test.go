package model

import (
	"errors"
	"testing"

	"github.com/hass-energy/haeo/lp"
)

func TestNetworkNewValidation(t *testing.T) {
	if _, err := New("empty", nil); err == nil {
		t.Error("empty period vector accepted")
	}
	if _, err := New("negative", []float64{1, -1}); err == nil {
		t.Error("negative period duration accepted")
	}
	if _, err := New("zero", []float64{0}); err == nil {
		t.Error("zero period duration accepted")
	}
}

func TestNetworkDuplicateName(t *testing.T) {
	net, err := New("dup", []float64{1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSource: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	err = net.Add("grid", NodeConfig{})
	var te *TopologyError
	if !errors.As(err, &te) {
		t.Fatalf("expected TopologyError, got %v", err)
	}
	if te.Element != "grid" {
		t.Errorf("element %q, want grid", te.Element)
	}
}

func TestNetworkConnectionEndpoints(t *testing.T) {
	cases := []struct {
		name string
		cfg  ConnectionConfig
	}{
		{"missing source", ConnectionConfig{Source: "ghost", Target: "grid"}},
		{"missing target", ConnectionConfig{Source: "grid", Target: "ghost"}},
		{"connection endpoint", ConnectionConfig{Source: "grid", Target: "other_link"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			net, err := New("topo", []float64{1})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := net.Add("grid", SourceSinkConfig{IsSource: true, IsSink: true}); err != nil {
				t.Fatalf("add grid: %v", err)
			}
			if err := net.Add("home", NodeConfig{}); err != nil {
				t.Fatalf("add home: %v", err)
			}
			if err := net.Add("other_link", ConnectionConfig{Source: "grid", Target: "home"}); err != nil {
				t.Fatalf("add other_link: %v", err)
			}
			err = net.Add("link", c.cfg)
			var te *TopologyError
			if !errors.As(err, &te) {
				t.Fatalf("expected TopologyError, got %v", err)
			}
			if te.Element != "link" {
				t.Errorf("element %q, want link", te.Element)
			}
		})
	}
}

func TestNetworkNodeBalance(t *testing.T) {
	net, err := New("balance", []float64{1, 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSource: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	if err := net.Add("home", NodeConfig{}); err != nil {
		t.Fatalf("add home: %v", err)
	}
	if err := net.Add("load", SourceSinkConfig{IsSink: true}); err != nil {
		t.Fatalf("add load: %v", err)
	}
	// A fixed 3 kW demand must flow through the node untouched.
	if err := net.Add("grid_home", ConnectionConfig{
		Source: "grid",
		Target: "home",
		Segments: []NamedSegmentConfig{
			{Name: "tariff", Config: PricingConfig{PriceSourceTarget: Scalar(0.4)}},
		},
	}); err != nil {
		t.Fatalf("add grid_home: %v", err)
	}
	if err := net.Add("home_load", ConnectionConfig{
		Source: "home",
		Target: "load",
		Segments: []NamedSegmentConfig{
			{Name: "demand", Config: PowerLimitConfig{
				MaxSourceTarget: Scalar(3),
				MaxTargetSource: Scalar(0),
				Fixed:           true,
			}},
		},
	}); err != nil {
		t.Fatalf("add home_load: %v", err)
	}

	cost, err := net.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !almostEqual(cost, 0.4*3*2) {
		t.Errorf("cost = %v, want %v", cost, 0.4*3*2)
	}

	out, err := net.Outputs("home")
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	// The nodal price equals the marginal import tariff.
	seriesEqual(t, "nodal price", out[OutputNamePrice].Values, []float64{0.4, 0.4})

	imp, err := net.Outputs("grid_home")
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	seriesEqual(t, "import", imp["power_source_target"].Values, []float64{3, 3})
}

func TestNetworkOutputsBeforeSolve(t *testing.T) {
	net, err := New("fresh", []float64{1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSource: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}

	_, err = net.Outputs("grid")
	var se *SolveError
	if !errors.As(err, &se) {
		t.Fatalf("expected SolveError, got %v", err)
	}
	if se.Status != lp.NotSolved {
		t.Errorf("status %v, want not solved", se.Status)
	}

	_, err = net.Outputs("ghost")
	var te *TopologyError
	if !errors.As(err, &te) {
		t.Fatalf("expected TopologyError for unknown element, got %v", err)
	}
}

func TestNetworkInfeasible(t *testing.T) {
	net, err := New("stuck", []float64{1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// A battery pinned empty below its own minimum charge, with nothing to
	// charge it from.
	if err := net.Add("battery", BatteryConfig{
		Capacity:      10,
		InitialCharge: 0,
		MinCharge:     Scalar(0.5),
	}); err != nil {
		t.Fatalf("add battery: %v", err)
	}

	_, err = net.Optimize()
	var se *SolveError
	if !errors.As(err, &se) {
		t.Fatalf("expected SolveError, got %v", err)
	}
	if se.Status != lp.Infeasible {
		t.Errorf("status %v, want infeasible", se.Status)
	}

	diag := net.Diagnostics()
	if diag["status"].Values[0] != float64(lp.NotSolved) {
		t.Errorf("diagnostics status %v, want not solved", diag["status"].Values[0])
	}
}

func TestNetworkUpdateSkipsUnknownNames(t *testing.T) {
	net, err := New("skip", []float64{1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSource: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	if err := net.Update(map[string]Parameters{
		"ghost": NodeParameters{},
	}); err != nil {
		t.Errorf("override for absent element not skipped: %v", err)
	}
}

func TestNetworkUpdateRejectsKindMismatch(t *testing.T) {
	net, err := New("mismatch", []float64{1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSource: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	err = net.Update(map[string]Parameters{
		"grid": BatteryParameters{},
	})
	var ce *ConstructionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConstructionError, got %v", err)
	}
}

func TestNetworkValidate(t *testing.T) {
	net, err := New("valid", []float64{1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSource: true, IsSink: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	if err := net.Add("home", NodeConfig{}); err != nil {
		t.Fatalf("add home: %v", err)
	}
	if err := net.Add("link", ConnectionConfig{Source: "grid", Target: "home"}); err != nil {
		t.Fatalf("add link: %v", err)
	}
	if err := net.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNetworkDiagnostics(t *testing.T) {
	net, err := New("diag", []float64{1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("a", SourceSinkConfig{IsSource: true}); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := net.Add("b", SourceSinkConfig{IsSink: true}); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := net.Add("link", ConnectionConfig{
		Source: "a",
		Target: "b",
		Segments: []NamedSegmentConfig{
			{Name: "schedule", Config: PowerLimitConfig{
				MaxSourceTarget: Scalar(2),
				MaxTargetSource: Scalar(0),
				Fixed:           true,
			}},
			{Name: "tariff", Config: PricingConfig{PriceSourceTarget: Scalar(0.5)}},
		},
	}); err != nil {
		t.Fatalf("add link: %v", err)
	}

	if _, err := net.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	diag := net.Diagnostics()
	if !almostEqual(diag["cost"].Values[0], 1.0) {
		t.Errorf("diagnostics cost = %v, want 1.0", diag["cost"].Values[0])
	}
	if diag["status"].Values[0] != float64(lp.Optimal) {
		t.Errorf("diagnostics status = %v, want optimal", diag["status"].Values[0])
	}
	if diag["solve_duration"].Values[0] < 0 {
		t.Error("negative solve duration")
	}
}

func TestNetworkAllOutputs(t *testing.T) {
	net := chargeFixture(t)
	if _, err := net.AllOutputs(); err == nil {
		t.Fatal("AllOutputs before solve did not fail")
	}
	if _, err := net.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	all, err := net.AllOutputs()
	if err != nil {
		t.Fatalf("AllOutputs: %v", err)
	}
	for _, name := range []string{"grid", "battery", "grid_battery"} {
		if _, ok := all[name]; !ok {
			t.Errorf("missing outputs for %q", name)
		}
	}
}
