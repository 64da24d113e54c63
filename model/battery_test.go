package model

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-6

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func seriesEqual(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range got {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

// chargeFixture builds a grid feeding a battery through a limited, priced
// connection. Charging costs 0.1/kWh and the final charge salvages at
// 0.2/kWh, so the limit binds in every period and its shadow price is the
// forgone margin.
func chargeFixture(t *testing.T) *Network {
	t.Helper()
	net, err := New("charge", []float64{1, 1, 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSource: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	if err := net.Add("battery", BatteryConfig{
		Capacity:      10,
		InitialCharge: 2,
		EfficiencyOut: 0.9,
		SalvageValue:  0.2,
	}); err != nil {
		t.Fatalf("add battery: %v", err)
	}
	if err := net.Add("grid_battery", ConnectionConfig{
		Source: "grid",
		Target: "battery",
		Segments: []NamedSegmentConfig{
			{Name: "limit", Config: PowerLimitConfig{MaxSourceTarget: Series{5, 2, 0}, MaxTargetSource: Scalar(0)}},
			{Name: "tariff", Config: PricingConfig{PriceSourceTarget: Scalar(0.1)}},
		},
	}); err != nil {
		t.Fatalf("add connection: %v", err)
	}
	return net
}

func TestBatteryChargeSchedule(t *testing.T) {
	net := chargeFixture(t)

	cost, err := net.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// 0.1 * 7 kWh charged, minus 0.2 * 9 kWh salvage.
	if !almostEqual(cost, 0.7-1.8) {
		t.Errorf("cost = %v, want %v", cost, 0.7-1.8)
	}

	out, err := net.Outputs("battery")
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	seriesEqual(t, "energy_stored", out[OutputNameEnergyStored].Values, []float64{2, 7, 9, 9})
	seriesEqual(t, "power_charge", out[OutputNamePowerCharge].Values, []float64{5, 2, 0})
	seriesEqual(t, "power_discharge", out[OutputNamePowerDischarge].Values, []float64{0, 0, 0})
	seriesEqual(t, "state_of_charge", out[OutputNameStateOfCharge].Values, []float64{0.2, 0.7, 0.9, 0.9})
}

func TestBatteryChargeLimitShadowPrice(t *testing.T) {
	net := chargeFixture(t)
	if _, err := net.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	out, err := net.Outputs("grid_battery")
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	// Each extra kW of limit charges one more kWh: pay 0.1, salvage 0.2.
	seriesEqual(t, "limit shadow price",
		out["limit_shadow_price_source_target"].Values, []float64{-0.1, -0.1, -0.1})
}

func TestBatteryEfficiencyDynamics(t *testing.T) {
	net, err := New("eff", []float64{1, 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSource: true, IsSink: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	if err := net.Add("battery", BatteryConfig{
		Capacity:      10,
		InitialCharge: 5,
		EfficiencyIn:  0.8,
		EfficiencyOut: 0.5,
		SalvageValue:  0.1,
	}); err != nil {
		t.Fatalf("add battery: %v", err)
	}
	// Charge 5 kW for one hour, discharge 1 kW for one hour.
	if err := net.Add("link", ConnectionConfig{
		Source: "grid",
		Target: "battery",
		Segments: []NamedSegmentConfig{
			{Name: "limit", Config: PowerLimitConfig{
				MaxSourceTarget: Series{5, 0},
				MaxTargetSource: Series{0, 1},
				Fixed:           true,
			}},
		},
	}); err != nil {
		t.Fatalf("add connection: %v", err)
	}

	cost, err := net.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !almostEqual(cost, -0.7) {
		t.Errorf("cost = %v, want -0.7", cost)
	}
	out, err := net.Outputs("battery")
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	// 5 + 5*0.8 = 9 stored, then 9 - 1/0.5 = 7.
	seriesEqual(t, "energy_stored", out[OutputNameEnergyStored].Values, []float64{5, 9, 7})
}

func TestBatteryConstructionErrors(t *testing.T) {
	cases := []struct {
		name  string
		cfg   BatteryConfig
		field string
	}{
		{"zero capacity", BatteryConfig{Capacity: 0}, "capacity"},
		{"negative initial", BatteryConfig{Capacity: 10, InitialCharge: -1}, "initial_charge"},
		{"initial above capacity", BatteryConfig{Capacity: 10, InitialCharge: 11}, "initial_charge"},
		{"efficiency above one", BatteryConfig{Capacity: 10, EfficiencyIn: 1.5}, "efficiency_in"},
		{"min above max", BatteryConfig{Capacity: 10, MinCharge: Scalar(0.8), MaxCharge: Scalar(0.5)}, "min_charge"},
		{"fraction out of range", BatteryConfig{Capacity: 10, MaxCharge: Scalar(1.2)}, "max_charge"},
		{"wrong series length", BatteryConfig{Capacity: 10, MinCharge: Series{0, 0}}, "min_charge"},
		{"negative power limit", BatteryConfig{Capacity: 10, MaxChargePower: Scalar(-3)}, "max_charge_power"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			net, err := New("n", []float64{1, 1, 1})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			err = net.Add("battery", c.cfg)
			var ce *ConstructionError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConstructionError, got %v", err)
			}
			if ce.Field != c.field {
				t.Errorf("field %q, want %q", ce.Field, c.field)
			}
		})
	}
}

func TestBatteryPartitionBilling(t *testing.T) {
	net, err := New("part", []float64{1, 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Add("grid", SourceSinkConfig{IsSink: true}); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	if err := net.Add("battery", BatteryConfig{
		Capacity:      10,
		InitialCharge: 6,
		Undercharge:   &PartitionConfig{Threshold: Scalar(0.5), Cost: 0.4},
	}); err != nil {
		t.Fatalf("add battery: %v", err)
	}
	// Forced discharge of 2 kW then 1 kW drags the battery 2 kWh below the
	// 5 kWh comfort band by the end of the horizon.
	if err := net.Add("link", ConnectionConfig{
		Source: "battery",
		Target: "grid",
		Segments: []NamedSegmentConfig{
			{Name: "limit", Config: PowerLimitConfig{
				MaxSourceTarget: Series{2, 1},
				MaxTargetSource: Scalar(0),
				Fixed:           true,
			}},
		},
	}); err != nil {
		t.Fatalf("add connection: %v", err)
	}

	cost, err := net.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// Depth 1 kWh after the first period, 2 kWh after the second.
	if !almostEqual(cost, 0.4*1+0.4*2) {
		t.Errorf("cost = %v, want %v", cost, 0.4*1+0.4*2)
	}

	out, err := net.Outputs("battery")
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	seriesEqual(t, "undercharge_depth", out["undercharge_depth"].Values, []float64{1, 2})
}

func TestBatteryRebind(t *testing.T) {
	net := chargeFixture(t)
	if _, err := net.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	initial := 4.0
	if err := net.Update(map[string]Parameters{
		"battery": BatteryParameters{InitialCharge: &initial},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := net.Outputs("battery"); err == nil {
		t.Fatal("outputs served from a stale solution")
	}

	if _, err := net.Optimize(); err != nil {
		t.Fatalf("re-Optimize: %v", err)
	}
	out, err := net.Outputs("battery")
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	seriesEqual(t, "energy_stored", out[OutputNameEnergyStored].Values, []float64{4, 9, 10, 10})
}

func TestRebindUnchangedValuesKeepsSchedule(t *testing.T) {
	net := chargeFixture(t)
	first, err := net.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	// Rebinding every rebindable parameter to its construction value must
	// leave the next solve's result untouched.
	initial := 2.0
	effOut := 0.9
	if err := net.Update(map[string]Parameters{
		"battery": BatteryParameters{
			InitialCharge: &initial,
			EfficiencyOut: &effOut,
		},
		"grid_battery": ConnectionParameters{Segments: map[string]SegmentParameters{
			"limit": PowerLimitParameters{
				MaxSourceTarget: Series{5, 2, 0},
				MaxTargetSource: Scalar(0),
			},
			"tariff": PricingParameters{PriceSourceTarget: Scalar(0.1)},
		}},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	second, err := net.Optimize()
	if err != nil {
		t.Fatalf("re-Optimize: %v", err)
	}
	if !almostEqual(first, second) {
		t.Errorf("objective drifted: %v then %v", first, second)
	}
	out, err := net.Outputs("battery")
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	seriesEqual(t, "energy_stored", out[OutputNameEnergyStored].Values, []float64{2, 7, 9, 9})
}

func TestBatteryRebindRejectsUnconfiguredLimit(t *testing.T) {
	net := chargeFixture(t)
	err := net.Update(map[string]Parameters{
		"battery": BatteryParameters{MaxChargePower: Scalar(3)},
	})
	var ce *ConstructionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConstructionError, got %v", err)
	}
	if ce.Field != "max_charge_power" {
		t.Errorf("field %q, want max_charge_power", ce.Field)
	}
}
