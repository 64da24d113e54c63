package model

import (
	"math"

	"github.com/hass-energy/haeo/lp"
)

// PartitionConfig is a secondary state-of-charge band with its own linear
// degradation price. Dwelling past the threshold costs Cost per kWh of
// violation depth per hour. ShrinkageCost is billed once per kWh whenever
// the partition boundary contracts over the horizon, so a time-varying
// threshold that eats into the usable band is paid for even if the band is
// never entered.
type PartitionConfig struct {
	Threshold     Series  // fraction of capacity, boundary series
	Cost          float64 // EUR/kWh per hour in violation
	ShrinkageCost float64 // EUR/kWh, billed once per contraction
}

// BatteryConfig configures a storage element.
//
// Stored energy is a boundary series (one value per period edge); charge
// and discharge powers are interval series. Charge and discharge are
// independent non-negative variables; no hard constraint forbids running
// both at once, the cost structure is expected to make that unattractive.
type BatteryConfig struct {
	Capacity          float64 // kWh, must be positive
	InitialCharge     float64 // kWh, fixed value of stored_energy[0]
	MinCharge         Series  // fraction of capacity, boundary; default 0
	MaxCharge         Series  // fraction of capacity, boundary; default 1
	MaxChargePower    Series  // kW, interval; nil leaves charging unbounded
	MaxDischargePower Series  // kW, interval; nil leaves discharging unbounded
	EfficiencyIn      float64 // (0, 1]; zero value defaults to 1
	EfficiencyOut     float64 // (0, 1]; zero value defaults to 1
	SalvageValue      float64 // EUR/kWh credited for final stored energy
	Undercharge       *PartitionConfig
	Overcharge        *PartitionConfig
}

// BatteryParameters are the rebindable numeric fields of a battery.
// Nil fields keep their current values. Capacity, salvage value and the
// partition bands are structural and cannot be rebound.
type BatteryParameters struct {
	InitialCharge     *float64
	MinCharge         Series
	MaxCharge         Series
	MaxChargePower    Series
	MaxDischargePower Series
	EfficiencyIn      *float64
	EfficiencyOut     *float64
}

type partition struct {
	threshold []float64 // absolute kWh per boundary
	cost      float64
	slack     []lp.Var // violation depth per period end
	cons      []lp.Con
}

// Battery is a stateful storage element with linear charge/discharge
// dynamics:
//
//	stored[t+1] = stored[t] + (charge[t]*effIn - discharge[t]/effOut) * period[t]
type Battery struct {
	name     string
	periods  []float64
	capacity float64
	effIn    float64
	effOut   float64

	stored    []lp.Var // boundary, len n+1
	charge    []lp.Var // interval, len n
	discharge []lp.Var // interval, len n

	balance        []lp.Con // per period
	dynamics       []lp.Con // per period
	initial        lp.Con
	minBound       []lp.Con // per boundary
	maxBound       []lp.Con // per boundary
	chargeLimit    []lp.Con // per period, nil if unbounded
	dischargeLimit []lp.Con // per period, nil if unbounded

	under *partition
	over  *partition
}

func newBattery(p *lp.Problem, name string, periods []float64, cfg BatteryConfig) (*Battery, error) {
	n := len(periods)

	if cfg.Capacity <= 0 {
		return nil, &ConstructionError{Element: name, Field: "capacity", Reason: "must be positive"}
	}
	if cfg.InitialCharge < 0 || cfg.InitialCharge > cfg.Capacity {
		return nil, &ConstructionError{Element: name, Field: "initial_charge", Reason: "must be within [0, capacity]"}
	}

	effIn, effOut := cfg.EfficiencyIn, cfg.EfficiencyOut
	if effIn == 0 {
		effIn = 1
	}
	if effOut == 0 {
		effOut = 1
	}
	if err := checkEfficiency(name, "efficiency_in", []float64{effIn}); err != nil {
		return nil, err
	}
	if err := checkEfficiency(name, "efficiency_out", []float64{effOut}); err != nil {
		return nil, err
	}

	minCharge := cfg.MinCharge
	if minCharge == nil {
		minCharge = Scalar(0)
	}
	maxCharge := cfg.MaxCharge
	if maxCharge == nil {
		maxCharge = Scalar(1)
	}
	minFrac, err := minCharge.resolve(name, "min_charge", n+1)
	if err != nil {
		return nil, err
	}
	maxFrac, err := maxCharge.resolve(name, "max_charge", n+1)
	if err != nil {
		return nil, err
	}
	if err := checkFraction(name, "min_charge", minFrac); err != nil {
		return nil, err
	}
	if err := checkFraction(name, "max_charge", maxFrac); err != nil {
		return nil, err
	}
	for t := range minFrac {
		if minFrac[t] > maxFrac[t] {
			return nil, &ConstructionError{
				Element: name, Field: "min_charge",
				Reason: "must not exceed max_charge",
			}
		}
	}

	b := &Battery{
		name:      name,
		periods:   periods,
		capacity:  cfg.Capacity,
		effIn:     effIn,
		effOut:    effOut,
		stored:    p.AddVariables(n + 1),
		charge:    p.AddVariables(n),
		discharge: p.AddVariables(n),
		balance:   make([]lp.Con, n),
		dynamics:  make([]lp.Con, n),
		minBound:  make([]lp.Con, n+1),
		maxBound:  make([]lp.Con, n+1),
	}

	// Balance: inbound connection flow charges, discharge feeds outbound.
	// Connections splice their coefficients in through attachFlows.
	for t := range periods {
		b.balance[t] = p.AddConstraint(map[lp.Var]float64{
			b.charge[t]:    -1,
			b.discharge[t]: 1,
		}, lp.Equal, 0)
	}

	// Storage dynamics, one row per period.
	for t, dt := range periods {
		b.dynamics[t] = p.AddConstraint(map[lp.Var]float64{
			b.stored[t+1]:  1,
			b.stored[t]:    -1,
			b.charge[t]:    -dt * effIn,
			b.discharge[t]: dt / effOut,
		}, lp.Equal, 0)
	}

	b.initial = p.AddConstraint(map[lp.Var]float64{b.stored[0]: 1}, lp.Equal, cfg.InitialCharge)

	for t := 0; t <= n; t++ {
		b.minBound[t] = p.AddConstraint(map[lp.Var]float64{b.stored[t]: 1}, lp.GreaterEq, minFrac[t]*cfg.Capacity)
		b.maxBound[t] = p.AddConstraint(map[lp.Var]float64{b.stored[t]: 1}, lp.LessEq, maxFrac[t]*cfg.Capacity)
	}

	if cfg.MaxChargePower != nil {
		limits, err := cfg.MaxChargePower.resolve(name, "max_charge_power", n)
		if err != nil {
			return nil, err
		}
		if err := checkNonNegative(name, "max_charge_power", limits); err != nil {
			return nil, err
		}
		b.chargeLimit = make([]lp.Con, n)
		for t := range periods {
			b.chargeLimit[t] = p.AddConstraint(map[lp.Var]float64{b.charge[t]: 1}, lp.LessEq, limits[t])
		}
	}
	if cfg.MaxDischargePower != nil {
		limits, err := cfg.MaxDischargePower.resolve(name, "max_discharge_power", n)
		if err != nil {
			return nil, err
		}
		if err := checkNonNegative(name, "max_discharge_power", limits); err != nil {
			return nil, err
		}
		b.dischargeLimit = make([]lp.Con, n)
		for t := range periods {
			b.dischargeLimit[t] = p.AddConstraint(map[lp.Var]float64{b.discharge[t]: 1}, lp.LessEq, limits[t])
		}
	}

	if cfg.Undercharge != nil {
		b.under, err = b.newPartition(p, "undercharge", cfg.Undercharge, false)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Overcharge != nil {
		b.over, err = b.newPartition(p, "overcharge", cfg.Overcharge, true)
		if err != nil {
			return nil, err
		}
	}

	if cfg.SalvageValue != 0 {
		p.AddObjective(b.stored[n], -cfg.SalvageValue)
	}

	return b, nil
}

// newPartition installs one degradation band. For the undercharge band the
// violation depth is threshold - stored; for the overcharge band it is
// stored - threshold. The depth slack is billed per hour of dwell, and a
// one-off shrinkage charge covers horizon points where the usable band
// contracts.
func (b *Battery) newPartition(p *lp.Problem, field string, cfg *PartitionConfig, above bool) (*partition, error) {
	n := len(b.periods)
	if cfg.Threshold == nil {
		return nil, &ConstructionError{Element: b.name, Field: field, Reason: "partition requires a threshold"}
	}
	frac, err := cfg.Threshold.resolve(b.name, field+"_threshold", n+1)
	if err != nil {
		return nil, err
	}
	if err := checkFraction(b.name, field+"_threshold", frac); err != nil {
		return nil, err
	}

	part := &partition{
		threshold: make([]float64, n+1),
		cost:      cfg.Cost,
		slack:     p.AddVariables(n),
		cons:      make([]lp.Con, n),
	}
	for t := range part.threshold {
		part.threshold[t] = frac[t] * b.capacity
	}

	for t, dt := range b.periods {
		if above {
			// slack >= stored[t+1] - threshold[t+1]
			part.cons[t] = p.AddConstraint(map[lp.Var]float64{
				part.slack[t]:  1,
				b.stored[t+1]: -1,
			}, lp.GreaterEq, -part.threshold[t+1])
		} else {
			// slack >= threshold[t+1] - stored[t+1]
			part.cons[t] = p.AddConstraint(map[lp.Var]float64{
				part.slack[t]: 1,
				b.stored[t+1]: 1,
			}, lp.GreaterEq, part.threshold[t+1])
		}
		p.AddObjective(part.slack[t], cfg.Cost*dt)
	}

	// Shrinkage bookkeeping: each contraction of the usable band over the
	// horizon is billed once, as a constant.
	if cfg.ShrinkageCost != 0 {
		shrunk := 0.0
		for t := 0; t < n; t++ {
			delta := part.threshold[t+1] - part.threshold[t]
			if above {
				delta = -delta
			}
			if delta > 0 {
				shrunk += delta
			}
		}
		p.AddOffset(cfg.ShrinkageCost * shrunk)
	}

	return part, nil
}

func (b *Battery) Name() string { return b.name }

func (b *Battery) attachFlows(p *lp.Problem, inbound, outbound []lp.Var) {
	for t := range b.periods {
		if inbound != nil {
			p.SetCoeff(b.balance[t], inbound[t], 1)
		}
		if outbound != nil {
			p.SetCoeff(b.balance[t], outbound[t], -1)
		}
	}
}

func (b *Battery) outputs(sol *lp.Solution) map[string]OutputData {
	n := len(b.periods)

	stored := make([]float64, n+1)
	soc := make([]float64, n+1)
	minDual := make([]float64, n+1)
	maxDual := make([]float64, n+1)
	for t := 0; t <= n; t++ {
		stored[t] = sol.Primal[b.stored[t]]
		soc[t] = stored[t] / b.capacity
		minDual[t] = sol.Dual[b.minBound[t]]
		maxDual[t] = sol.Dual[b.maxBound[t]]
	}

	charge := make([]float64, n)
	discharge := make([]float64, n)
	price := make([]float64, n)
	storagePrice := make([]float64, n)
	for t, dt := range b.periods {
		charge[t] = sol.Primal[b.charge[t]]
		discharge[t] = sol.Primal[b.discharge[t]]
		price[t] = sol.Dual[b.balance[t]] / dt
		storagePrice[t] = sol.Dual[b.dynamics[t]]
	}

	out := map[string]OutputData{
		OutputNameEnergyStored: {
			Kind: OutputEnergy, Unit: "kWh", Values: stored, Direction: DirectionNone,
		},
		OutputNameStateOfCharge: {
			Kind: OutputSOC, Unit: "%", Values: soc, Direction: DirectionNone, Advanced: true,
		},
		OutputNamePowerCharge: {
			Kind: OutputPower, Unit: "kW", Values: charge, Direction: DirectionPositive,
		},
		OutputNamePowerDischarge: {
			Kind: OutputPower, Unit: "kW", Values: discharge, Direction: DirectionNegative,
		},
		OutputNamePrice: {
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: price, Direction: DirectionNone, Advanced: true,
		},
		"price_storage": {
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: storagePrice, Direction: DirectionNone, Advanced: true,
		},
		"shadow_price_min_charge": {
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: minDual, Direction: DirectionNone, Advanced: true,
		},
		"shadow_price_max_charge": {
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: maxDual, Direction: DirectionNone, Advanced: true,
		},
	}

	if b.chargeLimit != nil {
		vals := make([]float64, n)
		for t, dt := range b.periods {
			vals[t] = sol.Dual[b.chargeLimit[t]] / dt
		}
		out["shadow_price_max_charge_power"] = OutputData{
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: vals, Direction: DirectionNone, Advanced: true,
		}
	}
	if b.dischargeLimit != nil {
		vals := make([]float64, n)
		for t, dt := range b.periods {
			vals[t] = sol.Dual[b.dischargeLimit[t]] / dt
		}
		out["shadow_price_max_discharge_power"] = OutputData{
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: vals, Direction: DirectionNone, Advanced: true,
		}
	}

	if b.under != nil {
		out["undercharge_depth"] = b.partitionOutput(sol, b.under)
	}
	if b.over != nil {
		out["overcharge_depth"] = b.partitionOutput(sol, b.over)
	}

	return out
}

func (b *Battery) partitionOutput(sol *lp.Solution, part *partition) OutputData {
	vals := make([]float64, len(b.periods))
	for t := range vals {
		// Clamp solver noise: the depth slack is semantically >= 0.
		vals[t] = math.Max(0, sol.Primal[part.slack[t]])
	}
	return OutputData{
		Kind: OutputEnergy, Unit: "kWh", Values: vals, Direction: DirectionNone, Advanced: true,
	}
}

func (b *Battery) rebind(p *lp.Problem, params Parameters) error {
	bp, ok := params.(BatteryParameters)
	if !ok {
		return &ConstructionError{
			Element: b.name,
			Reason:  "parameter overrides do not match element kind battery",
		}
	}
	n := len(b.periods)

	if bp.InitialCharge != nil {
		v := *bp.InitialCharge
		if v < 0 || v > b.capacity {
			return &ConstructionError{Element: b.name, Field: "initial_charge", Reason: "must be within [0, capacity]"}
		}
		p.SetRHS(b.initial, v)
	}

	if bp.MinCharge != nil {
		frac, err := bp.MinCharge.resolve(b.name, "min_charge", n+1)
		if err != nil {
			return err
		}
		if err := checkFraction(b.name, "min_charge", frac); err != nil {
			return err
		}
		for t := 0; t <= n; t++ {
			p.SetRHS(b.minBound[t], frac[t]*b.capacity)
		}
	}
	if bp.MaxCharge != nil {
		frac, err := bp.MaxCharge.resolve(b.name, "max_charge", n+1)
		if err != nil {
			return err
		}
		if err := checkFraction(b.name, "max_charge", frac); err != nil {
			return err
		}
		for t := 0; t <= n; t++ {
			p.SetRHS(b.maxBound[t], frac[t]*b.capacity)
		}
	}

	if bp.MaxChargePower != nil {
		if b.chargeLimit == nil {
			return &ConstructionError{Element: b.name, Field: "max_charge_power", Reason: "not configured at construction, cannot be rebound"}
		}
		limits, err := bp.MaxChargePower.resolve(b.name, "max_charge_power", n)
		if err != nil {
			return err
		}
		if err := checkNonNegative(b.name, "max_charge_power", limits); err != nil {
			return err
		}
		for t := range limits {
			p.SetRHS(b.chargeLimit[t], limits[t])
		}
	}
	if bp.MaxDischargePower != nil {
		if b.dischargeLimit == nil {
			return &ConstructionError{Element: b.name, Field: "max_discharge_power", Reason: "not configured at construction, cannot be rebound"}
		}
		limits, err := bp.MaxDischargePower.resolve(b.name, "max_discharge_power", n)
		if err != nil {
			return err
		}
		if err := checkNonNegative(b.name, "max_discharge_power", limits); err != nil {
			return err
		}
		for t := range limits {
			p.SetRHS(b.dischargeLimit[t], limits[t])
		}
	}

	if bp.EfficiencyIn != nil {
		if err := checkEfficiency(b.name, "efficiency_in", []float64{*bp.EfficiencyIn}); err != nil {
			return err
		}
		b.effIn = *bp.EfficiencyIn
		for t, dt := range b.periods {
			p.SetCoeff(b.dynamics[t], b.charge[t], -dt*b.effIn)
		}
	}
	if bp.EfficiencyOut != nil {
		if err := checkEfficiency(b.name, "efficiency_out", []float64{*bp.EfficiencyOut}); err != nil {
			return err
		}
		b.effOut = *bp.EfficiencyOut
		for t, dt := range b.periods {
			p.SetCoeff(b.dynamics[t], b.discharge[t], dt/b.effOut)
		}
	}

	return nil
}
