package model

import (
	"fmt"
	"math"

	"github.com/hass-energy/haeo/lp"
)

type pricingSegment struct {
	name     string
	periods  []float64
	fwdVars  []lp.Var // nil when the direction is unbilled
	revVars  []lp.Var
	fwdPrice []float64
	revPrice []float64
}

func newPricingSegment(ctx *segmentContext, name string, cfg PricingConfig, fwd, rev []lp.Var) (*pricingSegment, error) {
	if cfg.PriceSourceTarget == nil && cfg.PriceTargetSource == nil {
		return nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "pricing requires at least one direction",
		}
	}
	n := len(ctx.periods)
	seg := &pricingSegment{name: name, periods: ctx.periods}

	if cfg.PriceSourceTarget != nil {
		price, err := cfg.PriceSourceTarget.resolve(ctx.connection, name+".price_source_target", n)
		if err != nil {
			return nil, err
		}
		seg.fwdVars = fwd
		seg.fwdPrice = price
		for t, dt := range ctx.periods {
			ctx.problem.AddObjective(fwd[t], price[t]*dt)
		}
	}
	if cfg.PriceTargetSource != nil {
		price, err := cfg.PriceTargetSource.resolve(ctx.connection, name+".price_target_source", n)
		if err != nil {
			return nil, err
		}
		seg.revVars = rev
		seg.revPrice = price
		for t, dt := range ctx.periods {
			ctx.problem.AddObjective(rev[t], price[t]*dt)
		}
	}
	return seg, nil
}

func (s *pricingSegment) segmentName() string { return s.name }

func (s *pricingSegment) outputs(sol *lp.Solution, prefix string, out map[string]OutputData) {
	if s.fwdVars != nil {
		cost := make([]float64, len(s.periods))
		for t, dt := range s.periods {
			cost[t] = sol.Primal[s.fwdVars[t]] * s.fwdPrice[t] * dt
		}
		out[prefix+"price_source_target"] = OutputData{
			Kind: OutputPrice, Unit: "EUR/kWh", Values: append([]float64(nil), s.fwdPrice...), Direction: DirectionPositive, Advanced: true,
		}
		out[prefix+"cost_source_target"] = OutputData{
			Kind: OutputCost, Unit: "EUR", Values: cost, Direction: DirectionPositive, Advanced: true,
		}
	}
	if s.revVars != nil {
		cost := make([]float64, len(s.periods))
		for t, dt := range s.periods {
			cost[t] = sol.Primal[s.revVars[t]] * s.revPrice[t] * dt
		}
		out[prefix+"price_target_source"] = OutputData{
			Kind: OutputPrice, Unit: "EUR/kWh", Values: append([]float64(nil), s.revPrice...), Direction: DirectionNegative, Advanced: true,
		}
		out[prefix+"cost_target_source"] = OutputData{
			Kind: OutputCost, Unit: "EUR", Values: cost, Direction: DirectionNegative, Advanced: true,
		}
	}
}

func (s *pricingSegment) rebind(p *lp.Problem, params SegmentParameters) error {
	pr, ok := params.(PricingParameters)
	if !ok {
		return &SegmentConfigurationError{
			Segment: s.name, Reason: "parameter overrides do not match segment kind pricing",
		}
	}
	n := len(s.periods)

	if pr.PriceSourceTarget != nil {
		if s.fwdVars == nil {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "price_source_target was not configured at construction",
			}
		}
		price, err := pr.PriceSourceTarget.resolve(s.name, "price_source_target", n)
		if err != nil {
			return err
		}
		for t, dt := range s.periods {
			p.AddObjective(s.fwdVars[t], (price[t]-s.fwdPrice[t])*dt)
		}
		s.fwdPrice = price
	}
	if pr.PriceTargetSource != nil {
		if s.revVars == nil {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "price_target_source was not configured at construction",
			}
		}
		price, err := pr.PriceTargetSource.resolve(s.name, "price_target_source", n)
		if err != nil {
			return err
		}
		for t, dt := range s.periods {
			p.AddObjective(s.revVars[t], (price[t]-s.revPrice[t])*dt)
		}
		s.revPrice = price
	}
	return nil
}

// DemandPricingConfig bills an amortized peak-demand charge: an auxiliary
// peak variable is constrained above every windowed flow value and billed
// at Price scaled by BlockHours / (BillingDays * 24), prorating a monthly
// demand charge onto the optimization horizon.
type DemandPricingConfig struct {
	Price        float64 // EUR/kW per billing block
	BlockHours   float64 // hours covered by one billing block
	BillingDays  float64 // days in the billing cycle
	TargetSource bool    // bill the reverse direction instead of the forward one
	Window       []int   // period indices participating; nil means all
}

// DemandPricingParameters rebinds the demand price.
type DemandPricingParameters struct {
	Price *float64
}

type demandPricingSegment struct {
	name   string
	peak   lp.Var
	cons   []lp.Con
	factor float64
	price  float64
}

func newDemandPricingSegment(ctx *segmentContext, name string, cfg DemandPricingConfig, fwd, rev []lp.Var) (*demandPricingSegment, error) {
	if cfg.BlockHours <= 0 || cfg.BillingDays <= 0 {
		return nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "demand pricing requires positive block_hours and billing_days",
		}
	}
	if cfg.Price < 0 {
		return nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "demand price must be non-negative",
		}
	}

	flows := fwd
	if cfg.TargetSource {
		flows = rev
	}
	window := cfg.Window
	if window == nil {
		window = make([]int, len(ctx.periods))
		for t := range window {
			window[t] = t
		}
	}

	seg := &demandPricingSegment{
		name:   name,
		peak:   ctx.problem.AddVariable(),
		factor: cfg.BlockHours / (cfg.BillingDays * 24),
		price:  cfg.Price,
	}
	for _, t := range window {
		if t < 0 || t >= len(ctx.periods) {
			return nil, &SegmentConfigurationError{
				Connection: ctx.connection, Segment: name,
				Reason: fmt.Sprintf("window index %d outside horizon of %d periods", t, len(ctx.periods)),
			}
		}
		seg.cons = append(seg.cons, ctx.problem.AddConstraint(map[lp.Var]float64{
			seg.peak: 1,
			flows[t]: -1,
		}, lp.GreaterEq, 0))
	}
	ctx.problem.AddObjective(seg.peak, cfg.Price*seg.factor)

	return seg, nil
}

func (s *demandPricingSegment) segmentName() string { return s.name }

func (s *demandPricingSegment) outputs(sol *lp.Solution, prefix string, out map[string]OutputData) {
	peak := sol.Primal[s.peak]
	out[prefix+"peak_power"] = OutputData{
		Kind: OutputPower, Unit: "kW", Values: []float64{peak}, Direction: DirectionNone, Advanced: true,
	}
	out[prefix+"cost_demand"] = OutputData{
		Kind: OutputCost, Unit: "EUR", Values: []float64{peak * s.price * s.factor}, Direction: DirectionNone, Advanced: true,
	}
}

func (s *demandPricingSegment) rebind(p *lp.Problem, params SegmentParameters) error {
	dp, ok := params.(DemandPricingParameters)
	if !ok {
		return &SegmentConfigurationError{
			Segment: s.name, Reason: "parameter overrides do not match segment kind demand_pricing",
		}
	}
	if dp.Price != nil {
		if *dp.Price < 0 {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "demand price must be non-negative",
			}
		}
		p.AddObjective(s.peak, (*dp.Price-s.price)*s.factor)
		s.price = *dp.Price
	}
	return nil
}

// SOCPricingConfig adds inventory-threshold penalties tied to the stored
// energy of the connection's battery endpoint. Dwelling past a threshold is
// billed per kWh of violation depth per hour; a movement price bills only
// the period a threshold is crossed or the violation deepens, not every
// period of a dwell.
type SOCPricingConfig struct {
	BelowThreshold Series // fraction of capacity, boundary series
	AboveThreshold Series // fraction of capacity, boundary series

	BelowPrice float64 // EUR/kWh per hour below the threshold
	AbovePrice float64 // EUR/kWh per hour above the threshold

	BelowMovementPrice float64 // EUR/kWh of newly entered depth
	AboveMovementPrice float64 // EUR/kWh of newly entered depth
}

// SOCPricingParameters rebinds the thresholds and prices of a soc_pricing
// segment. Movement structure is created only when a movement price is
// configured at construction, so a movement price can be rebound but not
// introduced.
type SOCPricingParameters struct {
	BelowThreshold Series
	AboveThreshold Series
	BelowPrice     *float64
	AbovePrice     *float64
}

// socBand is one installed threshold band of a soc_pricing segment.
type socBand struct {
	above     bool
	threshold []float64 // absolute kWh, boundary
	depth     []lp.Var  // boundary; >= violation depth
	depthCons []lp.Con
	price     float64
	enter     []lp.Var // interval; nil without a movement price
	recover   []lp.Var
	moveCons  []lp.Con
}

type socPricingSegment struct {
	name    string
	periods []float64
	battery *Battery
	below   *socBand
	above   *socBand
}

func newSOCPricingSegment(ctx *segmentContext, name string, cfg SOCPricingConfig) (*socPricingSegment, error) {
	battery, ok := ctx.source.(*Battery)
	if !ok {
		battery, ok = ctx.target.(*Battery)
	}
	if !ok {
		return nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "soc pricing requires the connection's source or target to be a battery",
		}
	}

	if cfg.BelowThreshold == nil && (cfg.BelowPrice != 0 || cfg.BelowMovementPrice != 0) {
		return nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "below price configured without below_threshold",
		}
	}
	if cfg.AboveThreshold == nil && (cfg.AbovePrice != 0 || cfg.AboveMovementPrice != 0) {
		return nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "above price configured without above_threshold",
		}
	}
	if cfg.BelowThreshold == nil && cfg.AboveThreshold == nil {
		return nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "soc pricing requires at least one threshold",
		}
	}

	seg := &socPricingSegment{
		name:    name,
		periods: ctx.periods,
		battery: battery,
	}

	var err error
	if cfg.BelowThreshold != nil {
		seg.below, err = seg.newBand(ctx, name+".below_threshold", cfg.BelowThreshold, cfg.BelowPrice, cfg.BelowMovementPrice, false)
		if err != nil {
			return nil, err
		}
	}
	if cfg.AboveThreshold != nil {
		seg.above, err = seg.newBand(ctx, name+".above_threshold", cfg.AboveThreshold, cfg.AbovePrice, cfg.AboveMovementPrice, true)
		if err != nil {
			return nil, err
		}
	}
	return seg, nil
}

// newBand installs the depth slacks, dwell billing and, when a movement
// price is set, the enter/recover pair tracking depth changes:
//
//	enter[t] - recover[t] == depth[t+1] - depth[t]
//
// Only enter is billed, so a dwell is charged once on the way in and
// recovery is free.
func (s *socPricingSegment) newBand(ctx *segmentContext, field string, threshold Series, price, movementPrice float64, above bool) (*socBand, error) {
	n := len(ctx.periods)
	frac, err := threshold.resolve(ctx.connection, field, n+1)
	if err != nil {
		return nil, err
	}
	if err := checkFraction(ctx.connection, field, frac); err != nil {
		return nil, err
	}

	band := &socBand{
		above:     above,
		threshold: make([]float64, n+1),
		depth:     ctx.problem.AddVariables(n + 1),
		depthCons: make([]lp.Con, n+1),
		price:     price,
	}
	for t := range band.threshold {
		band.threshold[t] = frac[t] * s.battery.capacity
	}

	for t := 0; t <= n; t++ {
		if above {
			// depth >= stored - threshold
			band.depthCons[t] = ctx.problem.AddConstraint(map[lp.Var]float64{
				band.depth[t]:       1,
				s.battery.stored[t]: -1,
			}, lp.GreaterEq, -band.threshold[t])
		} else {
			// depth >= threshold - stored
			band.depthCons[t] = ctx.problem.AddConstraint(map[lp.Var]float64{
				band.depth[t]:       1,
				s.battery.stored[t]: 1,
			}, lp.GreaterEq, band.threshold[t])
		}
	}
	// Dwell billing on period-end depth.
	for t, dt := range ctx.periods {
		ctx.problem.AddObjective(band.depth[t+1], price*dt)
	}

	if movementPrice != 0 {
		// Starting the horizon inside the band counts as entering it, which
		// also keeps the unbilled initial depth from absorbing the first
		// period's entry charge.
		ctx.problem.AddObjective(band.depth[0], movementPrice)

		band.enter = ctx.problem.AddVariables(n)
		band.recover = ctx.problem.AddVariables(n)
		band.moveCons = make([]lp.Con, n)
		for t := 0; t < n; t++ {
			band.moveCons[t] = ctx.problem.AddConstraint(map[lp.Var]float64{
				band.enter[t]:   1,
				band.recover[t]: -1,
				band.depth[t+1]: -1,
				band.depth[t]:   1,
			}, lp.Equal, 0)
			ctx.problem.AddObjective(band.enter[t], movementPrice)
		}
	}

	return band, nil
}

func (s *socPricingSegment) segmentName() string { return s.name }

func (s *socPricingSegment) outputs(sol *lp.Solution, prefix string, out map[string]OutputData) {
	if s.below != nil {
		s.bandOutputs(sol, prefix+"below_", s.below, out)
	}
	if s.above != nil {
		s.bandOutputs(sol, prefix+"above_", s.above, out)
	}
}

func (s *socPricingSegment) bandOutputs(sol *lp.Solution, prefix string, band *socBand, out map[string]OutputData) {
	depth := make([]float64, len(band.depth))
	for t := range depth {
		depth[t] = math.Max(0, sol.Primal[band.depth[t]])
	}
	out[prefix+"depth"] = OutputData{
		Kind: OutputEnergy, Unit: "kWh", Values: depth, Direction: DirectionNone, Advanced: true,
	}
	if band.enter != nil {
		enter := make([]float64, len(band.enter))
		for t := range enter {
			enter[t] = math.Max(0, sol.Primal[band.enter[t]])
		}
		out[prefix+"enter"] = OutputData{
			Kind: OutputEnergy, Unit: "kWh", Values: enter, Direction: DirectionNone, Advanced: true,
		}
	}
}

func (s *socPricingSegment) rebind(p *lp.Problem, params SegmentParameters) error {
	sp, ok := params.(SOCPricingParameters)
	if !ok {
		return &SegmentConfigurationError{
			Segment: s.name, Reason: "parameter overrides do not match segment kind soc_pricing",
		}
	}

	if sp.BelowThreshold != nil || sp.BelowPrice != nil {
		if s.below == nil {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "below_threshold was not configured at construction",
			}
		}
		if err := s.rebindBand(p, s.below, "below_threshold", sp.BelowThreshold, sp.BelowPrice); err != nil {
			return err
		}
	}
	if sp.AboveThreshold != nil || sp.AbovePrice != nil {
		if s.above == nil {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "above_threshold was not configured at construction",
			}
		}
		if err := s.rebindBand(p, s.above, "above_threshold", sp.AboveThreshold, sp.AbovePrice); err != nil {
			return err
		}
	}
	return nil
}

func (s *socPricingSegment) rebindBand(p *lp.Problem, band *socBand, field string, threshold Series, price *float64) error {
	n := len(s.periods)
	if threshold != nil {
		frac, err := threshold.resolve(s.name, field, n+1)
		if err != nil {
			return err
		}
		if err := checkFraction(s.name, field, frac); err != nil {
			return err
		}
		for t := 0; t <= n; t++ {
			band.threshold[t] = frac[t] * s.battery.capacity
			rhs := band.threshold[t]
			if band.above {
				rhs = -rhs
			}
			p.SetRHS(band.depthCons[t], rhs)
		}
	}
	if price != nil {
		for t, dt := range s.periods {
			p.AddObjective(band.depth[t+1], (*price-band.price)*dt)
		}
		band.price = *price
	}
	return nil
}
