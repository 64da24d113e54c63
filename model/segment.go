package model

import (
	"github.com/hass-energy/haeo/lp"
)

// SegmentConfig is the closed set of segment variants. A connection's
// pipeline is an ordered list of these; each variant transforms the
// directional flow pair and may add constraints, cost terms and outputs.
type SegmentConfig interface {
	isSegmentConfig()
}

func (PowerLimitConfig) isSegmentConfig()    {}
func (EfficiencyConfig) isSegmentConfig()    {}
func (PricingConfig) isSegmentConfig()       {}
func (DemandPricingConfig) isSegmentConfig() {}
func (SOCPricingConfig) isSegmentConfig()    {}
func (PassthroughConfig) isSegmentConfig()   {}

// SegmentParameters is the closed set of warm-start overrides for segments,
// one variant per rebindable segment kind.
type SegmentParameters interface {
	isSegmentParameters()
}

func (PowerLimitParameters) isSegmentParameters()    {}
func (EfficiencyParameters) isSegmentParameters()    {}
func (PricingParameters) isSegmentParameters()       {}
func (DemandPricingParameters) isSegmentParameters() {}
func (SOCPricingParameters) isSegmentParameters()    {}

// PowerLimitConfig bounds one or both flow directions. With Fixed the bound
// becomes an equality, forcing the schedule. When both directions carry
// limits, an additional time-slice constraint keeps the two directions from
// double-counting shared capacity within one period.
type PowerLimitConfig struct {
	MaxSourceTarget Series // kW; nil leaves the direction unbounded
	MaxTargetSource Series // kW; nil leaves the direction unbounded
	Fixed           bool
}

// PowerLimitParameters rebinds the limit series of a power_limit segment.
type PowerLimitParameters struct {
	MaxSourceTarget Series
	MaxTargetSource Series
}

// EfficiencyConfig scales flow passing through the segment:
// flow_out = flow_in * efficiency. The loss is irreversible, so no
// constraint is added beyond the linking equality.
type EfficiencyConfig struct {
	SourceTarget Series // (0, 1]; nil leaves the direction untransformed
	TargetSource Series // (0, 1]; nil leaves the direction untransformed
}

// EfficiencyParameters rebinds the efficiency series of an efficiency
// segment. Only directions configured at construction can be rebound.
type EfficiencyParameters struct {
	SourceTarget Series
	TargetSource Series
}

// PricingConfig bills flow entering the segment at a per-kWh price without
// altering it.
type PricingConfig struct {
	PriceSourceTarget Series // EUR/kWh; nil leaves the direction unbilled
	PriceTargetSource Series // EUR/kWh; nil leaves the direction unbilled
}

// PricingParameters rebinds the price series of a pricing segment.
type PricingParameters struct {
	PriceSourceTarget Series
	PriceTargetSource Series
}

// segmentContext carries the shared build state handed to each segment.
type segmentContext struct {
	problem    *lp.Problem
	periods    []float64
	connection string
	source     Element
	target     Element
}

// boundSegment is one built pipeline stage.
type boundSegment interface {
	segmentName() string
	outputs(sol *lp.Solution, prefix string, out map[string]OutputData)
	rebind(p *lp.Problem, params SegmentParameters) error
}

// bindSegment builds one pipeline stage and returns the flow variables
// leaving it. Only the efficiency variant substitutes new variables; every
// other variant passes the incoming pair through.
func bindSegment(ctx *segmentContext, name string, cfg SegmentConfig, fwd, rev []lp.Var) (boundSegment, []lp.Var, []lp.Var, error) {
	switch cfg := cfg.(type) {
	case PowerLimitConfig:
		seg, err := newPowerLimitSegment(ctx, name, cfg, fwd, rev)
		return seg, fwd, rev, err
	case EfficiencyConfig:
		return newEfficiencySegment(ctx, name, cfg, fwd, rev)
	case PricingConfig:
		seg, err := newPricingSegment(ctx, name, cfg, fwd, rev)
		return seg, fwd, rev, err
	case DemandPricingConfig:
		seg, err := newDemandPricingSegment(ctx, name, cfg, fwd, rev)
		return seg, fwd, rev, err
	case SOCPricingConfig:
		seg, err := newSOCPricingSegment(ctx, name, cfg)
		return seg, fwd, rev, err
	case PassthroughConfig:
		return passthroughSegment{name: name}, fwd, rev, nil
	}
	return nil, nil, nil, &SegmentConfigurationError{
		Connection: ctx.connection, Segment: name, Reason: "unknown segment kind",
	}
}

// PassthroughConfig is the identity stage.
type PassthroughConfig struct{}

type passthroughSegment struct {
	name string
}

func (s passthroughSegment) segmentName() string { return s.name }

func (s passthroughSegment) outputs(*lp.Solution, string, map[string]OutputData) {}

func (s passthroughSegment) rebind(*lp.Problem, SegmentParameters) error {
	return &SegmentConfigurationError{
		Segment: s.name, Reason: "passthrough segment has no rebindable parameters",
	}
}

type powerLimitSegment struct {
	name    string
	periods []float64
	fwd     []lp.Var
	rev     []lp.Var
	fwdCons []lp.Con // nil when the direction is unlimited
	revCons []lp.Con
	joint   []lp.Con // per period; valid only at jointAt indices
	jointAt []bool
	maxFwd  []float64
	maxRev  []float64
	fixed   bool
}

func newPowerLimitSegment(ctx *segmentContext, name string, cfg PowerLimitConfig, fwd, rev []lp.Var) (*powerLimitSegment, error) {
	if cfg.MaxSourceTarget == nil && cfg.MaxTargetSource == nil {
		return nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "power limit requires at least one direction",
		}
	}
	n := len(ctx.periods)
	seg := &powerLimitSegment{
		name:    name,
		periods: ctx.periods,
		fwd:     fwd,
		rev:     rev,
		fixed:   cfg.Fixed,
	}

	rel := lp.LessEq
	if cfg.Fixed {
		rel = lp.Equal
	}

	var err error
	if cfg.MaxSourceTarget != nil {
		seg.maxFwd, err = cfg.MaxSourceTarget.resolve(ctx.connection, name+".max_source_target", n)
		if err != nil {
			return nil, err
		}
		if err := checkNonNegative(ctx.connection, name+".max_source_target", seg.maxFwd); err != nil {
			return nil, err
		}
		seg.fwdCons = make([]lp.Con, n)
		for t := range seg.fwdCons {
			seg.fwdCons[t] = ctx.problem.AddConstraint(map[lp.Var]float64{fwd[t]: 1}, rel, seg.maxFwd[t])
		}
	}
	if cfg.MaxTargetSource != nil {
		seg.maxRev, err = cfg.MaxTargetSource.resolve(ctx.connection, name+".max_target_source", n)
		if err != nil {
			return nil, err
		}
		if err := checkNonNegative(ctx.connection, name+".max_target_source", seg.maxRev); err != nil {
			return nil, err
		}
		seg.revCons = make([]lp.Con, n)
		for t := range seg.revCons {
			seg.revCons[t] = ctx.problem.AddConstraint(map[lp.Var]float64{rev[t]: 1}, rel, seg.maxRev[t])
		}
	}

	// Shared-capacity time slice: with simultaneous limits in both
	// directions, the fractions of each limit used within a period may not
	// exceed one. Skipped where either limit is zero, the plain bound
	// already pins that direction.
	if seg.fwdCons != nil && seg.revCons != nil && !cfg.Fixed {
		seg.joint = make([]lp.Con, n)
		seg.jointAt = make([]bool, n)
		for t := 0; t < n; t++ {
			if seg.maxFwd[t] <= 0 || seg.maxRev[t] <= 0 {
				continue
			}
			seg.joint[t] = ctx.problem.AddConstraint(map[lp.Var]float64{
				fwd[t]: 1 / seg.maxFwd[t],
				rev[t]: 1 / seg.maxRev[t],
			}, lp.LessEq, 1)
			seg.jointAt[t] = true
		}
	}

	return seg, nil
}

func (s *powerLimitSegment) segmentName() string { return s.name }

func (s *powerLimitSegment) outputs(sol *lp.Solution, prefix string, out map[string]OutputData) {
	if s.fwdCons != nil {
		duals := make([]float64, len(s.periods))
		for t, dt := range s.periods {
			duals[t] = sol.Dual[s.fwdCons[t]] / dt
		}
		out[prefix+"shadow_price_source_target"] = OutputData{
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: duals, Direction: DirectionPositive, Advanced: true,
		}
		out[prefix+"power_limit_source_target"] = OutputData{
			Kind: OutputPowerLimit, Unit: "kW", Values: append([]float64(nil), s.maxFwd...), Direction: DirectionPositive, Advanced: true,
		}
	}
	if s.revCons != nil {
		duals := make([]float64, len(s.periods))
		for t, dt := range s.periods {
			duals[t] = sol.Dual[s.revCons[t]] / dt
		}
		out[prefix+"shadow_price_target_source"] = OutputData{
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: duals, Direction: DirectionNegative, Advanced: true,
		}
		out[prefix+"power_limit_target_source"] = OutputData{
			Kind: OutputPowerLimit, Unit: "kW", Values: append([]float64(nil), s.maxRev...), Direction: DirectionNegative, Advanced: true,
		}
	}
	if s.joint != nil {
		duals := make([]float64, len(s.periods))
		for t, dt := range s.periods {
			if s.jointAt[t] {
				duals[t] = sol.Dual[s.joint[t]] / dt
			}
		}
		out[prefix+"shadow_price_time_slice"] = OutputData{
			Kind: OutputShadowPrice, Unit: "EUR/kWh", Values: duals, Direction: DirectionNone, Advanced: true,
		}
	}
}

func (s *powerLimitSegment) rebind(p *lp.Problem, params SegmentParameters) error {
	lim, ok := params.(PowerLimitParameters)
	if !ok {
		return &SegmentConfigurationError{
			Segment: s.name, Reason: "parameter overrides do not match segment kind power_limit",
		}
	}
	n := len(s.periods)

	if lim.MaxSourceTarget != nil {
		if s.fwdCons == nil {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "max_source_target was not configured at construction",
			}
		}
		vals, err := lim.MaxSourceTarget.resolve(s.name, "max_source_target", n)
		if err != nil {
			return err
		}
		if err := checkNonNegative(s.name, "max_source_target", vals); err != nil {
			return err
		}
		if err := s.checkJointRebind(vals); err != nil {
			return err
		}
		s.maxFwd = vals
		for t := range vals {
			p.SetRHS(s.fwdCons[t], vals[t])
			if s.joint != nil && s.jointAt[t] {
				p.SetCoeff(s.joint[t], s.fwd[t], 1/vals[t])
			}
		}
	}
	if lim.MaxTargetSource != nil {
		if s.revCons == nil {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "max_target_source was not configured at construction",
			}
		}
		vals, err := lim.MaxTargetSource.resolve(s.name, "max_target_source", n)
		if err != nil {
			return err
		}
		if err := checkNonNegative(s.name, "max_target_source", vals); err != nil {
			return err
		}
		if err := s.checkJointRebind(vals); err != nil {
			return err
		}
		s.maxRev = vals
		for t := range vals {
			p.SetRHS(s.revCons[t], vals[t])
			if s.joint != nil && s.jointAt[t] {
				p.SetCoeff(s.joint[t], s.rev[t], 1/vals[t])
			}
		}
	}
	return nil
}

// checkJointRebind rejects rebinding a limit to zero at a period where a
// time-slice constraint was built, since its coefficients are reciprocal
// limits.
func (s *powerLimitSegment) checkJointRebind(vals []float64) error {
	if s.joint == nil {
		return nil
	}
	for t, v := range vals {
		if s.jointAt[t] && v <= 0 {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "time-slice constraint requires positive limits, rebuild the network instead",
			}
		}
	}
	return nil
}

type efficiencySegment struct {
	name    string
	periods []float64
	fwdIn   []lp.Var // nil when the direction is untransformed
	fwdOut  []lp.Var
	fwdLink []lp.Con
	fwdEff  []float64
	revIn   []lp.Var
	revOut  []lp.Var
	revLink []lp.Con
	revEff  []float64
}

func newEfficiencySegment(ctx *segmentContext, name string, cfg EfficiencyConfig, fwd, rev []lp.Var) (*efficiencySegment, []lp.Var, []lp.Var, error) {
	if cfg.SourceTarget == nil && cfg.TargetSource == nil {
		return nil, nil, nil, &SegmentConfigurationError{
			Connection: ctx.connection, Segment: name,
			Reason: "efficiency requires at least one direction",
		}
	}
	n := len(ctx.periods)
	seg := &efficiencySegment{name: name, periods: ctx.periods}
	outFwd, outRev := fwd, rev

	if cfg.SourceTarget != nil {
		eff, err := cfg.SourceTarget.resolve(ctx.connection, name+".source_target", n)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := checkEfficiency(ctx.connection, name+".source_target", eff); err != nil {
			return nil, nil, nil, err
		}
		seg.fwdIn = fwd
		seg.fwdEff = eff
		seg.fwdOut = ctx.problem.AddVariables(n)
		seg.fwdLink = make([]lp.Con, n)
		for t := 0; t < n; t++ {
			seg.fwdLink[t] = ctx.problem.AddConstraint(map[lp.Var]float64{
				seg.fwdOut[t]: 1,
				fwd[t]:        -eff[t],
			}, lp.Equal, 0)
		}
		outFwd = seg.fwdOut
	}
	if cfg.TargetSource != nil {
		eff, err := cfg.TargetSource.resolve(ctx.connection, name+".target_source", n)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := checkEfficiency(ctx.connection, name+".target_source", eff); err != nil {
			return nil, nil, nil, err
		}
		seg.revIn = rev
		seg.revEff = eff
		seg.revOut = ctx.problem.AddVariables(n)
		seg.revLink = make([]lp.Con, n)
		for t := 0; t < n; t++ {
			seg.revLink[t] = ctx.problem.AddConstraint(map[lp.Var]float64{
				seg.revOut[t]: 1,
				rev[t]:        -eff[t],
			}, lp.Equal, 0)
		}
		outRev = seg.revOut
	}

	return seg, outFwd, outRev, nil
}

func (s *efficiencySegment) segmentName() string { return s.name }

func (s *efficiencySegment) outputs(sol *lp.Solution, prefix string, out map[string]OutputData) {
	if s.fwdOut != nil {
		vals := make([]float64, len(s.periods))
		for t := range vals {
			vals[t] = sol.Primal[s.fwdOut[t]]
		}
		out[prefix+"power_source_target_out"] = OutputData{
			Kind: OutputPowerFlow, Unit: "kW", Values: vals, Direction: DirectionPositive, Advanced: true,
		}
	}
	if s.revOut != nil {
		vals := make([]float64, len(s.periods))
		for t := range vals {
			vals[t] = sol.Primal[s.revOut[t]]
		}
		out[prefix+"power_target_source_out"] = OutputData{
			Kind: OutputPowerFlow, Unit: "kW", Values: vals, Direction: DirectionNegative, Advanced: true,
		}
	}
}

func (s *efficiencySegment) rebind(p *lp.Problem, params SegmentParameters) error {
	eff, ok := params.(EfficiencyParameters)
	if !ok {
		return &SegmentConfigurationError{
			Segment: s.name, Reason: "parameter overrides do not match segment kind efficiency",
		}
	}
	n := len(s.periods)

	if eff.SourceTarget != nil {
		if s.fwdLink == nil {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "source_target efficiency was not configured at construction",
			}
		}
		vals, err := eff.SourceTarget.resolve(s.name, "source_target", n)
		if err != nil {
			return err
		}
		if err := checkEfficiency(s.name, "source_target", vals); err != nil {
			return err
		}
		s.fwdEff = vals
		for t := 0; t < n; t++ {
			p.SetCoeff(s.fwdLink[t], s.fwdIn[t], -vals[t])
		}
	}
	if eff.TargetSource != nil {
		if s.revLink == nil {
			return &SegmentConfigurationError{
				Segment: s.name, Reason: "target_source efficiency was not configured at construction",
			}
		}
		vals, err := eff.TargetSource.resolve(s.name, "target_source", n)
		if err != nil {
			return err
		}
		if err := checkEfficiency(s.name, "target_source", vals); err != nil {
			return err
		}
		s.revEff = vals
		for t := 0; t < n; t++ {
			p.SetCoeff(s.revLink[t], s.revIn[t], -vals[t])
		}
	}
	return nil
}
