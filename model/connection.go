package model

import (
	"github.com/hass-energy/haeo/lp"
)

// NamedSegmentConfig is one named stage of a connection's pipeline. Names
// must be unique within the connection; they prefix the stage's outputs and
// address the stage in warm-start overrides.
type NamedSegmentConfig struct {
	Name   string
	Config SegmentConfig
}

// ConnectionConfig configures a directed link between two balance-holding
// elements. Both flow directions always exist as separate non-negative
// variables; a one-way link is expressed with a zero power limit on the
// unused direction. Segments apply in listed order to both directions.
type ConnectionConfig struct {
	Source   string
	Target   string
	Segments []NamedSegmentConfig
}

// ConnectionParameters carries warm-start overrides for a connection's
// segments, keyed by segment name. Segments absent from the map keep their
// current parameters.
type ConnectionParameters struct {
	Segments map[string]SegmentParameters
}

// Connection links two elements. It owns the forward (source to target) and
// reverse (target to source) flow variables entering the pipeline; segments
// may substitute transformed variables, and the pair leaving the last stage
// is what the endpoints see on their balance rows.
type Connection struct {
	name     string
	source   string
	target   string
	periods  []float64
	fwd      []lp.Var // flow entering the pipeline, source side
	rev      []lp.Var // flow entering the pipeline, target side
	finalFwd []lp.Var // flow leaving the pipeline, target side
	finalRev []lp.Var // flow leaving the pipeline, source side
	segments []boundSegment
}

func newConnection(p *lp.Problem, name string, periods []float64, cfg ConnectionConfig, source, target balancer) (*Connection, error) {
	n := len(periods)
	c := &Connection{
		name:    name,
		source:  cfg.Source,
		target:  cfg.Target,
		periods: periods,
		fwd:     p.AddVariables(n),
		rev:     p.AddVariables(n),
	}

	ctx := &segmentContext{
		problem:    p,
		periods:    periods,
		connection: name,
		source:     source,
		target:     target,
	}

	seen := make(map[string]bool, len(cfg.Segments))
	fwd, rev := c.fwd, c.rev
	for _, sc := range cfg.Segments {
		if seen[sc.Name] {
			return nil, &SegmentConfigurationError{
				Connection: name, Segment: sc.Name, Reason: "duplicate segment name",
			}
		}
		seen[sc.Name] = true

		seg, outFwd, outRev, err := bindSegment(ctx, sc.Name, sc.Config, fwd, rev)
		if err != nil {
			return nil, err
		}
		c.segments = append(c.segments, seg)
		fwd, rev = outFwd, outRev
	}
	c.finalFwd, c.finalRev = fwd, rev

	// The source loses what enters forward and gains what survives the
	// reverse pipeline; mirrored on the target side. Losses inside
	// efficiency stages vanish between the two views.
	source.attachFlows(p, c.finalRev, c.fwd)
	target.attachFlows(p, c.finalFwd, c.rev)

	return c, nil
}

func (c *Connection) Name() string { return c.name }

func (c *Connection) outputs(sol *lp.Solution) map[string]OutputData {
	fwd := make([]float64, len(c.periods))
	rev := make([]float64, len(c.periods))
	for t := range c.periods {
		fwd[t] = sol.Primal[c.fwd[t]]
		rev[t] = sol.Primal[c.rev[t]]
	}
	out := map[string]OutputData{
		"power_source_target": {
			Kind: OutputPowerFlow, Unit: "kW", Values: fwd, Direction: DirectionPositive,
		},
		"power_target_source": {
			Kind: OutputPowerFlow, Unit: "kW", Values: rev, Direction: DirectionNegative,
		},
	}
	for _, seg := range c.segments {
		seg.outputs(sol, seg.segmentName()+"_", out)
	}
	return out
}

func (c *Connection) rebind(p *lp.Problem, params Parameters) error {
	cp, ok := params.(ConnectionParameters)
	if !ok {
		return &ConstructionError{
			Element: c.name,
			Reason:  "parameter overrides do not match element kind connection",
		}
	}
	for name, sp := range cp.Segments {
		seg := c.findSegment(name)
		if seg == nil {
			return &SegmentConfigurationError{
				Connection: c.name, Segment: name, Reason: "no such segment",
			}
		}
		if err := seg.rebind(p, sp); err != nil {
			if se, ok := err.(*SegmentConfigurationError); ok && se.Connection == "" {
				se.Connection = c.name
			}
			return err
		}
	}
	return nil
}

func (c *Connection) findSegment(name string) boundSegment {
	for _, seg := range c.segments {
		if seg.segmentName() == name {
			return seg
		}
	}
	return nil
}
