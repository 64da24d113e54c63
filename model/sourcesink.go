package model

import (
	"github.com/hass-energy/haeo/lp"
)

// SourceSinkConfig configures a balance element with an optional external
// boundary. IsSource exposes an unbounded, zero-cost, non-negative
// injection; IsSink an extraction. With both false the element behaves
// exactly like a Node.
type SourceSinkConfig struct {
	IsSource bool
	IsSink   bool
}

// SourceSinkParameters is the (empty) warm-start override for a
// source/sink. Its boundary role is topology and cannot be rebound.
type SourceSinkParameters struct{}

// SourceSink models an unmodeled external boundary such as an infinite
// bus: whatever power the network cannot balance internally is absorbed or
// supplied here for free. Costs, if any, belong on the connection feeding
// it.
type SourceSink struct {
	name       string
	periods    []float64
	balance    []lp.Con
	injection  []lp.Var
	extraction []lp.Var
}

func newSourceSink(p *lp.Problem, name string, periods []float64, cfg SourceSinkConfig) *SourceSink {
	s := &SourceSink{
		name:    name,
		periods: periods,
		balance: make([]lp.Con, len(periods)),
	}
	if cfg.IsSource {
		s.injection = p.AddVariables(len(periods))
	}
	if cfg.IsSink {
		s.extraction = p.AddVariables(len(periods))
	}
	for t := range periods {
		terms := map[lp.Var]float64{}
		if s.injection != nil {
			terms[s.injection[t]] = 1
		}
		if s.extraction != nil {
			terms[s.extraction[t]] = -1
		}
		s.balance[t] = p.AddConstraint(terms, lp.Equal, 0)
	}
	return s
}

func (s *SourceSink) Name() string { return s.name }

func (s *SourceSink) attachFlows(p *lp.Problem, inbound, outbound []lp.Var) {
	for t := range s.periods {
		if inbound != nil {
			p.SetCoeff(s.balance[t], inbound[t], 1)
		}
		if outbound != nil {
			p.SetCoeff(s.balance[t], outbound[t], -1)
		}
	}
}

func (s *SourceSink) outputs(sol *lp.Solution) map[string]OutputData {
	price := make([]float64, len(s.periods))
	for t, dt := range s.periods {
		price[t] = sol.Dual[s.balance[t]] / dt
	}
	out := map[string]OutputData{
		OutputNamePrice: {
			Kind:      OutputShadowPrice,
			Unit:      "EUR/kWh",
			Values:    price,
			Direction: DirectionNone,
		},
	}
	if s.injection != nil {
		vals := make([]float64, len(s.periods))
		for t := range vals {
			vals[t] = sol.Primal[s.injection[t]]
		}
		out[OutputNamePowerInjection] = OutputData{
			Kind:      OutputPower,
			Unit:      "kW",
			Values:    vals,
			Direction: DirectionPositive,
			Advanced:  true,
		}
	}
	if s.extraction != nil {
		vals := make([]float64, len(s.periods))
		for t := range vals {
			vals[t] = sol.Primal[s.extraction[t]]
		}
		out[OutputNamePowerExtraction] = OutputData{
			Kind:      OutputPower,
			Unit:      "kW",
			Values:    vals,
			Direction: DirectionNegative,
			Advanced:  true,
		}
	}
	return out
}

func (s *SourceSink) rebind(_ *lp.Problem, params Parameters) error {
	if _, ok := params.(SourceSinkParameters); !ok {
		return &ConstructionError{
			Element: s.name,
			Reason:  "parameter overrides do not match element kind source_sink",
		}
	}
	return nil
}
