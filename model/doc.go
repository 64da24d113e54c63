// Package model implements the multi-period energy-flow optimization engine.
//
// A Network is built from named elements: balance nodes, source/sinks,
// batteries and connections. Each element contributes decision variables,
// linear constraints and cost terms to one shared lp.Problem. Connections
// carry power between two elements through an ordered pipeline of segments
// (power limits, efficiencies, pricing, demand charges, state-of-charge
// penalties) that transform the directional flow in fixed order.
//
// Typical usage:
//
//	nw, err := model.New("home", []float64{1, 1, 1})
//	nw.Add("grid", model.SourceSinkConfig{IsSource: true, IsSink: true})
//	nw.Add("house", model.NodeConfig{})
//	nw.Add("battery", model.BatteryConfig{Capacity: 10, InitialCharge: 5, ...})
//	nw.Add("grid_house", model.ConnectionConfig{
//		Source: "grid",
//		Target: "house",
//		Segments: []model.NamedSegmentConfig{
//			{Name: "tariff", Config: model.PricingConfig{PriceSourceTarget: model.Scalar(0.3)}},
//		},
//	})
//
//	cost, err := nw.Optimize()
//	outputs, err := nw.Outputs("battery")
//
// All numeric inputs must be fully resolved before an element is added; the
// engine performs no I/O and no internal concurrency. Numeric parameters of
// already-built elements can be rebound through Network.Update for
// warm-start re-optimization without rebuilding topology.
package model
