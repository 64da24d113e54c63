package model

import (
	"github.com/hass-energy/haeo/lp"
)

// ElementConfig is the closed set of element configurations. Exactly one
// implementation exists per element kind; Network.Add dispatches on the
// concrete type, so an unknown kind is unrepresentable.
type ElementConfig interface {
	isElementConfig()
}

func (NodeConfig) isElementConfig()       {}
func (SourceSinkConfig) isElementConfig() {}
func (BatteryConfig) isElementConfig()    {}
func (ConnectionConfig) isElementConfig() {}

// Parameters is the closed set of warm-start parameter overrides, one
// variant per element kind. Only rebindable numeric fields appear on these
// structs; topology fields (a connection's endpoints, a battery's capacity)
// have no representation here.
type Parameters interface {
	isParameters()
}

func (NodeParameters) isParameters()       {}
func (SourceSinkParameters) isParameters() {}
func (BatteryParameters) isParameters()    {}
func (ConnectionParameters) isParameters() {}

// Element is a named participant in the network. Elements are created by
// Network.Add, live exactly as long as their Network and are rebound, never
// rebuilt, on Network.Update. The interface is sealed: all implementations
// live in this package.
type Element interface {
	Name() string

	// outputs extracts the element's result series from a solved problem.
	outputs(sol *lp.Solution) map[string]OutputData

	// rebind replaces the element's numeric parameters in place.
	rebind(p *lp.Problem, params Parameters) error
}

// balancer is implemented by elements that hold per-period power balance
// rows (node, source/sink, battery). Connections splice their directional
// flow variables into these rows when added.
type balancer interface {
	Element
	attachFlows(p *lp.Problem, inbound, outbound []lp.Var)
}
