package model

import (
	"github.com/hass-energy/haeo/lp"
)

// NodeConfig configures a pure balance node: the sum of all incident
// connection flows is forced to zero in every period.
type NodeConfig struct{}

// NodeParameters is the (empty) warm-start override for a node.
type NodeParameters struct{}

// Node is a bus. Its balance rows are created when the node is added;
// connections splice their flow coefficients in later, so the rows are
// complete once the last connection is registered.
type Node struct {
	name    string
	periods []float64
	balance []lp.Con
}

func newNode(p *lp.Problem, name string, periods []float64) *Node {
	n := &Node{
		name:    name,
		periods: periods,
		balance: make([]lp.Con, len(periods)),
	}
	for t := range periods {
		n.balance[t] = p.AddConstraint(nil, lp.Equal, 0)
	}
	return n
}

func (n *Node) Name() string { return n.name }

func (n *Node) attachFlows(p *lp.Problem, inbound, outbound []lp.Var) {
	for t := range n.periods {
		if inbound != nil {
			p.SetCoeff(n.balance[t], inbound[t], 1)
		}
		if outbound != nil {
			p.SetCoeff(n.balance[t], outbound[t], -1)
		}
	}
}

// outputs reports the implicit nodal price: the balance constraint's shadow
// price normalized to energy units.
func (n *Node) outputs(sol *lp.Solution) map[string]OutputData {
	price := make([]float64, len(n.periods))
	for t, dt := range n.periods {
		price[t] = sol.Dual[n.balance[t]] / dt
	}
	return map[string]OutputData{
		OutputNamePrice: {
			Kind:      OutputShadowPrice,
			Unit:      "EUR/kWh",
			Values:    price,
			Direction: DirectionNone,
		},
	}
}

func (n *Node) rebind(_ *lp.Problem, params Parameters) error {
	if _, ok := params.(NodeParameters); !ok {
		return &ConstructionError{
			Element: n.name,
			Reason:  "parameter overrides do not match element kind node",
		}
	}
	return nil
}
