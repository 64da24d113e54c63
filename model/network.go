package model

import (
	"time"

	"github.com/hass-energy/haeo/lp"
)

// Network is a multi-period energy-flow model. Elements register against a
// single shared linear program as they are added; Optimize solves it and
// Update rebinds numeric parameters in place so consecutive solves reuse
// the constructed problem.
//
// A Network is not safe for concurrent use.
type Network struct {
	name     string
	periods  []float64 // hours per period
	problem  *lp.Problem
	elements map[string]Element
	order    []string

	solution *lp.Solution
	solveDur time.Duration
}

// New creates an empty network over the given period durations, in hours.
func New(name string, periods []float64) (*Network, error) {
	if len(periods) == 0 {
		return nil, &TopologyError{Network: name, Reason: "at least one period is required"}
	}
	for _, dt := range periods {
		if dt <= 0 {
			return nil, &TopologyError{Network: name, Reason: "period durations must be positive"}
		}
	}
	return &Network{
		name:     name,
		periods:  append([]float64(nil), periods...),
		problem:  lp.NewProblem(),
		elements: make(map[string]Element),
	}, nil
}

// Name returns the network's name.
func (n *Network) Name() string { return n.name }

// Periods returns the period durations in hours.
func (n *Network) Periods() []float64 {
	return append([]float64(nil), n.periods...)
}

// Add registers an element. Its variables and constraints are created
// immediately; a connection's endpoints must therefore already be present.
// Configuration errors leave the network unusable for further solves, since
// a partially built element may have registered rows already.
func (n *Network) Add(name string, cfg ElementConfig) error {
	if _, dup := n.elements[name]; dup {
		return &TopologyError{Network: n.name, Element: name, Reason: "duplicate element name"}
	}

	var (
		el  Element
		err error
	)
	switch cfg := cfg.(type) {
	case NodeConfig:
		el = newNode(n.problem, name, n.periods)
	case SourceSinkConfig:
		el = newSourceSink(n.problem, name, n.periods, cfg)
	case BatteryConfig:
		el, err = newBattery(n.problem, name, n.periods, cfg)
	case ConnectionConfig:
		var source, target balancer
		source, err = n.endpoint(name, cfg.Source)
		if err != nil {
			return err
		}
		target, err = n.endpoint(name, cfg.Target)
		if err != nil {
			return err
		}
		el, err = newConnection(n.problem, name, n.periods, cfg, source, target)
	default:
		return &TopologyError{Network: n.name, Element: name, Reason: "unknown element kind"}
	}
	if err != nil {
		return err
	}

	n.elements[name] = el
	n.order = append(n.order, name)
	n.solution = nil
	return nil
}

func (n *Network) endpoint(conn, name string) (balancer, error) {
	el, ok := n.elements[name]
	if !ok {
		return nil, &TopologyError{
			Network: n.name, Element: conn,
			Reason: "endpoint " + name + " does not exist",
		}
	}
	b, ok := el.(balancer)
	if !ok {
		return nil, &TopologyError{
			Network: n.name, Element: conn,
			Reason: "endpoint " + name + " cannot terminate a connection",
		}
	}
	return b, nil
}

// Validate re-checks the structural invariants Add enforces incrementally:
// every element is registered under its own name and every connection still
// resolves both endpoints to balance-holding elements. It is cheap and safe
// to call at any time.
func (n *Network) Validate() error {
	for name, el := range n.elements {
		if el.Name() != name {
			return &TopologyError{Network: n.name, Element: name, Reason: "registered under a foreign name"}
		}
		if c, ok := el.(*Connection); ok {
			if _, err := n.endpoint(name, c.source); err != nil {
				return err
			}
			if _, err := n.endpoint(name, c.target); err != nil {
				return err
			}
		}
	}
	return nil
}

// Optimize solves the network and returns the minimal total cost. Any
// outcome other than a proven optimum is a SolveError; outputs from a
// previous successful solve are discarded either way.
func (n *Network) Optimize() (float64, error) {
	n.solution = nil

	start := time.Now()
	sol := n.problem.Solve()
	n.solveDur = time.Since(start)

	if sol.Status != lp.Optimal {
		return 0, &SolveError{Network: n.name, Status: sol.Status}
	}
	n.solution = sol
	return sol.Objective, nil
}

// Update rebinds numeric parameters in place, keyed by element name. Names
// not present in the network are skipped silently so one override map can
// serve several network variants. Any applied override invalidates the
// previous solution.
func (n *Network) Update(params map[string]Parameters) error {
	for name, p := range params {
		el, ok := n.elements[name]
		if !ok {
			continue
		}
		n.solution = nil
		if err := el.rebind(n.problem, p); err != nil {
			return err
		}
	}
	return nil
}

// Outputs returns the named element's result series. It returns a
// TopologyError for unknown elements and a SolveError when no successful
// solve has happened since the last structural or parameter change.
func (n *Network) Outputs(name string) (map[string]OutputData, error) {
	el, ok := n.elements[name]
	if !ok {
		return nil, &TopologyError{Network: n.name, Element: name, Reason: "no such element"}
	}
	if n.solution == nil {
		return nil, &SolveError{Network: n.name, Status: lp.NotSolved}
	}
	return el.outputs(n.solution), nil
}

// AllOutputs returns the result series of every element, keyed by element
// name, in one call.
func (n *Network) AllOutputs() (map[string]map[string]OutputData, error) {
	if n.solution == nil {
		return nil, &SolveError{Network: n.name, Status: lp.NotSolved}
	}
	out := make(map[string]map[string]OutputData, len(n.order))
	for _, name := range n.order {
		out[name] = n.elements[name].outputs(n.solution)
	}
	return out, nil
}

// Diagnostics reports solve-level results: total cost, solver wall time and
// termination status of the most recent Optimize call.
func (n *Network) Diagnostics() map[string]OutputData {
	status := lp.NotSolved
	cost := 0.0
	if n.solution != nil {
		status = n.solution.Status
		cost = n.solution.Objective
	}
	return map[string]OutputData{
		"cost": {
			Kind: OutputCost, Unit: "EUR", Values: []float64{cost}, Direction: DirectionNone,
		},
		"solve_duration": {
			Kind: OutputDuration, Unit: "s", Values: []float64{n.solveDur.Seconds()}, Direction: DirectionNone, Advanced: true,
		},
		"status": {
			Kind: OutputStatus, Unit: "", Values: []float64{float64(status)}, Direction: DirectionNone, Advanced: true,
		},
	}
}
