package model

import (
	"fmt"

	"github.com/hass-energy/haeo/lp"
)

// ConstructionError reports malformed element parameters: a sequence whose
// length matches neither one (broadcast) nor the required shape, an
// out-of-range percentage, or a disallowed negative value.
type ConstructionError struct {
	Element  string
	Field    string
	Expected int
	Actual   int
	Reason   string
}

func (e *ConstructionError) Error() string {
	if e.Reason != "" {
		if e.Field != "" {
			return fmt.Sprintf("element %q: field %q: %s", e.Element, e.Field, e.Reason)
		}
		return fmt.Sprintf("element %q: %s", e.Element, e.Reason)
	}
	return fmt.Sprintf("element %q: field %q: expected length %d, got %d",
		e.Element, e.Field, e.Expected, e.Actual)
}

// TopologyError reports a structural problem with the network: a duplicate
// element name, a connection referencing an unknown endpoint, or an element
// used in a role it cannot fill.
type TopologyError struct {
	Network string
	Element string
	Reason  string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("network %q: element %q: %s", e.Network, e.Element, e.Reason)
}

// SegmentConfigurationError reports an internally inconsistent segment
// specification, for example a cost configured without its required
// threshold or a state-of-charge segment on a connection without a battery
// endpoint.
type SegmentConfigurationError struct {
	Connection string
	Segment    string
	Reason     string
}

func (e *SegmentConfigurationError) Error() string {
	return fmt.Sprintf("connection %q: segment %q: %s", e.Connection, e.Segment, e.Reason)
}

// SolveError reports a non-optimal solver outcome. The engine never returns
// a partial schedule: callers must treat this as a full-cycle failure.
type SolveError struct {
	Network string
	Status  lp.Status
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("network %q: optimization failed: %s", e.Network, e.Status)
}
