package model

// OutputKind classifies a result series. The set is fixed: the presentation
// layer consuming OutputData matches on it exhaustively.
type OutputKind string

const (
	OutputPower       OutputKind = "power"
	OutputPowerFlow   OutputKind = "power_flow"
	OutputPowerLimit  OutputKind = "power_limit"
	OutputEnergy      OutputKind = "energy"
	OutputSOC         OutputKind = "soc"
	OutputPrice       OutputKind = "price"
	OutputShadowPrice OutputKind = "shadow_price"
	OutputCost        OutputKind = "cost"
	OutputDuration    OutputKind = "duration"
	OutputStatus      OutputKind = "status"
)

// Direction is the sign convention of a result series.
type Direction string

const (
	// DirectionPositive marks series measured into the network (production,
	// charge consumption is reported from the owning element's view).
	DirectionPositive Direction = "+"
	// DirectionNegative marks series measured out of the network.
	DirectionNegative Direction = "-"
	// DirectionNone marks series without a flow direction.
	DirectionNone Direction = "none"
)

// OutputData is one named, immutable result series of an element, valid
// only after a successful solve. This is the sole contract the presentation
// layer consumes; names and kinds are stable across engine revisions.
type OutputData struct {
	Kind      OutputKind `json:"kind"`
	Unit      string     `json:"unit"`
	Values    []float64  `json:"values"`
	Direction Direction  `json:"direction"`
	Advanced  bool       `json:"advanced"`
}

// Common output names shared by several element kinds.
const (
	OutputNamePrice           = "price"
	OutputNameEnergyStored    = "energy_stored"
	OutputNameStateOfCharge   = "state_of_charge"
	OutputNamePowerCharge     = "power_charge"
	OutputNamePowerDischarge  = "power_discharge"
	OutputNamePowerInjection  = "power_injection"
	OutputNamePowerExtraction = "power_extraction"
)
