// Package scenario loads optimization networks from JSON documents and
// serializes their results. A scenario names the horizon and lists elements
// by kind; numeric fields accept either a single number (broadcast across
// the horizon) or an array of exactly the required length.
package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hass-energy/haeo/model"
)

// Series is a scenario-level numeric field: a JSON number or an array of
// numbers, mapped onto the engine's broadcast rules.
type Series []float64

// UnmarshalJSON accepts either a bare number or an array of numbers.
func (s *Series) UnmarshalJSON(data []byte) error {
	var one float64
	if err := json.Unmarshal(data, &one); err == nil {
		*s = Series{one}
		return nil
	}
	var many []float64
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("series must be a number or an array of numbers")
	}
	*s = Series(many)
	return nil
}

func (s *Series) toModel() model.Series {
	if s == nil {
		return nil
	}
	return model.Series(*s)
}

// Document is a parsed scenario file.
type Document struct {
	Name     string            `json:"name"`
	Periods  []float64         `json:"periods"` // hours
	Elements []json.RawMessage `json:"elements"`
}

// Load reads and parses a scenario file.
func Load(filename string) (*Document, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse parses a scenario document from a reader.
func Parse(reader io.Reader) (*Document, error) {
	var doc Document
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario JSON: %w", err)
	}
	return &doc, nil
}

type elementHeader struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type sourceSinkDoc struct {
	IsSource bool `json:"is_source"`
	IsSink   bool `json:"is_sink"`
}

type partitionDoc struct {
	Threshold     Series  `json:"threshold"`
	Cost          float64 `json:"cost"`
	ShrinkageCost float64 `json:"shrinkage_cost"`
}

type batteryDoc struct {
	Capacity          float64       `json:"capacity"`
	InitialCharge     float64       `json:"initial_charge"`
	MinCharge         *Series       `json:"min_charge"`
	MaxCharge         *Series       `json:"max_charge"`
	MaxChargePower    *Series       `json:"max_charge_power"`
	MaxDischargePower *Series       `json:"max_discharge_power"`
	EfficiencyIn      float64       `json:"efficiency_in"`
	EfficiencyOut     float64       `json:"efficiency_out"`
	SalvageValue      float64       `json:"salvage_value"`
	Undercharge       *partitionDoc `json:"undercharge"`
	Overcharge        *partitionDoc `json:"overcharge"`
}

type connectionDoc struct {
	Source   string            `json:"source"`
	Target   string            `json:"target"`
	Segments []json.RawMessage `json:"segments"`
}

type segmentHeader struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type powerLimitDoc struct {
	MaxSourceTarget *Series `json:"max_source_target"`
	MaxTargetSource *Series `json:"max_target_source"`
	Fixed           bool    `json:"fixed"`
}

type efficiencyDoc struct {
	SourceTarget *Series `json:"source_target"`
	TargetSource *Series `json:"target_source"`
}

type pricingDoc struct {
	PriceSourceTarget *Series `json:"price_source_target"`
	PriceTargetSource *Series `json:"price_target_source"`
}

type demandPricingDoc struct {
	Price        float64 `json:"price"`
	BlockHours   float64 `json:"block_hours"`
	BillingDays  float64 `json:"billing_days"`
	TargetSource bool    `json:"target_source"`
	Window       []int   `json:"window"`
}

type socPricingDoc struct {
	BelowThreshold     *Series `json:"below_threshold"`
	AboveThreshold     *Series `json:"above_threshold"`
	BelowPrice         float64 `json:"below_price"`
	AbovePrice         float64 `json:"above_price"`
	BelowMovementPrice float64 `json:"below_movement_price"`
	AboveMovementPrice float64 `json:"above_movement_price"`
}

// Build constructs and registers the document's elements on a fresh
// network. Element order in the document is preserved, so connections must
// follow their endpoints, matching the engine's own requirement.
func (d *Document) Build() (*model.Network, error) {
	net, err := model.New(d.Name, d.Periods)
	if err != nil {
		return nil, err
	}
	for _, raw := range d.Elements {
		var head elementHeader
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("failed to decode element header: %w", err)
		}
		cfg, err := decodeElement(d.Name, head, raw)
		if err != nil {
			return nil, err
		}
		if err := net.Add(head.Name, cfg); err != nil {
			return nil, err
		}
	}
	return net, nil
}

func decodeElement(network string, head elementHeader, raw json.RawMessage) (model.ElementConfig, error) {
	switch head.Kind {
	case "node":
		return model.NodeConfig{}, nil
	case "source_sink":
		var doc sourceSinkDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("element %q: %w", head.Name, err)
		}
		return model.SourceSinkConfig{IsSource: doc.IsSource, IsSink: doc.IsSink}, nil
	case "battery":
		var doc batteryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("element %q: %w", head.Name, err)
		}
		cfg := model.BatteryConfig{
			Capacity:          doc.Capacity,
			InitialCharge:     doc.InitialCharge,
			MinCharge:         doc.MinCharge.toModel(),
			MaxCharge:         doc.MaxCharge.toModel(),
			MaxChargePower:    doc.MaxChargePower.toModel(),
			MaxDischargePower: doc.MaxDischargePower.toModel(),
			EfficiencyIn:      doc.EfficiencyIn,
			EfficiencyOut:     doc.EfficiencyOut,
			SalvageValue:      doc.SalvageValue,
		}
		if doc.Undercharge != nil {
			cfg.Undercharge = &model.PartitionConfig{
				Threshold:     model.Series(doc.Undercharge.Threshold),
				Cost:          doc.Undercharge.Cost,
				ShrinkageCost: doc.Undercharge.ShrinkageCost,
			}
		}
		if doc.Overcharge != nil {
			cfg.Overcharge = &model.PartitionConfig{
				Threshold:     model.Series(doc.Overcharge.Threshold),
				Cost:          doc.Overcharge.Cost,
				ShrinkageCost: doc.Overcharge.ShrinkageCost,
			}
		}
		return cfg, nil
	case "connection":
		var doc connectionDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("element %q: %w", head.Name, err)
		}
		cfg := model.ConnectionConfig{Source: doc.Source, Target: doc.Target}
		for _, segRaw := range doc.Segments {
			var segHead segmentHeader
			if err := json.Unmarshal(segRaw, &segHead); err != nil {
				return nil, fmt.Errorf("element %q: failed to decode segment header: %w", head.Name, err)
			}
			seg, err := decodeSegment(head.Name, segHead, segRaw)
			if err != nil {
				return nil, err
			}
			cfg.Segments = append(cfg.Segments, model.NamedSegmentConfig{Name: segHead.Name, Config: seg})
		}
		return cfg, nil
	}
	return nil, &model.TopologyError{
		Network: network, Element: head.Name,
		Reason: fmt.Sprintf("unknown element kind %q", head.Kind),
	}
}

func decodeSegment(connection string, head segmentHeader, raw json.RawMessage) (model.SegmentConfig, error) {
	switch head.Kind {
	case "power_limit":
		var doc powerLimitDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("connection %q: segment %q: %w", connection, head.Name, err)
		}
		return model.PowerLimitConfig{
			MaxSourceTarget: doc.MaxSourceTarget.toModel(),
			MaxTargetSource: doc.MaxTargetSource.toModel(),
			Fixed:           doc.Fixed,
		}, nil
	case "efficiency":
		var doc efficiencyDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("connection %q: segment %q: %w", connection, head.Name, err)
		}
		return model.EfficiencyConfig{
			SourceTarget: doc.SourceTarget.toModel(),
			TargetSource: doc.TargetSource.toModel(),
		}, nil
	case "pricing":
		var doc pricingDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("connection %q: segment %q: %w", connection, head.Name, err)
		}
		return model.PricingConfig{
			PriceSourceTarget: doc.PriceSourceTarget.toModel(),
			PriceTargetSource: doc.PriceTargetSource.toModel(),
		}, nil
	case "demand_pricing":
		var doc demandPricingDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("connection %q: segment %q: %w", connection, head.Name, err)
		}
		return model.DemandPricingConfig{
			Price:        doc.Price,
			BlockHours:   doc.BlockHours,
			BillingDays:  doc.BillingDays,
			TargetSource: doc.TargetSource,
			Window:       doc.Window,
		}, nil
	case "soc_pricing":
		var doc socPricingDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("connection %q: segment %q: %w", connection, head.Name, err)
		}
		return model.SOCPricingConfig{
			BelowThreshold:     doc.BelowThreshold.toModel(),
			AboveThreshold:     doc.AboveThreshold.toModel(),
			BelowPrice:         doc.BelowPrice,
			AbovePrice:         doc.AbovePrice,
			BelowMovementPrice: doc.BelowMovementPrice,
			AboveMovementPrice: doc.AboveMovementPrice,
		}, nil
	case "passthrough":
		return model.PassthroughConfig{}, nil
	}
	return nil, &model.SegmentConfigurationError{
		Connection: connection, Segment: head.Name,
		Reason: fmt.Sprintf("unknown segment kind %q", head.Kind),
	}
}
