package scenario

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hass-energy/haeo/model"
)

// Results is the serializable outcome of one optimization run.
type Results struct {
	Name        string                                 `json:"name"`
	Cost        float64                                `json:"cost"`
	Periods     []float64                              `json:"periods"`
	Elements    map[string]map[string]model.OutputData `json:"elements"`
	Diagnostics map[string]model.OutputData            `json:"diagnostics"`
}

// Collect gathers every element's outputs and the solve diagnostics from a
// solved network.
func Collect(net *model.Network, cost float64) (*Results, error) {
	elements, err := net.AllOutputs()
	if err != nil {
		return nil, err
	}
	return &Results{
		Name:        net.Name(),
		Cost:        cost,
		Periods:     net.Periods(),
		Elements:    elements,
		Diagnostics: net.Diagnostics(),
	}, nil
}

// WriteJSON writes the results as indented JSON.
func (r *Results) WriteJSON(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("failed to encode results JSON: %w", err)
	}
	return nil
}

// Run builds the document's network, optimizes it and collects the results
// in one step.
func (d *Document) Run() (*Results, error) {
	net, err := d.Build()
	if err != nil {
		return nil, err
	}
	cost, err := net.Optimize()
	if err != nil {
		return nil, err
	}
	return Collect(net, cost)
}
