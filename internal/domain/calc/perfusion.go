package calc

import (
	"github.com/woundeval/woundeval/internal/domain/schema"
)

// perfusionBands partitions the real line at 0.40 / 0.70 / 0.90 / 1.00 / 1.40.
var perfusionBands = BandSet{
	{Code: "indeterminate", Label: "Indeterminate (incompressible)", Color: "#9E9E9E", Lower: lower(schema.OpGt, 1.40)},
	{Code: "normal", Label: "Normal", Color: "#4CAF50", Lower: lower(schema.OpGte, 1.00), Upper: upper(schema.OpLte, 1.40)},
	{Code: "limit", Label: "Borderline", Color: "#CDDC39", Lower: lower(schema.OpGte, 0.90), Upper: upper(schema.OpLt, 1.00)},
	{Code: "mild", Label: "Mild insufficiency", Color: "#FFC107", Lower: lower(schema.OpGte, 0.70), Upper: upper(schema.OpLt, 0.90)},
	{Code: "moderate", Label: "Moderate insufficiency", Color: "#FF9800", Lower: lower(schema.OpGte, 0.40), Upper: upper(schema.OpLt, 0.70)},
	{Code: "severe", Label: "Severe insufficiency", Color: "#F44336", Upper: upper(schema.OpLt, 0.40)},
}

// PerfusionBands exposes the interpretation bands for tests and display.
func PerfusionBands() BandSet { return perfusionBands }

// DistalPressure pairs one distal pressure input with the element receiving
// its computed index.
type DistalPressure struct {
	Pressure schema.FieldRef
	Target   schema.FieldRef
}

// PerfusionIndex computes ankle-brachial style indices: each distal pressure
// divided by the single maximum brachial pressure, rounded to two decimals.
// A zero distal pressure yields no index for that limb, never an index of
// zero.
type PerfusionIndex struct {
	MaxBrachial schema.FieldRef
	Distals     []DistalPressure
}

func (c *PerfusionIndex) Name() string { return "perfusion_index" }

func (c *PerfusionIndex) Dependencies() []schema.FieldRef {
	deps := []schema.FieldRef{c.MaxBrachial}
	for _, d := range c.Distals {
		deps = append(deps, d.Pressure)
	}
	return deps
}

func (c *PerfusionIndex) Compute(lookup schema.ValueLookup) []Result {
	maxB, ok := positive(lookup, c.MaxBrachial)
	if !ok {
		return nil
	}

	var results []Result
	for _, d := range c.Distals {
		p, ok := positive(lookup, d.Pressure)
		if !ok {
			continue
		}
		idx := round2(p / maxB)
		band, _ := perfusionBands.Classify(idx)
		results = append(results, Result{Target: d.Target, Value: idx, Band: &band})
	}
	return results
}
