package calc

import (
	"github.com/woundeval/woundeval/internal/domain/schema"
)

// Unit conversion factors applied when the schema declares imperial inputs.
const (
	feetToMeters     = 0.3048
	poundsToKilogram = 0.453592
)

// bmiBands partitions [0, +inf) into the six WHO classification bands.
var bmiBands = BandSet{
	{Code: "underweight", Label: "Underweight", Color: "#2196F3", Upper: upper(schema.OpLt, 18.5)},
	{Code: "normal", Label: "Normal", Color: "#4CAF50", Lower: lower(schema.OpGte, 18.5), Upper: upper(schema.OpLt, 25.0)},
	{Code: "overweight", Label: "Overweight", Color: "#FFC107", Lower: lower(schema.OpGte, 25.0), Upper: upper(schema.OpLt, 30.0)},
	{Code: "obesity_1", Label: "Obesity class 1", Color: "#FF9800", Lower: lower(schema.OpGte, 30.0), Upper: upper(schema.OpLt, 35.0)},
	{Code: "obesity_2", Label: "Obesity class 2", Color: "#FF5722", Lower: lower(schema.OpGte, 35.0), Upper: upper(schema.OpLt, 40.0)},
	{Code: "obesity_3", Label: "Obesity class 3", Color: "#F44336", Lower: lower(schema.OpGte, 40.0)},
}

// BMIBands exposes the classification bands for tests and display.
func BMIBands() BandSet { return bmiBands }

// BMI computes body-mass index from height and weight answers, normalizing
// units first. The result is rounded to one decimal and classified.
type BMI struct {
	Height     schema.FieldRef
	Weight     schema.FieldRef
	Target     schema.FieldRef
	HeightUnit string // "m" (default) or "ft"
	WeightUnit string // "kg" (default) or "lb"
}

func (c *BMI) Name() string { return "bmi" }

func (c *BMI) Dependencies() []schema.FieldRef {
	return []schema.FieldRef{c.Height, c.Weight}
}

func (c *BMI) Compute(lookup schema.ValueLookup) []Result {
	h, ok := positive(lookup, c.Height)
	if !ok {
		return nil
	}
	w, ok := positive(lookup, c.Weight)
	if !ok {
		return nil
	}

	if c.HeightUnit == "ft" {
		h *= feetToMeters
	}
	if c.WeightUnit == "lb" {
		w *= poundsToKilogram
	}

	bmi := round1(w / (h * h))
	band, _ := bmiBands.Classify(bmi)
	return []Result{{Target: c.Target, Value: bmi, Band: &band}}
}
