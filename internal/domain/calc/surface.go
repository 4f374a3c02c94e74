package calc

import (
	"github.com/woundeval/woundeval/internal/domain/schema"
)

// surfaceBands maps a wound surface in cm² to its size class:
// 0 healed, (0,4) class 1, [4,16] class 2, (16,36] class 3, (36,80] class 4,
// >80 class 5.
var surfaceBands = BandSet{
	{Code: "healed", Label: "Healed", Description: "No measurable surface", Color: "#4CAF50", Lower: lower(schema.OpEq, 0)},
	{Code: "class_1", Label: "Class 1", Description: "Surface under 4 cm²", Color: "#8BC34A", Lower: lower(schema.OpGt, 0), Upper: upper(schema.OpLt, 4)},
	{Code: "class_2", Label: "Class 2", Description: "Surface 4 to 16 cm²", Color: "#FFC107", Lower: lower(schema.OpGte, 4), Upper: upper(schema.OpLte, 16)},
	{Code: "class_3", Label: "Class 3", Description: "Surface 16 to 36 cm²", Color: "#FF9800", Lower: lower(schema.OpGt, 16), Upper: upper(schema.OpLte, 36)},
	{Code: "class_4", Label: "Class 4", Description: "Surface 36 to 80 cm²", Color: "#FF5722", Lower: lower(schema.OpGt, 36), Upper: upper(schema.OpLte, 80)},
	{Code: "class_5", Label: "Class 5", Description: "Surface over 80 cm²", Color: "#F44336", Lower: lower(schema.OpGt, 80)},
}

// SurfaceBands exposes the size classes for tests and display.
func SurfaceBands() BandSet { return surfaceBands }

// WoundSurface computes surface = length × width (both strictly positive),
// rounded to one decimal, with its size class.
type WoundSurface struct {
	Length schema.FieldRef
	Width  schema.FieldRef
	Target schema.FieldRef
}

func (c *WoundSurface) Name() string { return "wound_surface" }

func (c *WoundSurface) Dependencies() []schema.FieldRef {
	return []schema.FieldRef{c.Length, c.Width}
}

func (c *WoundSurface) Compute(lookup schema.ValueLookup) []Result {
	l, ok := positive(lookup, c.Length)
	if !ok {
		return nil
	}
	w, ok := positive(lookup, c.Width)
	if !ok {
		return nil
	}

	surface := round1(l * w)
	band, _ := surfaceBands.Classify(surface)
	return []Result{{Target: c.Target, Value: surface, Band: &band}}
}
