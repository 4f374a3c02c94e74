package calc

import (
	"github.com/woundeval/woundeval/internal/domain/schema"
)

// necroticBands maps a necrotic-tissue percentage to one of five mutually
// exclusive quantity bands: 0 none, (0,25) minimal, [25,50] moderate,
// (50,75) substantial, [75,100] extensive.
var necroticBands = BandSet{
	{Code: "none", Label: "None", Color: "#4CAF50", Lower: lower(schema.OpEq, 0)},
	{Code: "minimal", Label: "Minimal", Color: "#8BC34A", Lower: lower(schema.OpGt, 0), Upper: upper(schema.OpLt, 25)},
	{Code: "moderate", Label: "Moderate", Color: "#FFC107", Lower: lower(schema.OpGte, 25), Upper: upper(schema.OpLte, 50)},
	{Code: "substantial", Label: "Substantial", Color: "#FF9800", Lower: lower(schema.OpGt, 50), Upper: upper(schema.OpLt, 75)},
	{Code: "extensive", Label: "Extensive", Color: "#F44336", Lower: lower(schema.OpGte, 75), Upper: upper(schema.OpLte, 100)},
}

// NecroticBands exposes the quantity bands for tests and display.
func NecroticBands() BandSet { return necroticBands }

// NecroticBand reads the necrotic-tissue percentage captured on a prior step
// and derives its quantity band on the follow-up step.
type NecroticBand struct {
	Percent schema.FieldRef
	Target  schema.FieldRef
}

func (c *NecroticBand) Name() string { return "necrotic_band" }

func (c *NecroticBand) Dependencies() []schema.FieldRef {
	return []schema.FieldRef{c.Percent}
}

func (c *NecroticBand) Compute(lookup schema.ValueLookup) []Result {
	raw, ok := lookup(c.Percent)
	if !ok {
		return nil
	}
	pct, ok := schema.ToFloat(raw)
	if !ok || pct < 0 || pct > 100 {
		return nil
	}

	band, ok := necroticBands.Classify(pct)
	if !ok {
		return nil
	}
	return []Result{{Target: c.Target, Value: band.Code, Band: &band}}
}
