package calc

import (
	"testing"
	"time"

	"github.com/woundeval/woundeval/internal/domain/schema"
)

func ref(step, el string) schema.FieldRef {
	return schema.FieldRef{StepID: step, ElementID: el}
}

func lookupFrom(m map[string]any) schema.ValueLookup {
	return func(r schema.FieldRef) (any, bool) {
		v, ok := m[r.String()]
		return v, ok
	}
}

// ---------------------------------------------------------------------------
// BMI
// ---------------------------------------------------------------------------

func newBMI() *BMI {
	return &BMI{
		Height: ref("T4", "height"),
		Weight: ref("T4", "weight"),
		Target: ref("T4", "bmi"),
	}
}

func TestBMI_Compute(t *testing.T) {
	tests := []struct {
		name     string
		height   any
		weight   any
		want     float64
		wantBand string
	}{
		{"overweight", 1.8, 90.0, 27.8, "overweight"},
		{"normal", 1.75, 70.0, 22.9, "normal"},
		{"underweight boundary", 2.0, 73.9, 18.5, "normal"},
		{"underweight", 2.0, 73.5, 18.4, "underweight"},
		{"obesity 1 boundary", 1.0, 30.0, 30.0, "obesity_1"},
		{"obesity 3", 1.6, 110.0, 43.0, "obesity_3"},
		{"string inputs", "1.8", "90", 27.8, "overweight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := newBMI().Compute(lookupFrom(map[string]any{
				"T4.height": tt.height,
				"T4.weight": tt.weight,
			}))
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			r := results[0]
			if r.Value != tt.want {
				t.Errorf("Value = %v, want %v", r.Value, tt.want)
			}
			if r.Band == nil || r.Band.Code != tt.wantBand {
				t.Errorf("Band = %v, want %s", r.Band, tt.wantBand)
			}
			if r.Target != ref("T4", "bmi") {
				t.Errorf("Target = %v", r.Target)
			}
		})
	}
}

func TestBMI_NotComputable(t *testing.T) {
	tests := []struct {
		name   string
		inputs map[string]any
	}{
		{"missing height", map[string]any{"T4.weight": 90.0}},
		{"missing weight", map[string]any{"T4.height": 1.8}},
		{"zero height", map[string]any{"T4.height": 0.0, "T4.weight": 90.0}},
		{"negative weight", map[string]any{"T4.height": 1.8, "T4.weight": -5.0}},
		{"non-numeric", map[string]any{"T4.height": "tall", "T4.weight": 90.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if results := newBMI().Compute(lookupFrom(tt.inputs)); len(results) != 0 {
				t.Errorf("expected no results, got %v", results)
			}
		})
	}
}

func TestBMI_ImperialUnits(t *testing.T) {
	c := newBMI()
	c.HeightUnit = "ft"
	c.WeightUnit = "lb"

	// 6 ft = 1.8288 m, 198 lb = 89.81 kg -> 26.9
	results := c.Compute(lookupFrom(map[string]any{
		"T4.height": 6.0,
		"T4.weight": 198.0,
	}))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Value != 26.9 {
		t.Errorf("Value = %v, want 26.9", results[0].Value)
	}
}

func TestBMI_Idempotent(t *testing.T) {
	inputs := lookupFrom(map[string]any{"T4.height": 1.8, "T4.weight": 90.0})
	c := newBMI()
	first := c.Compute(inputs)
	second := c.Compute(inputs)
	if first[0].Value != second[0].Value || first[0].Band.Code != second[0].Band.Code {
		t.Error("same inputs must produce the same result")
	}
}

// ---------------------------------------------------------------------------
// Perfusion index
// ---------------------------------------------------------------------------

func newPerfusion() *PerfusionIndex {
	return &PerfusionIndex{
		MaxBrachial: ref("T3", "max_brachial"),
		Distals: []DistalPressure{
			{Pressure: ref("T3", "distal_dorsalis"), Target: ref("T3", "ips_dorsalis")},
			{Pressure: ref("T3", "distal_tibial"), Target: ref("T3", "ips_tibial")},
		},
	}
}

func TestPerfusionIndex_Compute(t *testing.T) {
	results := newPerfusion().Compute(lookupFrom(map[string]any{
		"T3.max_brachial":    120.0,
		"T3.distal_dorsalis": 40.0,
		"T3.distal_tibial":   130.0,
	}))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Value != 0.33 {
		t.Errorf("dorsalis index = %v, want 0.33", results[0].Value)
	}
	if results[0].Band.Code != "severe" {
		t.Errorf("dorsalis band = %s, want severe", results[0].Band.Code)
	}

	if results[1].Value != 1.08 {
		t.Errorf("tibial index = %v, want 1.08", results[1].Value)
	}
	if results[1].Band.Code != "normal" {
		t.Errorf("tibial band = %s, want normal", results[1].Band.Code)
	}
}

func TestPerfusionIndex_PartialInputs(t *testing.T) {
	// One missing distal produces a result only for the other limb.
	results := newPerfusion().Compute(lookupFrom(map[string]any{
		"T3.max_brachial":  100.0,
		"T3.distal_tibial": 90.0,
	}))
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Target != ref("T3", "ips_tibial") {
		t.Errorf("Target = %v", results[0].Target)
	}
	if results[0].Value != 0.9 || results[0].Band.Code != "limit" {
		t.Errorf("got (%v, %s), want (0.9, limit)", results[0].Value, results[0].Band.Code)
	}
}

func TestPerfusionIndex_NoBrachial(t *testing.T) {
	results := newPerfusion().Compute(lookupFrom(map[string]any{
		"T3.distal_dorsalis": 40.0,
	}))
	if len(results) != 0 {
		t.Errorf("expected no results without a brachial pressure, got %v", results)
	}
}

func TestPerfusionIndex_ZeroDistal(t *testing.T) {
	// A zero pressure yields no index, never an index of zero.
	results := newPerfusion().Compute(lookupFrom(map[string]any{
		"T3.max_brachial":    120.0,
		"T3.distal_dorsalis": 0.0,
	}))
	if len(results) != 0 {
		t.Errorf("expected no results for zero distal pressure, got %v", results)
	}
}

func TestPerfusionBands_Boundaries(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{1.41, "indeterminate"},
		{1.40, "normal"},
		{1.00, "normal"},
		{0.99, "limit"},
		{0.90, "limit"},
		{0.89, "mild"},
		{0.70, "mild"},
		{0.69, "moderate"},
		{0.40, "moderate"},
		{0.39, "severe"},
	}
	for _, tt := range tests {
		band, ok := PerfusionBands().Classify(tt.value)
		if !ok || band.Code != tt.want {
			t.Errorf("Classify(%v) = (%v, %v), want %s", tt.value, band.Code, ok, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Wound surface
// ---------------------------------------------------------------------------

func TestWoundSurface_Compute(t *testing.T) {
	c := &WoundSurface{
		Length: ref("T5", "length"),
		Width:  ref("T5", "width"),
		Target: ref("T5", "surface"),
	}

	tests := []struct {
		name     string
		length   float64
		width    float64
		want     float64
		wantBand string
	}{
		{"class 3", 5, 4, 20.0, "class_3"},
		{"class 1", 1.5, 2, 3.0, "class_1"},
		{"class 2 lower boundary", 2, 2, 4.0, "class_2"},
		{"class 2 upper boundary", 4, 4, 16.0, "class_2"},
		{"class 4", 8, 6, 48.0, "class_4"},
		{"class 5", 10, 9, 90.0, "class_5"},
		{"rounded", 3.33, 3.33, 11.1, "class_2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := c.Compute(lookupFrom(map[string]any{
				"T5.length": tt.length,
				"T5.width":  tt.width,
			}))
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Value != tt.want {
				t.Errorf("Value = %v, want %v", results[0].Value, tt.want)
			}
			if results[0].Band.Code != tt.wantBand {
				t.Errorf("Band = %s, want %s", results[0].Band.Code, tt.wantBand)
			}
		})
	}

	if results := c.Compute(lookupFrom(map[string]any{"T5.length": 5.0})); len(results) != 0 {
		t.Errorf("expected no results without width, got %v", results)
	}
	if results := c.Compute(lookupFrom(map[string]any{"T5.length": 0.0, "T5.width": 4.0})); len(results) != 0 {
		t.Errorf("expected no results for zero length, got %v", results)
	}
}

func TestSurfaceBands_HealedIsExactZero(t *testing.T) {
	band, ok := SurfaceBands().Classify(0)
	if !ok || band.Code != "healed" {
		t.Errorf("Classify(0) = (%v, %v), want healed", band.Code, ok)
	}
	band, _ = SurfaceBands().Classify(0.1)
	if band.Code != "class_1" {
		t.Errorf("Classify(0.1) = %s, want class_1", band.Code)
	}
}

// ---------------------------------------------------------------------------
// Chronicity
// ---------------------------------------------------------------------------

func TestChronicity_Compute(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	c := &Chronicity{
		Date:   ref("T5", "appearance_date"),
		Target: ref("T5", "wound_age_days"),
		Now:    func() time.Time { return fixed },
	}

	tests := []struct {
		name     string
		date     string
		wantAge  int
		wantBand string
	}{
		// 10h into the day rounds the partial day up.
		{"recent", "2026-03-01", 15, "recent"},
		{"threshold", "2026-02-16", 28, "recent"},
		{"chronic", "2026-02-15", 29, "chronic"},
		{"old wound", "2025-03-15", 366, "chronic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := c.Compute(lookupFrom(map[string]any{"T5.appearance_date": tt.date}))
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Value != tt.wantAge {
				t.Errorf("age = %v, want %d", results[0].Value, tt.wantAge)
			}
			if results[0].Band.Code != tt.wantBand {
				t.Errorf("band = %s, want %s", results[0].Band.Code, tt.wantBand)
			}
		})
	}

	if results := c.Compute(lookupFrom(map[string]any{"T5.appearance_date": "not-a-date"})); len(results) != 0 {
		t.Errorf("expected no results for unparseable date, got %v", results)
	}
	if results := c.Compute(lookupFrom(nil)); len(results) != 0 {
		t.Errorf("expected no results without a date, got %v", results)
	}
}

func TestChronicity_FutureDateNotComputed(t *testing.T) {
	fixed := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	c := &Chronicity{
		Date:   ref("T5", "appearance_date"),
		Target: ref("T5", "wound_age_days"),
		Now:    func() time.Time { return fixed },
	}

	// A date after today can sit in the answer map while its field error is
	// shown; it must not classify as recent.
	for _, date := range []string{"2026-03-16", "2027-01-01"} {
		if results := c.Compute(lookupFrom(map[string]any{"T5.appearance_date": date})); len(results) != 0 {
			t.Errorf("expected no results for future date %s, got %v", date, results)
		}
	}

	// Same-day onset is age 1, not negative.
	results := c.Compute(lookupFrom(map[string]any{"T5.appearance_date": "2026-03-15"}))
	if len(results) != 1 || results[0].Value != 1 {
		t.Errorf("same-day onset = %v, want age 1", results)
	}
}

func TestAgeInDays_CeilsPartialDays(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC)
	if got := AgeInDays(date, now); got != 2 {
		t.Errorf("AgeInDays = %d, want 2 (one second past a full day rounds up)", got)
	}
	exact := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := AgeInDays(date, exact); got != 1 {
		t.Errorf("AgeInDays = %d, want 1 for an exact day", got)
	}
}

// ---------------------------------------------------------------------------
// Necrotic band
// ---------------------------------------------------------------------------

func TestNecroticBand_Compute(t *testing.T) {
	c := &NecroticBand{
		Percent: ref("T6", "necrotic_pct"),
		Target:  ref("T7", "necrotic_band"),
	}

	tests := []struct {
		pct  float64
		want string
	}{
		{0, "none"},
		{0.5, "minimal"},
		{24.9, "minimal"},
		{25, "moderate"},
		{50, "moderate"},
		{50.1, "substantial"},
		{74.9, "substantial"},
		{75, "extensive"},
		{100, "extensive"},
	}
	for _, tt := range tests {
		results := c.Compute(lookupFrom(map[string]any{"T6.necrotic_pct": tt.pct}))
		if len(results) != 1 {
			t.Fatalf("pct %v: expected 1 result, got %d", tt.pct, len(results))
		}
		if results[0].Value != tt.want {
			t.Errorf("pct %v: Value = %v, want %s", tt.pct, results[0].Value, tt.want)
		}
		if results[0].Band.Code != tt.want {
			t.Errorf("pct %v: Band = %s, want %s", tt.pct, results[0].Band.Code, tt.want)
		}
	}
}

func TestNecroticBand_OutOfDomain(t *testing.T) {
	c := &NecroticBand{Percent: ref("T6", "necrotic_pct"), Target: ref("T7", "necrotic_band")}
	for _, pct := range []float64{-1, 101} {
		if results := c.Compute(lookupFrom(map[string]any{"T6.necrotic_pct": pct})); len(results) != 0 {
			t.Errorf("pct %v: expected no results, got %v", pct, results)
		}
	}
}

// ---------------------------------------------------------------------------
// Band partitions
// ---------------------------------------------------------------------------

// Every band set must assign exactly one band to any in-domain value.
func TestBandSets_Partition(t *testing.T) {
	sets := map[string]struct {
		bands  BandSet
		values []float64
	}{
		"bmi":       {BMIBands(), sweep(5, 60, 0.1)},
		"perfusion": {PerfusionBands(), sweep(0, 2, 0.01)},
		"surface":   {SurfaceBands(), sweep(0, 120, 0.1)},
		"necrotic":  {NecroticBands(), sweep(0, 100, 0.1)},
	}
	for name, s := range sets {
		t.Run(name, func(t *testing.T) {
			for _, v := range s.values {
				matches := 0
				for _, b := range s.bands {
					if b.Contains(v) {
						matches++
					}
				}
				if matches != 1 {
					t.Fatalf("value %v matches %d bands, want exactly 1", v, matches)
				}
			}
		})
	}
}

func sweep(from, to, step float64) []float64 {
	var out []float64
	for v := from; v <= to; v += step {
		out = append(out, v)
	}
	return out
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistry_DependentOn(t *testing.T) {
	bmi := newBMI()
	surface := &WoundSurface{
		Length: ref("T5", "length"),
		Width:  ref("T5", "width"),
		Target: ref("T5", "surface"),
	}
	r := NewRegistry(bmi, surface)

	deps := r.DependentOn(ref("T4", "height"))
	if len(deps) != 1 || deps[0].Name() != "bmi" {
		t.Errorf("DependentOn(height) = %v", deps)
	}
	if deps := r.DependentOn(ref("T5", "width")); len(deps) != 1 || deps[0].Name() != "wound_surface" {
		t.Errorf("DependentOn(width) = %v", deps)
	}
	if deps := r.DependentOn(ref("T9", "unrelated")); len(deps) != 0 {
		t.Errorf("DependentOn(unrelated) = %v", deps)
	}
	if len(r.All()) != 2 {
		t.Errorf("All() = %d calculators, want 2", len(r.All()))
	}
}

func TestFromBindings(t *testing.T) {
	bindings := []schema.CalcBinding{
		{
			Name: "bmi",
			Inputs: map[string]schema.FieldRef{
				"height": ref("T4", "height"),
				"weight": ref("T4", "weight"),
			},
			Targets: map[string]schema.FieldRef{"value": ref("T4", "bmi")},
		},
		{
			Name: "perfusion_index",
			Inputs: map[string]schema.FieldRef{
				"maxBrachial": ref("T3", "max_brachial"),
				"dorsalis":    ref("T3", "distal_dorsalis"),
				"tibial":      ref("T3", "distal_tibial"),
			},
			Targets: map[string]schema.FieldRef{
				"dorsalis": ref("T3", "ips_dorsalis"),
				"tibial":   ref("T3", "ips_tibial"),
			},
		},
		{
			Name:    "necrotic_band",
			Inputs:  map[string]schema.FieldRef{"percent": ref("T6", "necrotic_pct")},
			Targets: map[string]schema.FieldRef{"band": ref("T7", "necrotic_band")},
		},
	}

	r, err := FromBindings(bindings)
	if err != nil {
		t.Fatalf("FromBindings() error: %v", err)
	}
	if len(r.All()) != 3 {
		t.Fatalf("expected 3 calculators, got %d", len(r.All()))
	}
}

func TestFromBindings_Errors(t *testing.T) {
	tests := []struct {
		name    string
		binding schema.CalcBinding
	}{
		{"unknown name", schema.CalcBinding{Name: "mystery"}},
		{"bmi missing weight", schema.CalcBinding{
			Name:    "bmi",
			Inputs:  map[string]schema.FieldRef{"height": ref("T4", "height")},
			Targets: map[string]schema.FieldRef{"value": ref("T4", "bmi")},
		}},
		{"perfusion without distals", schema.CalcBinding{
			Name:   "perfusion_index",
			Inputs: map[string]schema.FieldRef{"maxBrachial": ref("T3", "max_brachial")},
		}},
		{"perfusion distal without target", schema.CalcBinding{
			Name: "perfusion_index",
			Inputs: map[string]schema.FieldRef{
				"maxBrachial": ref("T3", "max_brachial"),
				"dorsalis":    ref("T3", "distal_dorsalis"),
			},
			Targets: map[string]schema.FieldRef{},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromBindings([]schema.CalcBinding{tt.binding}); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
