package schema

import (
	"strings"
	"testing"
)

func testDef() CatalogDef {
	return CatalogDef{
		Version: "test-1",
		Steps: []Step{
			{ID: "T1", Index: 0, Title: "Patient", Elements: []Element{
				{ID: "birth_date", Type: TypeDate, Label: "Date of birth"},
			}},
			{ID: "T2", Index: 1, Title: "Tissue", Elements: []Element{
				{ID: "necrotic_pct", Type: TypeNumeric, Label: "Necrotic tissue"},
			}},
			{ID: "T3", Index: 2, Title: "Detail", Elements: []Element{
				{ID: "band", Type: TypeCalculated, Label: "Extent"},
			}},
		},
		Branches: []BranchRule{{
			FromStepID:   "T2",
			TargetStepID: "T3",
			When: Condition{Compare: &Compare{
				Ref: FieldRef{StepID: "T2", ElementID: "necrotic_pct"}, Op: OpGt, Value: 0,
			}},
		}},
		Skips: []SkipRule{{
			StepID: "T3",
			ShowIf: Condition{},
		}},
	}
}

func TestNewCatalog(t *testing.T) {
	cat, err := NewCatalog(testDef())
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}

	if cat.Version() != "test-1" {
		t.Errorf("Version() = %q, want test-1", cat.Version())
	}
	if cat.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cat.Len())
	}

	step, ok := cat.StepByID("T2")
	if !ok || step.Index != 1 {
		t.Errorf("StepByID(T2) = (%v, %v)", step, ok)
	}

	el, ok := cat.ElementByRef(FieldRef{StepID: "T2", ElementID: "necrotic_pct"})
	if !ok || el.Type != TypeNumeric {
		t.Errorf("ElementByRef() = (%v, %v)", el, ok)
	}

	if _, ok := cat.BranchFrom("T2"); !ok {
		t.Error("expected branch originating at T2")
	}
	if _, ok := cat.BranchInto("T3"); !ok {
		t.Error("expected branch targeting T3")
	}
	if _, ok := cat.BranchInto("T1"); ok {
		t.Error("T1 is not a branch target")
	}
	if _, ok := cat.SkipCondition("T3"); !ok {
		t.Error("expected skip condition on T3")
	}
}

func TestNewCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CatalogDef)
		wantErr string
	}{
		{"no steps", func(d *CatalogDef) { d.Steps = nil }, "has no steps"},
		{"duplicate step id", func(d *CatalogDef) { d.Steps[1].ID = "T1" }, "duplicate step id"},
		{"index mismatch", func(d *CatalogDef) { d.Steps[2].Index = 7 }, "has index 7"},
		{"missing element id", func(d *CatalogDef) { d.Steps[0].Elements[0].ID = "" }, "element without id"},
		{"duplicate element id", func(d *CatalogDef) {
			d.Steps[0].Elements = append(d.Steps[0].Elements, Element{ID: "birth_date", Type: TypeText})
		}, "duplicate element id"},
		{"unknown skip step", func(d *CatalogDef) { d.Skips[0].StepID = "T9" }, "unknown step"},
		{"unknown branch source", func(d *CatalogDef) { d.Branches[0].FromStepID = "T9" }, "unknown source step"},
		{"unknown branch target", func(d *CatalogDef) { d.Branches[0].TargetStepID = "T9" }, "unknown target step"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testDef()
			tt.mutate(&def)
			_, err := NewCatalog(def)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestStepAt_OutOfRange(t *testing.T) {
	cat, err := NewCatalog(testDef())
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}
	if _, ok := cat.StepAt(-1); ok {
		t.Error("StepAt(-1) should report not found")
	}
	if _, ok := cat.StepAt(3); ok {
		t.Error("StepAt(len) should report not found")
	}
}

func TestElement_Option(t *testing.T) {
	el := Element{ID: "dressing", Type: TypeMultiChoiceText, Options: []Option{
		{Value: "foam", Label: "Foam"},
		{Value: "other", Label: "Other", WithText: true},
	}}
	opt, ok := el.Option("other")
	if !ok || !opt.WithText {
		t.Errorf("Option(other) = (%v, %v)", opt, ok)
	}
	if _, ok := el.Option("missing"); ok {
		t.Error("Option(missing) should report not found")
	}
}
