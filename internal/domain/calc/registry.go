package calc

import (
	"fmt"
	"sort"

	"github.com/woundeval/woundeval/internal/domain/schema"
)

// Registry indexes calculators by their declared dependencies so the session
// controller can find which ones to re-run after a single field edit.
type Registry struct {
	calcs []Calculator
	byDep map[schema.FieldRef][]Calculator
}

// NewRegistry builds a registry from the given calculators.
func NewRegistry(calcs ...Calculator) *Registry {
	r := &Registry{byDep: make(map[schema.FieldRef][]Calculator)}
	for _, c := range calcs {
		r.calcs = append(r.calcs, c)
		for _, dep := range c.Dependencies() {
			r.byDep[dep] = append(r.byDep[dep], c)
		}
	}
	return r
}

// All returns every registered calculator.
func (r *Registry) All() []Calculator { return r.calcs }

// DependentOn returns the calculators that declare ref as an input.
func (r *Registry) DependentOn(ref schema.FieldRef) []Calculator {
	return r.byDep[ref]
}

// FromBindings instantiates the fixed calculator set from the catalog's
// declared bindings. Unknown calculator names and missing roles are schema
// errors reported at startup.
func FromBindings(bindings []schema.CalcBinding) (*Registry, error) {
	var calcs []Calculator
	for _, b := range bindings {
		c, err := fromBinding(b)
		if err != nil {
			return nil, err
		}
		calcs = append(calcs, c)
	}
	return NewRegistry(calcs...), nil
}

func fromBinding(b schema.CalcBinding) (Calculator, error) {
	in := func(role string) (schema.FieldRef, error) {
		ref, ok := b.Inputs[role]
		if !ok {
			return schema.FieldRef{}, fmt.Errorf("calculator %q: missing input %q", b.Name, role)
		}
		return ref, nil
	}
	out := func(role string) (schema.FieldRef, error) {
		ref, ok := b.Targets[role]
		if !ok {
			return schema.FieldRef{}, fmt.Errorf("calculator %q: missing target %q", b.Name, role)
		}
		return ref, nil
	}

	switch b.Name {
	case "bmi":
		height, err := in("height")
		if err != nil {
			return nil, err
		}
		weight, err := in("weight")
		if err != nil {
			return nil, err
		}
		target, err := out("value")
		if err != nil {
			return nil, err
		}
		return &BMI{
			Height:     height,
			Weight:     weight,
			Target:     target,
			HeightUnit: b.Params["heightUnit"],
			WeightUnit: b.Params["weightUnit"],
		}, nil

	case "perfusion_index":
		maxB, err := in("maxBrachial")
		if err != nil {
			return nil, err
		}
		roles := make([]string, 0, len(b.Inputs))
		for role := range b.Inputs {
			if role != "maxBrachial" {
				roles = append(roles, role)
			}
		}
		sort.Strings(roles)
		var distals []DistalPressure
		for _, role := range roles {
			target, ok := b.Targets[role]
			if !ok {
				return nil, fmt.Errorf("calculator %q: distal input %q has no matching target", b.Name, role)
			}
			distals = append(distals, DistalPressure{Pressure: b.Inputs[role], Target: target})
		}
		if len(distals) == 0 {
			return nil, fmt.Errorf("calculator %q: no distal pressures declared", b.Name)
		}
		return &PerfusionIndex{MaxBrachial: maxB, Distals: distals}, nil

	case "wound_surface":
		length, err := in("length")
		if err != nil {
			return nil, err
		}
		width, err := in("width")
		if err != nil {
			return nil, err
		}
		target, err := out("value")
		if err != nil {
			return nil, err
		}
		return &WoundSurface{Length: length, Width: width, Target: target}, nil

	case "chronicity":
		date, err := in("date")
		if err != nil {
			return nil, err
		}
		target, err := out("ageDays")
		if err != nil {
			return nil, err
		}
		return &Chronicity{Date: date, Target: target}, nil

	case "necrotic_band":
		pct, err := in("percent")
		if err != nil {
			return nil, err
		}
		target, err := out("band")
		if err != nil {
			return nil, err
		}
		return &NecroticBand{Percent: pct, Target: target}, nil
	}

	return nil, fmt.Errorf("unknown calculator %q", b.Name)
}
