// Package validation evaluates one element's constraints against a
// candidate value. It is pure: errors are returned, never thrown, and an
// empty result only means the field is currently valid, not that the whole
// step is.
package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/woundeval/woundeval/internal/domain/schema"
)

// Kind classifies a field error.
type Kind string

const (
	KindRequired        Kind = "required"
	KindTooShort        Kind = "too_short"
	KindTooLong         Kind = "too_long"
	KindNotANumber      Kind = "not_a_number"
	KindBelowMin        Kind = "below_min"
	KindAboveMax        Kind = "above_max"
	KindTooFewSelected  Kind = "too_few_selected"
	KindTooManySelected Kind = "too_many_selected"
	KindTextRequired    Kind = "text_required"
	KindBadDate         Kind = "bad_date"
	KindFutureDate      Kind = "future_date"
	KindYearOutOfRange  Kind = "year_out_of_range"
	KindTooManyPhotos   Kind = "too_many_photos"
)

// FieldError is one validation failure for one element.
type FieldError struct {
	ElementID string `json:"elementId"`
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.ElementID, e.Message)
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate checks value against the element's constraints using the current
// wall clock for date rules.
func Validate(el schema.Element, value any) []FieldError {
	return ValidateAt(el, value, time.Now())
}

// ValidateAt is Validate with an injected clock, for deterministic tests.
// Rules are checked in constraint order; the first applicable failure per
// rule family is reported, and composite types may accumulate several kinds.
func ValidateAt(el schema.Element, value any, now time.Time) []FieldError {
	var errs []FieldError
	fail := func(kind Kind, format string, args ...any) {
		errs = append(errs, FieldError{
			ElementID: el.ID,
			Kind:      kind,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	if isEmpty(value) {
		if el.Constraints.Required {
			fail(KindRequired, "%s is required", el.Label)
		}
		return errs
	}

	switch el.Type {
	case schema.TypeText, schema.TypeComposite:
		if s, ok := value.(string); ok {
			c := el.Constraints
			if c.MinLength > 0 && len([]rune(s)) < c.MinLength {
				fail(KindTooShort, "must be at least %d characters", c.MinLength)
			}
			if c.MaxLength > 0 && len([]rune(s)) > c.MaxLength {
				fail(KindTooLong, "must be at most %d characters", c.MaxLength)
			}
		}

	case schema.TypeNumeric, schema.TypeScale:
		f, ok := schema.ToFloat(value)
		if !ok {
			fail(KindNotANumber, "not a valid number")
			break
		}
		c := el.Constraints
		if c.Min != nil && f < *c.Min {
			fail(KindBelowMin, "must be at least %v", *c.Min)
		}
		if c.Max != nil && f > *c.Max {
			fail(KindAboveMax, "must be at most %v", *c.Max)
		}

	case schema.TypeMultiChoice, schema.TypeMultiChoiceText:
		errs = append(errs, validateSelections(el, value)...)

	case schema.TypeDate:
		errs = append(errs, validateDate(el, value, now)...)

	case schema.TypePhoto:
		if items, ok := value.([]any); ok {
			if el.Constraints.MaxItems > 0 && len(items) > el.Constraints.MaxItems {
				fail(KindTooManyPhotos, "at most %d photos allowed", el.Constraints.MaxItems)
			}
		}
	}

	return errs
}

func validateSelections(el schema.Element, value any) []FieldError {
	var errs []FieldError
	selected := schema.SelectedValues(value)
	c := el.Constraints

	if c.MinSelections > 0 && len(selected) < c.MinSelections {
		errs = append(errs, FieldError{
			ElementID: el.ID,
			Kind:      KindTooFewSelected,
			Message:   fmt.Sprintf("select at least %d option(s)", c.MinSelections),
		})
	}
	if c.MaxSelections > 0 && len(selected) > c.MaxSelections {
		errs = append(errs, FieldError{
			ElementID: el.ID,
			Kind:      KindTooManySelected,
			Message:   fmt.Sprintf("select at most %d option(s)", c.MaxSelections),
		})
	}

	if el.Type == schema.TypeMultiChoiceText {
		errs = append(errs, validateAttachedText(el, value, selected)...)
	}
	return errs
}

// validateAttachedText enforces that every selected option flagged WithText
// carries a non-blank free-text value.
func validateAttachedText(el schema.Element, value any, selected []any) []FieldError {
	var errs []FieldError
	entries, _ := value.(map[string]any)
	for _, sel := range selected {
		key, ok := sel.(string)
		if !ok {
			continue
		}
		opt, ok := el.Option(key)
		if !ok || !opt.WithText {
			continue
		}
		text := ""
		if entry, ok := entries[key].(map[string]any); ok {
			text, _ = entry["text"].(string)
		}
		if text == "" {
			errs = append(errs, FieldError{
				ElementID: el.ID,
				Kind:      KindTextRequired,
				Message:   fmt.Sprintf("text required for selection %s", opt.Label),
			})
		}
	}
	return errs
}

func validateDate(el schema.Element, value any, now time.Time) []FieldError {
	bad := func(kind Kind, msg string) []FieldError {
		return []FieldError{{ElementID: el.ID, Kind: kind, Message: msg}}
	}

	s, ok := value.(string)
	if !ok || !datePattern.MatchString(s) {
		return bad(KindBadDate, "date must be in YYYY-MM-DD format")
	}

	// time.Parse rejects impossible calendar dates like 2020-02-30.
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return bad(KindBadDate, "not a real calendar date")
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.After(today) {
		return bad(KindFutureDate, "date cannot be in the future")
	}
	if d.Year() < 1900 || d.Year() > now.Year() {
		return bad(KindYearOutOfRange, fmt.Sprintf("year must be between 1900 and %d", now.Year()))
	}
	return nil
}

// isEmpty implements the required-check emptiness rule: nil, empty string,
// empty array, or a selection map with no selected entry.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(schema.SelectedValues(v)) == 0
	default:
		return false
	}
}
