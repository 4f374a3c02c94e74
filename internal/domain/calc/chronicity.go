package calc

import (
	"math"
	"time"

	"github.com/woundeval/woundeval/internal/domain/schema"
)

// chronicityThresholdDays separates a recent wound from a chronic one.
const chronicityThresholdDays = 28

var chronicityBands = BandSet{
	{Code: "recent", Label: "Recent wound", Color: "#4CAF50", Upper: upper(schema.OpLte, chronicityThresholdDays)},
	{Code: "chronic", Label: "Chronic wound", Color: "#F44336", Lower: lower(schema.OpGt, chronicityThresholdDays)},
}

// ChronicityBands exposes the recent/chronic badges for tests and display.
func ChronicityBands() BandSet { return chronicityBands }

// AgeInDays returns ceil((now − date) / 24h). A date later than now yields a
// negative age.
func AgeInDays(date, now time.Time) int {
	return int(math.Ceil(now.Sub(date).Hours() / 24))
}

// Chronicity derives the wound age in days from its appearance date and
// attaches exactly one badge: recent when age ≤ 28 days, chronic beyond.
// Without a parseable date in the past nothing is computed; a retained
// future date must not earn a badge.
type Chronicity struct {
	Date   schema.FieldRef
	Target schema.FieldRef

	// Now is the clock used for age computation; defaults to time.Now.
	Now func() time.Time
}

func (c *Chronicity) Name() string { return "chronicity" }

func (c *Chronicity) Dependencies() []schema.FieldRef {
	return []schema.FieldRef{c.Date}
}

func (c *Chronicity) Compute(lookup schema.ValueLookup) []Result {
	raw, ok := lookup(c.Date)
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}

	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}

	age := AgeInDays(date, now)
	if age < 0 {
		return nil
	}
	band, _ := chronicityBands.Classify(float64(age))
	return []Result{{Target: c.Target, Value: age, Band: &band}}
}
