package session

import (
	"time"
)

// buildSummary assembles the final labeled snapshot: every step in schema
// order, using in-memory answers when present and falling back to the
// persisted copy, skipping steps with no collected answers. Callers hold
// c.mu.
func (c *Controller) buildSummary() *Summary {
	summary := &Summary{
		EvaluationID: c.evalID,
		CompletedAt:  time.Now().UTC(),
	}

	for _, step := range c.cat.Steps() {
		answers := c.collectedAnswers(step.ID)
		if len(answers) == 0 {
			continue
		}

		labels := make(map[string]string, len(step.Elements))
		for _, el := range step.Elements {
			labels[el.ID] = el.Label
		}

		summary.Steps = append(summary.Steps, SummaryStep{
			StepID:      step.ID,
			Order:       step.Index,
			Title:       step.Title,
			Description: step.Note,
			Answers:     answers,
			FieldLabels: labels,
		})
	}
	return summary
}

// collectedAnswers prefers in-memory answers and falls back to persisted
// ones for steps edited in an earlier session.
func (c *Controller) collectedAnswers(stepID string) map[string]any {
	if m, ok := c.answers[stepID]; ok && len(m) > 0 {
		return m.Clone()
	}
	if entry, ok := c.persisted.Step(stepID); ok && len(entry.Answers) > 0 {
		cp := make(map[string]any, len(entry.Answers))
		for k, v := range entry.Answers {
			cp[k] = v
		}
		return cp
	}
	return nil
}
