package agents

import (
	"context"
	"encoding/json"

	"github.com/skysift/shiftwatch/internal/transcript"
)

var safetyRequiredKeys = []string{"score", "issues_found", "requires_immediate_review", "summary"}

// safetyData is the template context for the safety prompt
type safetyData struct {
	Facility     string
	Position     string
	ControllerID string
	Transcript   string
}

// AnalyzeSafety runs the safety agent over the full transcript. Unlike the
// fatigue agent it never samples: a missed readback in the final hour
// matters as much as one in the first.
func (inv *Invoker) AnalyzeSafety(ctx context.Context, meta transcript.ShiftMetadata, entries []transcript.Entry) (*SafetyResult, error) {
	data := safetyData{
		Facility:     meta.Facility,
		Position:     meta.Position,
		ControllerID: meta.ControllerID,
		Transcript:   formatEntries(entries),
	}

	var result *SafetyResult
	err := inv.invoke(ctx, TemplateSafety, data, safetyRequiredKeys, func(payload json.RawMessage) error {
		var r SafetyResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return err
		}
		if err := r.Validate(); err != nil {
			return err
		}
		result = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
