package agents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skysift/shiftwatch/internal/transcript"
)

var fatigueRequiredKeys = []string{"score", "severity", "indicators", "requires_attention", "summary"}

// fatigueData is the template context for the fatigue prompt
type fatigueData struct {
	HoursOnDuty        float64
	StartTime          string
	ScheduleType       string
	Position           string
	AvgResponseSeconds float64
	MaxResponseSeconds float64
	HesitationCount    int
	TotalTransmissions int
	Samples            string
}

// AnalyzeFatigue runs the fatigue agent over an evenly-spaced sample of
// the transcript plus the precomputed metrics. The metrics block is
// attached to the validated result here, outside the model call, so it is
// never subject to model error.
func (inv *Invoker) AnalyzeFatigue(ctx context.Context, meta transcript.ShiftMetadata, entries []transcript.Entry, metrics transcript.ComputedMetrics) (*FatigueResult, error) {
	data := fatigueData{
		HoursOnDuty:        meta.HoursOnDuty(),
		StartTime:          meta.StartTime.Format(time.RFC3339),
		ScheduleType:       meta.ScheduleType,
		Position:           meta.Position,
		AvgResponseSeconds: metrics.AvgResponseSeconds,
		MaxResponseSeconds: metrics.MaxResponseSeconds,
		HesitationCount:    metrics.HesitationCount,
		TotalTransmissions: len(entries),
		Samples:            formatEntries(sampleEntries(entries, inv.config.SampleSize)),
	}

	var result *FatigueResult
	err := inv.invoke(ctx, TemplateFatigue, data, fatigueRequiredKeys, func(payload json.RawMessage) error {
		var r FatigueResult
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

	result.Metrics = metrics
	return result, nil
}
