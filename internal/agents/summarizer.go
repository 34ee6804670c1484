package agents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skysift/shiftwatch/internal/transcript"
)

var summaryRequiredKeys = []string{"executive_summary", "key_findings", "timeline", "recommendations", "priority_level"}

// summaryData is the template context for the summarizer prompt
type summaryData struct {
	ControllerID            string
	StartTime               string
	HoursOnDuty             float64
	Position                string
	ScheduleType            string
	Facility                string
	FatigueScore            int
	FatigueSeverity         string
	IndicatorCount          int
	RequiresAttention       bool
	SafetyScore             int
	IssueCount              int
	RequiresImmediateReview bool
}

// Summarize runs the summarizer agent over the already-validated fatigue
// and safety results. Callers must not invoke it before both upstream
// results exist.
func (inv *Invoker) Summarize(ctx context.Context, meta transcript.ShiftMetadata, fatigue *FatigueResult, safety *SafetyResult) (*SummaryResult, error) {
	data := summaryData{
		ControllerID:            meta.ControllerID,
		StartTime:               meta.StartTime.Format(time.RFC3339),
		HoursOnDuty:             meta.HoursOnDuty(),
		Position:                meta.Position,
		ScheduleType:            meta.ScheduleType,
		Facility:                meta.Facility,
		FatigueScore:            fatigue.Score,
		FatigueSeverity:         fatigue.Severity,
		IndicatorCount:          len(fatigue.Indicators),
		RequiresAttention:       fatigue.RequiresAttention,
		SafetyScore:             safety.Score,
		IssueCount:              len(safety.IssuesFound),
		RequiresImmediateReview: safety.RequiresImmediateReview,
	}

	var result *SummaryResult
	err := inv.invoke(ctx, TemplateSummary, data, summaryRequiredKeys, func(payload json.RawMessage) error {
		var r SummaryResult
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
