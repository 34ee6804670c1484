package agents

import (
	"fmt"

	"github.com/skysift/shiftwatch/internal/transcript"
)

// Severity levels shared by the fatigue and safety agents. These values are
// part of the persisted report contract.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Priority levels emitted by the summarizer
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Timeline event types emitted by the summarizer
const (
	TimelineFatigue = "fatigue"
	TimelineSafety  = "safety"
	TimelineNormal  = "normal"
)

// FatigueIndicator is one concerning observation from the fatigue agent
type FatigueIndicator struct {
	Type      string `json:"type"`
	Evidence  string `json:"evidence"`
	Severity  string `json:"severity,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// FatigueResult is the validated output of the fatigue agent. The metrics
// block is attached by the invoker after validation, never by the model.
type FatigueResult struct {
	Score             int                        `json:"score"`
	Severity          string                     `json:"severity"`
	Indicators        []FatigueIndicator         `json:"indicators"`
	RequiresAttention bool                       `json:"requires_attention"`
	Summary           string                     `json:"summary"`
	Metrics           transcript.ComputedMetrics `json:"metrics"`
}

// SafetyIssue is one safety concern found in the transcript
type SafetyIssue struct {
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Timestamp string `json:"timestamp"`
	Evidence  string `json:"evidence"`
	Concern   string `json:"concern"`
}

// SafetyResult is the validated output of the safety agent. A score of 100
// is the most critical.
type SafetyResult struct {
	Score                   int           `json:"score"`
	IssuesFound             []SafetyIssue `json:"issues_found"`
	RequiresImmediateReview bool          `json:"requires_immediate_review"`
	Summary                 string        `json:"summary"`
}

// TimelineEvent is one entry in the summarizer's timeline of concerns
type TimelineEvent struct {
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
}

// Recommendation is one prioritized supervisor action
type Recommendation struct {
	Priority  int    `json:"priority"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// SummaryResult is the validated output of the summarizer agent
type SummaryResult struct {
	ExecutiveSummary string           `json:"executive_summary"`
	KeyFindings      []string         `json:"key_findings"`
	Timeline         []TimelineEvent  `json:"timeline"`
	Recommendations  []Recommendation `json:"recommendations"`
	PriorityLevel    string           `json:"priority_level"`
}

func validSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func validPriorityLevel(s string) bool {
	switch s {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Validate checks the fatigue result against its declared schema
func (r *FatigueResult) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score %d out of range 0-100", r.Score)
	}
	if !validSeverity(r.Severity) {
		return fmt.Errorf("invalid severity %q", r.Severity)
	}
	if r.Summary == "" {
		return fmt.Errorf("summary is required")
	}
	for i, ind := range r.Indicators {
		if ind.Type == "" || ind.Evidence == "" {
			return fmt.Errorf("indicator %d missing type or evidence", i)
		}
	}
	return nil
}

// Validate checks the safety result against its declared schema
func (r *SafetyResult) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score %d out of range 0-100", r.Score)
	}
	if r.Summary == "" {
		return fmt.Errorf("summary is required")
	}
	for i, issue := range r.IssuesFound {
		if issue.Type == "" {
			return fmt.Errorf("issue %d missing type", i)
		}
		if !validSeverity(issue.Severity) {
			return fmt.Errorf("issue %d has invalid severity %q", i, issue.Severity)
		}
	}
	return nil
}

// Validate checks the summary result against its declared schema
func (r *SummaryResult) Validate() error {
	if r.ExecutiveSummary == "" {
		return fmt.Errorf("executive_summary is required")
	}
	if !validPriorityLevel(r.PriorityLevel) {
		return fmt.Errorf("invalid priority_level %q", r.PriorityLevel)
	}
	for i, rec := range r.Recommendations {
		if rec.Priority < 1 {
			return fmt.Errorf("recommendation %d has priority %d, must be >= 1", i, rec.Priority)
		}
		if rec.Action == "" {
			return fmt.Errorf("recommendation %d missing action", i)
		}
	}
	return nil
}
