package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/skysift/shiftwatch/internal/agents"
	"github.com/skysift/shiftwatch/internal/transcript"
)

// Run phases for a single shift analysis. Complete and Failed are terminal
// for that run; a later request starts a fresh run from Idle.
type RunPhase string

const (
	PhaseIdle     RunPhase = "idle"
	PhaseRunning  RunPhase = "running"
	PhaseComplete RunPhase = "complete"
	PhaseFailed   RunPhase = "failed"
)

// RunStatus is the caller-visible state of the most recent run for a shift
type RunStatus struct {
	ShiftID    string     `json:"shift_id"`
	RunID      string     `json:"run_id"`
	Phase      RunPhase   `json:"phase"`
	Reason     string     `json:"reason,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// AnalysisReport is the assembled supervisor report for one shift. It is
// written wholesale by a successful run and never mutated field-by-field:
// readers see either a previous complete report or the new one.
type AnalysisReport struct {
	ShiftID     string                   `json:"shift_id"`
	Metadata    transcript.ShiftMetadata `json:"metadata"`
	Fatigue     *agents.FatigueResult    `json:"fatigue_analysis"`
	Safety      *agents.SafetyResult     `json:"safety_analysis"`
	Summary     *agents.SummaryResult    `json:"summary"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// ErrReportNotFound is returned when no report exists for a shift
var ErrReportNotFound = errors.New("report not found")

// ErrInputMissing marks a run whose transcript or metadata could not be
// retrieved. Fatal for the run, never retried within it.
var ErrInputMissing = errors.New("input data missing")

// TranscriptSource provides the diarized transcript for a shift
type TranscriptSource interface {
	FetchTranscript(ctx context.Context, shiftID string) ([]transcript.Entry, error)
}

// MetadataSource provides the shift metadata
type MetadataSource interface {
	FetchMetadata(ctx context.Context, shiftID string) (transcript.ShiftMetadata, error)
}

// ReportStore is the durable keyed store for assembled reports. Put must be
// all-or-nothing for a key and Get must see the latest completed Put.
type ReportStore interface {
	Put(ctx context.Context, report *AnalysisReport) error
	Get(ctx context.Context, shiftID string) (*AnalysisReport, error)
}

// AgentRunner is the qualitative-judgment side of the pipeline
type AgentRunner interface {
	AnalyzeFatigue(ctx context.Context, meta transcript.ShiftMetadata, entries []transcript.Entry, metrics transcript.ComputedMetrics) (*agents.FatigueResult, error)
	AnalyzeSafety(ctx context.Context, meta transcript.ShiftMetadata, entries []transcript.Entry) (*agents.SafetyResult, error)
	Summarize(ctx context.Context, meta transcript.ShiftMetadata, fatigue *agents.FatigueResult, safety *agents.SafetyResult) (*agents.SummaryResult, error)
}
