package transcript

import (
	"fmt"
	"time"
)

// Speaker identifies who produced a transcript entry
const (
	SpeakerController = "controller"
	SpeakerPilot      = "pilot"
)

// Entry represents a single diarized utterance in a shift transcript.
// Entries are ordered chronologically and immutable once produced by
// the transcription step.
type Entry struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end,omitempty"`
	Speaker    string   `json:"speaker"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// EndTime returns the utterance end, falling back to the start timestamp
// for single-timestamp entries.
func (e Entry) EndTime() float64 {
	if e.End > 0 {
		return e.End
	}
	return e.Start
}

// ShiftMetadata describes one controller's continuous working period
type ShiftMetadata struct {
	ShiftID         string    `json:"shift_id"`
	ControllerID    string    `json:"controller_id"`
	Facility        string    `json:"facility"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Position        string    `json:"position"`
	ScheduleType    string    `json:"schedule_type"`
	TrafficCountAvg *float64  `json:"traffic_count_avg,omitempty"`
}

// HoursOnDuty returns the shift duration in hours
func (m ShiftMetadata) HoursOnDuty() float64 {
	return m.EndTime.Sub(m.StartTime).Hours()
}

// Validate checks that all required metadata fields are present and the
// shift interval is positive
func (m ShiftMetadata) Validate() error {
	if m.ShiftID == "" {
		return fmt.Errorf("shift_id is required")
	}
	if m.ControllerID == "" {
		return fmt.Errorf("controller_id is required")
	}
	if m.Facility == "" {
		return fmt.Errorf("facility is required")
	}
	if m.Position == "" {
		return fmt.Errorf("position is required")
	}
	if m.ScheduleType == "" {
		return fmt.Errorf("schedule_type is required")
	}
	if m.StartTime.IsZero() || m.EndTime.IsZero() {
		return fmt.Errorf("start_time and end_time are required")
	}
	if !m.EndTime.After(m.StartTime) {
		return fmt.Errorf("end_time must be after start_time")
	}
	return nil
}

// ComputedMetrics holds the quantitative signals derived from a transcript.
// They are recomputed on every analysis run and persisted only as part of
// the report that embeds them.
type ComputedMetrics struct {
	AvgResponseSeconds float64 `json:"avg_response_seconds"`
	MaxResponseSeconds float64 `json:"max_response_seconds"`
	MinResponseSeconds float64 `json:"min_response_seconds"`
	HesitationCount    int     `json:"hesitation_count"`
}
