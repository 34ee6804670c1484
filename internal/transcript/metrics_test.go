package transcript

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeMetrics_NoPilotControllerPairs(t *testing.T) {
	entries := []Entry{
		{Start: 0, Speaker: SpeakerController, Text: "Delta two three contact tower"},
		{Start: 5, Speaker: SpeakerController, Text: "traffic two o'clock"},
	}

	m := ComputeMetrics(entries)
	if m.AvgResponseSeconds != 0 || m.MaxResponseSeconds != 0 || m.MinResponseSeconds != 0 {
		t.Errorf("expected zero latency metrics, got %+v", m)
	}
}

func TestComputeMetrics_EmptyTranscript(t *testing.T) {
	m := ComputeMetrics(nil)
	if m.AvgResponseSeconds != 0 || m.HesitationCount != 0 {
		t.Errorf("expected zero metrics for empty transcript, got %+v", m)
	}
}

func TestComputeMetrics_ResponseLatencies(t *testing.T) {
	entries := []Entry{
		{Start: 0, Speaker: SpeakerPilot, Text: "tower, request taxi"},
		{Start: 2, Speaker: SpeakerController, Text: "taxi via alpha"},
		{Start: 10, Speaker: SpeakerPilot, Text: "holding short"},
		{Start: 15.2, Speaker: SpeakerController, Text: "cleared for takeoff"},
	}

	m := ComputeMetrics(entries)
	if !almostEqual(m.AvgResponseSeconds, 3.6) {
		t.Errorf("expected avg 3.6, got %v", m.AvgResponseSeconds)
	}
	if !almostEqual(m.MaxResponseSeconds, 5.2) {
		t.Errorf("expected max 5.2, got %v", m.MaxResponseSeconds)
	}
	if !almostEqual(m.MinResponseSeconds, 2.0) {
		t.Errorf("expected min 2.0, got %v", m.MinResponseSeconds)
	}
}

func TestComputeMetrics_UsesUtteranceEnd(t *testing.T) {
	// When the pilot entry carries an end timestamp, the gap is measured
	// from end of pilot speech to start of controller speech.
	entries := []Entry{
		{Start: 0, End: 3, Speaker: SpeakerPilot, Text: "request descent"},
		{Start: 5, Speaker: SpeakerController, Text: "descend flight level two four zero"},
	}

	m := ComputeMetrics(entries)
	if !almostEqual(m.AvgResponseSeconds, 2.0) {
		t.Errorf("expected avg 2.0, got %v", m.AvgResponseSeconds)
	}
}

func TestComputeMetrics_NegativeGapDropped(t *testing.T) {
	entries := []Entry{
		{Start: 0, End: 6, Speaker: SpeakerPilot, Text: "say again"},
		{Start: 5, Speaker: SpeakerController, Text: "I say again"},
		{Start: 10, Speaker: SpeakerPilot, Text: "roger"},
		{Start: 11, Speaker: SpeakerController, Text: "contact departure"},
	}

	m := ComputeMetrics(entries)
	if !almostEqual(m.AvgResponseSeconds, 1.0) {
		t.Errorf("expected overlapping pair dropped, avg 1.0, got %v", m.AvgResponseSeconds)
	}
}

func TestCountHesitations_ControllerOnly(t *testing.T) {
	base := []Entry{
		{Start: 0, Speaker: SpeakerController, Text: "turn left heading three four zero"},
		{Start: 5, Speaker: SpeakerPilot, Text: "uh um er left three four zero"},
	}

	m := ComputeMetrics(base)
	if m.HesitationCount != 0 {
		t.Errorf("pilot fillers must not count, got %d", m.HesitationCount)
	}
}

func TestCountHesitations_Monotonic(t *testing.T) {
	entries := []Entry{
		{Start: 0, Speaker: SpeakerController, Text: "um cleared to land"},
	}
	before := ComputeMetrics(entries).HesitationCount

	entries = append(entries, Entry{Start: 5, Speaker: SpeakerController, Text: "uh... stand by"})
	after := ComputeMetrics(entries).HesitationCount

	if after <= before {
		t.Errorf("hesitation count must grow with added fillers: before=%d after=%d", before, after)
	}
}

func TestCountHesitations_SummedAcrossUtterances(t *testing.T) {
	entries := []Entry{
		{Start: 0, Speaker: SpeakerController, Text: "um um expedite"},
		{Start: 4, Speaker: SpeakerController, Text: "UM climb maintain"},
	}

	m := ComputeMetrics(entries)
	if m.HesitationCount != 3 {
		t.Errorf("expected 3 hesitations (case-insensitive, summed), got %d", m.HesitationCount)
	}
}
