package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skysift/shiftwatch/internal/llm"
	"github.com/skysift/shiftwatch/internal/transcript"
	"github.com/skysift/shiftwatch/pkg/logger"
)

// scriptedBackend returns canned replies in order and records every prompt
// it receives
type scriptedBackend struct {
	mu      sync.Mutex
	prompts []string
	replies []scriptedReply
}

type scriptedReply struct {
	text string
	err  error
}

func (b *scriptedBackend) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prompts = append(b.prompts, prompt)
	if len(b.replies) == 0 {
		return "", errors.New("scripted backend exhausted")
	}
	next := b.replies[0]
	b.replies = b.replies[1:]
	return next.text, next.err
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.prompts)
}

func (b *scriptedBackend) prompt(i int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prompts[i]
}

func newTestInvoker(t *testing.T, backend llm.Backend) *Invoker {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	templates, err := LoadTemplates("")
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	return NewInvoker(backend, templates, Config{
		Timeout:            time.Second,
		MaxTokens:          512,
		SampleSize:         10,
		MaxConcurrentCalls: 2,
	}, log)
}

func testMetadata() transcript.ShiftMetadata {
	return transcript.ShiftMetadata{
		ShiftID:      "shift-001",
		ControllerID: "C-42",
		Facility:     "KSFO",
		StartTime:    time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
		Position:     "tower",
		ScheduleType: "day",
	}
}

func testEntries() []transcript.Entry {
	return []transcript.Entry{
		{Start: 0.0, End: 2.0, Speaker: transcript.SpeakerPilot, Text: "tower, united four twenty two, ready for departure"},
		{Start: 4.5, End: 7.0, Speaker: transcript.SpeakerController, Text: "united four twenty two, runway two eight left, cleared for takeoff"},
	}
}

const validFatigueReply = `{
	"score": 72,
	"severity": "high",
	"indicators": [{"type": "slowed_response", "evidence": "latency grew across the shift"}],
	"requires_attention": true,
	"summary": "Response times degraded noticeably in the final two hours."
}`

const validSafetyReply = `{
	"score": 35,
	"issues_found": [{"type": "readback_error", "severity": "medium", "timestamp": "4.5s", "evidence": "partial readback", "concern": "runway assignment not confirmed"}],
	"requires_immediate_review": false,
	"summary": "One readback irregularity, otherwise standard phraseology."
}`

const validSummaryReply = `{
	"executive_summary": "Controller showed moderate fatigue with one safety irregularity.",
	"key_findings": ["response latency degraded", "one readback error"],
	"timeline": [{"timestamp": "4.5s", "type": "safety", "description": "partial readback"}],
	"recommendations": [{"priority": 1, "action": "schedule rest before next shift", "rationale": "fatigue indicators present"}],
	"priority_level": "high"
}`

func TestAnalyzeFatigue(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{text: validFatigueReply}}}
	inv := newTestInvoker(t, backend)

	metrics := transcript.ComputedMetrics{
		AvgResponseSeconds: 3.6,
		MaxResponseSeconds: 5.2,
		MinResponseSeconds: 2.0,
		HesitationCount:    4,
	}
	result, err := inv.AnalyzeFatigue(context.Background(), testMetadata(), testEntries(), metrics)
	if err != nil {
		t.Fatalf("AnalyzeFatigue failed: %v", err)
	}

	if result.Score != 72 {
		t.Errorf("expected score 72, got %d", result.Score)
	}
	if result.Severity != SeverityHigh {
		t.Errorf("expected severity high, got %q", result.Severity)
	}
	if !result.RequiresAttention {
		t.Error("expected requires_attention to be true")
	}
	if result.Metrics != metrics {
		t.Errorf("expected computed metrics attached to result, got %+v", result.Metrics)
	}
	if backend.callCount() != 1 {
		t.Errorf("expected 1 backend call, got %d", backend.callCount())
	}
}

func TestAnalyzeFatigueRetriesMalformedReply(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{
		{text: "I looked at the transcript and the controller seems tired."},
		{text: validFatigueReply},
	}}
	inv := newTestInvoker(t, backend)

	result, err := inv.AnalyzeFatigue(context.Background(), testMetadata(), testEntries(), transcript.ComputedMetrics{})
	if err != nil {
		t.Fatalf("expected retry to recover, got error: %v", err)
	}
	if result.Score != 72 {
		t.Errorf("expected score 72, got %d", result.Score)
	}

	if backend.callCount() != 2 {
		t.Fatalf("expected 2 backend calls, got %d", backend.callCount())
	}
	if strings.Contains(backend.prompt(0), "could not be parsed") {
		t.Error("first prompt should not carry the clarifier")
	}
	if !strings.Contains(backend.prompt(1), "could not be parsed") {
		t.Error("retry prompt should carry the clarifier")
	}
}

func TestAnalyzeFatigueFailsAfterSecondBadReply(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{
		{text: "not json"},
		{text: "still not json"},
	}}
	inv := newTestInvoker(t, backend)

	_, err := inv.AnalyzeFatigue(context.Background(), testMetadata(), testEntries(), transcript.ComputedMetrics{})
	if err == nil {
		t.Fatal("expected error after two malformed replies")
	}
	if backend.callCount() != 2 {
		t.Errorf("expected exactly 2 backend calls, got %d", backend.callCount())
	}
}

func TestAnalyzeFatigueTimeoutRetriedWithoutClarifier(t *testing.T) {
	timeoutErr := errors.New("deadline exceeded")
	backend := &scriptedBackend{replies: []scriptedReply{
		{err: errors.Join(llm.ErrTimeout, timeoutErr)},
		{text: validFatigueReply},
	}}
	inv := newTestInvoker(t, backend)

	_, err := inv.AnalyzeFatigue(context.Background(), testMetadata(), testEntries(), transcript.ComputedMetrics{})
	if err != nil {
		t.Fatalf("expected timeout retry to recover, got error: %v", err)
	}

	if backend.callCount() != 2 {
		t.Fatalf("expected 2 backend calls, got %d", backend.callCount())
	}
	if strings.Contains(backend.prompt(1), "could not be parsed") {
		t.Error("timeout retry should resend the prompt unchanged, without the clarifier")
	}
}

func TestAnalyzeFatigueTimeoutTwiceIsTerminal(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{
		{err: llm.ErrTimeout},
		{err: llm.ErrTimeout},
	}}
	inv := newTestInvoker(t, backend)

	_, err := inv.AnalyzeFatigue(context.Background(), testMetadata(), testEntries(), transcript.ComputedMetrics{})
	if err == nil {
		t.Fatal("expected error after two timeouts")
	}
	if !errors.Is(err, llm.ErrTimeout) {
		t.Errorf("expected error to wrap the timeout, got: %v", err)
	}
}

func TestAnalyzeFatigueBackendErrorIsTerminal(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{
		{err: errors.New("401 unauthorized")},
	}}
	inv := newTestInvoker(t, backend)

	_, err := inv.AnalyzeFatigue(context.Background(), testMetadata(), testEntries(), transcript.ComputedMetrics{})
	if err == nil {
		t.Fatal("expected error from backend failure")
	}
	if backend.callCount() != 1 {
		t.Errorf("non-timeout backend errors must not be retried, got %d calls", backend.callCount())
	}
}

func TestAnalyzeFatigueMissingKeyRetried(t *testing.T) {
	// requires_attention absent entirely, which decoding alone cannot
	// distinguish from an explicit false
	missingKey := `{"score": 20, "severity": "low", "indicators": [], "summary": "fine"}`
	backend := &scriptedBackend{replies: []scriptedReply{
		{text: missingKey},
		{text: validFatigueReply},
	}}
	inv := newTestInvoker(t, backend)

	result, err := inv.AnalyzeFatigue(context.Background(), testMetadata(), testEntries(), transcript.ComputedMetrics{})
	if err != nil {
		t.Fatalf("expected retry to recover, got error: %v", err)
	}
	if !result.RequiresAttention {
		t.Error("expected result from the second, complete reply")
	}
	if !strings.Contains(backend.prompt(1), "could not be parsed") {
		t.Error("retry after missing key should carry the clarifier")
	}
}

func TestAnalyzeFatigueFencedReply(t *testing.T) {
	fenced := "Here is my analysis:\n```json\n" + validFatigueReply + "\n```\nLet me know if you need more."
	backend := &scriptedBackend{replies: []scriptedReply{{text: fenced}}}
	inv := newTestInvoker(t, backend)

	result, err := inv.AnalyzeFatigue(context.Background(), testMetadata(), testEntries(), transcript.ComputedMetrics{})
	if err != nil {
		t.Fatalf("AnalyzeFatigue failed on fenced reply: %v", err)
	}
	if result.Score != 72 {
		t.Errorf("expected score 72, got %d", result.Score)
	}
	if backend.callCount() != 1 {
		t.Errorf("fenced reply should parse on the first attempt, got %d calls", backend.callCount())
	}
}

func TestAnalyzeSafety(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{text: validSafetyReply}}}
	inv := newTestInvoker(t, backend)

	result, err := inv.AnalyzeSafety(context.Background(), testMetadata(), testEntries())
	if err != nil {
		t.Fatalf("AnalyzeSafety failed: %v", err)
	}

	if result.Score != 35 {
		t.Errorf("expected score 35, got %d", result.Score)
	}
	if len(result.IssuesFound) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(result.IssuesFound))
	}
	if result.IssuesFound[0].Type != "readback_error" {
		t.Errorf("unexpected issue type %q", result.IssuesFound[0].Type)
	}
	if result.RequiresImmediateReview {
		t.Error("expected requires_immediate_review to be false")
	}
}

func TestAnalyzeSafetyRejectsInvalidSeverity(t *testing.T) {
	badSeverity := `{
		"score": 35,
		"issues_found": [{"type": "readback_error", "severity": "catastrophic", "timestamp": "4.5s", "evidence": "x", "concern": "y"}],
		"requires_immediate_review": false,
		"summary": "one issue"
	}`
	backend := &scriptedBackend{replies: []scriptedReply{
		{text: badSeverity},
		{text: badSeverity},
	}}
	inv := newTestInvoker(t, backend)

	_, err := inv.AnalyzeSafety(context.Background(), testMetadata(), testEntries())
	if err == nil {
		t.Fatal("expected validation error for unknown severity")
	}
	if !strings.Contains(err.Error(), "severity") {
		t.Errorf("expected severity in error, got: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{text: validSummaryReply}}}
	inv := newTestInvoker(t, backend)

	fatigue := &FatigueResult{Score: 72, Severity: SeverityHigh, RequiresAttention: true, Summary: "tired"}
	safety := &SafetyResult{Score: 35, Summary: "one issue"}

	result, err := inv.Summarize(context.Background(), testMetadata(), fatigue, safety)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if result.PriorityLevel != PriorityHigh {
		t.Errorf("expected priority_level high, got %q", result.PriorityLevel)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Priority != 1 {
		t.Errorf("unexpected recommendations: %+v", result.Recommendations)
	}

	prompt := backend.prompt(0)
	if !strings.Contains(prompt, "72") || !strings.Contains(prompt, "35") {
		t.Error("summarizer prompt should carry both upstream scores")
	}
}

func TestSummarizeRejectsInvalidPriorityLevel(t *testing.T) {
	badPriority := strings.Replace(validSummaryReply, `"priority_level": "high"`, `"priority_level": "asap"`, 1)
	backend := &scriptedBackend{replies: []scriptedReply{
		{text: badPriority},
		{text: badPriority},
	}}
	inv := newTestInvoker(t, backend)

	fatigue := &FatigueResult{Score: 10, Severity: SeverityLow, Summary: "fine"}
	safety := &SafetyResult{Score: 5, Summary: "fine"}

	_, err := inv.Summarize(context.Background(), testMetadata(), fatigue, safety)
	if err == nil {
		t.Fatal("expected validation error for unknown priority_level")
	}
	if !strings.Contains(err.Error(), "priority_level") {
		t.Errorf("expected priority_level in error, got: %v", err)
	}
}

func TestSampleEntriesSpansTranscript(t *testing.T) {
	entries := make([]transcript.Entry, 100)
	for i := range entries {
		entries[i] = transcript.Entry{Start: float64(i), Speaker: transcript.SpeakerController, Text: "transmission"}
	}

	sampled := sampleEntries(entries, 10)
	if len(sampled) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(sampled))
	}
	if sampled[0].Start != 0 {
		t.Errorf("expected first sample at start, got %.1f", sampled[0].Start)
	}
	if sampled[9].Start != 90 {
		t.Errorf("expected samples spaced across the transcript, last at %.1f", sampled[9].Start)
	}
}

func TestSampleEntriesShortTranscriptUnchanged(t *testing.T) {
	entries := testEntries()
	sampled := sampleEntries(entries, 10)
	if len(sampled) != len(entries) {
		t.Errorf("short transcript should pass through, got %d entries", len(sampled))
	}
}

func TestFormatEntriesEmpty(t *testing.T) {
	if got := formatEntries(nil); got != "(no transmissions)" {
		t.Errorf("unexpected empty-transcript rendering: %q", got)
	}
}

func TestFormatEntries(t *testing.T) {
	got := formatEntries(testEntries())
	if !strings.Contains(got, "[0.0s] PILOT:") {
		t.Errorf("expected speaker-tagged line, got %q", got)
	}
	if !strings.Contains(got, "[4.5s] CONTROLLER:") {
		t.Errorf("expected controller line with timestamp, got %q", got)
	}
}
