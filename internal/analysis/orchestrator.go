// Package analysis sequences the shift analysis pipeline: metric
// computation, the fatigue/safety fan-out, the summarizer fan-in, and the
// final report write. It owns the per-shift run guard and the failure
// bookkeeping.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skysift/shiftwatch/internal/agents"
	"github.com/skysift/shiftwatch/internal/transcript"
	"github.com/skysift/shiftwatch/pkg/logger"
)

// Orchestrator runs at most one analysis per shift at a time. Runs for
// different shifts proceed independently; backend throughput is bounded
// inside the agent invoker, not here.
type Orchestrator struct {
	ctx         context.Context
	cancel      context.CancelFunc
	transcripts TranscriptSource
	metadata    MetadataSource
	store       ReportStore
	agents      AgentRunner
	logger      *logger.Logger

	mu   sync.Mutex
	runs map[string]*RunStatus
	wg   sync.WaitGroup
}

// NewOrchestrator creates a new pipeline orchestrator. Background runs are
// children of ctx and are abandoned when it is cancelled.
func NewOrchestrator(
	ctx context.Context,
	transcripts TranscriptSource,
	metadata MetadataSource,
	store ReportStore,
	agentRunner AgentRunner,
	log *logger.Logger,
) *Orchestrator {
	runCtx, cancel := context.WithCancel(ctx)
	return &Orchestrator{
		ctx:         runCtx,
		cancel:      cancel,
		transcripts: transcripts,
		metadata:    metadata,
		store:       store,
		agents:      agentRunner,
		logger:      log.Named("orchestrator"),
		runs:        make(map[string]*RunStatus),
	}
}

// StartAnalysis attempts the Idle -> Running transition for the shift and,
// on success, launches the pipeline in the background. It returns false
// when a run for the same shift is already Running: the new request is
// rejected, not queued, and the existing run is unaffected.
func (o *Orchestrator) StartAnalysis(shiftID string) bool {
	o.mu.Lock()
	if st, ok := o.runs[shiftID]; ok && st.Phase == PhaseRunning {
		o.mu.Unlock()
		o.logger.Warn("Rejected concurrent analysis request",
			logger.String("shift_id", shiftID),
			logger.String("running_run_id", st.RunID))
		return false
	}
	status := &RunStatus{
		ShiftID:   shiftID,
		RunID:     uuid.NewString(),
		Phase:     PhaseRunning,
		StartedAt: time.Now().UTC(),
	}
	o.runs[shiftID] = status
	o.mu.Unlock()

	o.logger.Info("Starting shift analysis",
		logger.String("shift_id", shiftID),
		logger.String("run_id", status.RunID))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.finish(shiftID, o.analyze(o.ctx, shiftID))
	}()
	return true
}

// Status returns the most recent run status for the shift
func (o *Orchestrator) Status(shiftID string) (RunStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.runs[shiftID]
	if !ok {
		return RunStatus{ShiftID: shiftID, Phase: PhaseIdle}, false
	}
	return *st, true
}

// Stop cancels all in-flight runs and waits for them to wind down. Runs
// interrupted this way end Failed with the cancellation reason and their
// shifts become retryable; no partial report is written.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

// finish records the terminal phase and releases the run guard. The guard
// release and the phase transition are a single step under the lock, so a
// reader never observes a finished run still holding the guard.
func (o *Orchestrator) finish(shiftID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.runs[shiftID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	st.FinishedAt = &now
	if err != nil {
		st.Phase = PhaseFailed
		st.Reason = err.Error()
		o.logger.Error("Shift analysis failed",
			logger.String("shift_id", shiftID),
			logger.String("run_id", st.RunID),
			logger.Error(err))
		return
	}
	st.Phase = PhaseComplete
	o.logger.Info("Shift analysis complete",
		logger.String("shift_id", shiftID),
		logger.String("run_id", st.RunID),
		logger.Duration("duration", now.Sub(st.StartedAt)))
}

// analyze executes one full pipeline run. Any error leaves the store
// untouched.
func (o *Orchestrator) analyze(ctx context.Context, shiftID string) error {
	meta, err := o.metadata.FetchMetadata(ctx, shiftID)
	if err != nil {
		return fmt.Errorf("%w: metadata for shift %s: %v", ErrInputMissing, shiftID, err)
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("%w: invalid metadata for shift %s: %v", ErrInputMissing, shiftID, err)
	}

	entries, err := o.transcripts.FetchTranscript(ctx, shiftID)
	if err != nil {
		return fmt.Errorf("%w: transcript for shift %s: %v", ErrInputMissing, shiftID, err)
	}

	metrics := transcript.ComputeMetrics(entries)
	o.logger.Debug("Computed transcript metrics",
		logger.String("shift_id", shiftID),
		logger.Float64("avg_response_seconds", metrics.AvgResponseSeconds),
		logger.Int("hesitation_count", metrics.HesitationCount),
		logger.Int("entries", len(entries)))

	// Fatigue and safety run concurrently; the summarizer must not start
	// until both have a validated result. A failure on either side cancels
	// the sibling call.
	var fatigue *agents.FatigueResult
	var safety *agents.SafetyResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := o.agents.AnalyzeFatigue(gctx, meta, entries, metrics)
		if err != nil {
			return fmt.Errorf("fatigue agent: %w", err)
		}
		fatigue = r
		return nil
	})
	g.Go(func() error {
		r, err := o.agents.AnalyzeSafety(gctx, meta, entries)
		if err != nil {
			return fmt.Errorf("safety agent: %w", err)
		}
		safety = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	summary, err := o.agents.Summarize(ctx, meta, fatigue, safety)
	if err != nil {
		return fmt.Errorf("summarizer agent: %w", err)
	}

	report := &AnalysisReport{
		ShiftID:     shiftID,
		Metadata:    meta,
		Fatigue:     fatigue,
		Safety:      safety,
		Summary:     summary,
		GeneratedAt: time.Now().UTC(),
	}
	if err := o.store.Put(ctx, report); err != nil {
		return fmt.Errorf("failed to persist report for shift %s: %w", shiftID, err)
	}
	return nil
}
