package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Pipeline phases, in execution order. Each phase is atomic from the state
// machine's point of view: it either fully completes or is recorded failed.
const (
	PhaseAcquire    = "acquire"
	PhaseTranscribe = "transcribe"
	PhaseAnalyze    = "analyze"
)

// PhaseOrder is the fixed phase sequence for every work item.
var PhaseOrder = []string{PhaseAcquire, PhaseTranscribe, PhaseAnalyze}

// PhaseFunc executes one phase. prior holds the artifacts of all earlier
// phases (recorded or just produced), keyed by phase name.
type PhaseFunc func(ctx context.Context, item WorkItem, prior map[string]Artifacts) (Artifacts, error)

// RunOptions control skip and retry behavior for a pipeline run.
type RunOptions struct {
	Force       bool   // re-execute phases already marked complete
	RetryFailed bool   // attempt phases previously marked failed
	FromPhase   string // start at this phase; earlier phases must be complete
}

// ItemStatus is the outcome of processing one work item.
type ItemStatus string

const (
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
	ItemSkipped   ItemStatus = "skipped_previous_failure"
)

// ItemResult reports the outcome of one work item run.
type ItemResult struct {
	Item        WorkItem
	Status      ItemStatus
	FailedPhase string
	Err         error
	Ran         []string
	Skipped     []string
	Elapsed     time.Duration
}

// Orchestrator drives the fixed phase sequence for work items, consulting
// the state store before each phase and recording the outcome after it.
// Items and phases run strictly sequentially: the generator is a single
// exclusive resource.
type Orchestrator struct {
	store  *StateStore
	phases map[string]PhaseFunc
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given store.
func NewOrchestrator(store *StateStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Orchestrator{
		store:  store,
		phases: make(map[string]PhaseFunc),
		logger: logger,
	}
}

// RegisterPhase installs the handler for a named phase.
func (o *Orchestrator) RegisterPhase(name string, fn PhaseFunc) {
	o.phases[name] = fn
}

// Run processes one work item through all phases. Phase failures are
// recorded in the state store and returned in the result; they are never
// raised to the caller as errors.
func (o *Orchestrator) Run(ctx context.Context, item WorkItem, opts RunOptions) ItemResult {
	start := time.Now()
	runID := uuid.NewString()
	logger := o.logger.With("item", item.ID, "run", runID)

	result := ItemResult{Item: item}
	fail := func(phase string, err error) ItemResult {
		result.Status = ItemFailed
		result.FailedPhase = phase
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}

	if err := o.store.Touch(ctx, item); err != nil {
		return fail("", err)
	}
	state, err := o.store.Get(ctx, item.ID)
	if err != nil {
		return fail("", err)
	}

	startIdx := 0
	if opts.FromPhase != "" {
		startIdx = slices.Index(PhaseOrder, opts.FromPhase)
		if startIdx < 0 {
			return fail("", fmt.Errorf("unknown phase %q", opts.FromPhase))
		}
		for _, earlier := range PhaseOrder[:startIdx] {
			if state.Phase(earlier).Status != PhaseComplete {
				return fail("", fmt.Errorf("cannot start at %q: phase %q has not completed", opts.FromPhase, earlier))
			}
		}
	}

	prior := make(map[string]Artifacts)
	for _, phase := range PhaseOrder[:startIdx] {
		prior[phase] = state.Phase(phase).Artifacts
	}

	for _, phase := range PhaseOrder[startIdx:] {
		rec := state.Phase(phase)

		if rec.Status == PhaseComplete && !opts.Force {
			logger.Debug("phase already complete, skipping", "phase", phase)
			prior[phase] = rec.Artifacts
			result.Skipped = append(result.Skipped, phase)
			continue
		}
		if rec.Status == PhaseFailed && !opts.RetryFailed {
			logger.Info("skipping item: phase failed in a previous run",
				"phase", phase, "error", rec.Error)
			result.Status = ItemSkipped
			result.FailedPhase = phase
			result.Err = ErrSkippedPreviousFailure
			result.Elapsed = time.Since(start)
			return result
		}

		fn, ok := o.phases[phase]
		if !ok {
			return fail(phase, fmt.Errorf("no handler registered for phase %q", phase))
		}

		logger.Info("phase started", "phase", phase)
		phaseStart := time.Now()
		artifacts, err := fn(ctx, item, prior)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// Interrupted, not failed: leave the phase unmarked so the
				// next run resumes here.
				logger.Debug("phase interrupted", "phase", phase)
				return fail(phase, err)
			}
			logger.Error("phase failed", "phase", phase, "error", err,
				"phase_duration", time.Since(phaseStart))
			if storeErr := o.store.SetPhase(ctx, item.ID, phase, PhaseFailed, nil, err.Error()); storeErr != nil {
				logger.Error("failed to record phase failure", "phase", phase, "error", storeErr)
			}
			return fail(phase, err)
		}

		if err := o.store.SetPhase(ctx, item.ID, phase, PhaseComplete, artifacts, ""); err != nil {
			return fail(phase, fmt.Errorf("persist phase result: %w", err))
		}
		logger.Info("phase completed", "phase", phase,
			"phase_duration", time.Since(phaseStart))
		prior[phase] = artifacts
		result.Ran = append(result.Ran, phase)
	}

	result.Status = ItemCompleted
	result.Elapsed = time.Since(start)
	return result
}

// RunBatch processes items strictly sequentially. A failure in one item
// never stops the batch; cancellation is honored between items.
func (o *Orchestrator) RunBatch(ctx context.Context, items []WorkItem, opts RunOptions) []ItemResult {
	results := make([]ItemResult, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			results = append(results, ItemResult{Item: item, Status: ItemFailed, Err: err})
			continue
		}
		results = append(results, o.Run(ctx, item, opts))
	}
	return results
}
