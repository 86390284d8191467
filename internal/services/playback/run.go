package playback

import (
	"context"
	"sync"
	"time"

	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
)

// RunState is the lifecycle state of a run.
type RunState string

const (
	StatePending   RunState = "PENDING"
	StateRunning   RunState = "RUNNING"
	StateCompleted RunState = "COMPLETED"
	StateCancelled RunState = "CANCELLED"
	StateFailed    RunState = "FAILED"
)

// IsTerminal reports whether the run has finished.
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

func stateFor(status pattern.OutcomeStatus) RunState {
	switch status {
	case pattern.OutcomeCompleted:
		return StateCompleted
	case pattern.OutcomeCancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}

// RunStatus is a point-in-time snapshot of a run, safe to hand to other goroutines.
type RunStatus struct {
	RunID           string                 `json:"runId"`
	DeviceID        string                 `json:"deviceId"`
	State           RunState               `json:"state"`
	PatternType     pattern.PatternType    `json:"pattern"`
	Transition      pattern.TransitionType `json:"transition"`
	RepeatCount     int                    `json:"repeatCount"`
	StepCount       int                    `json:"colorCount"`
	Cycle           int                    `json:"cycle"`
	Position        int                    `json:"position"`
	CurrentColor    string                 `json:"currentColor,omitempty"`
	CyclesCompleted int                    `json:"cyclesCompleted"`
	Error           string                 `json:"error,omitempty"`
	StartedAt       time.Time              `json:"startedAt"`
	FinishedAt      *time.Time             `json:"finishedAt,omitempty"`
	LastUpdated     time.Time              `json:"lastUpdated"`
}

// Run is the handle for one submitted pattern request.
type Run struct {
	ID       string
	DeviceID string
	Request  pattern.PatternRequest

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	status   RunStatus
	outcome  pattern.RunOutcome
	finished bool
}

func newRun(parent context.Context, id string, req pattern.PatternRequest) *Run {
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()
	return &Run{
		ID:       id,
		DeviceID: req.DeviceID,
		Request:  req,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		status: RunStatus{
			RunID:       id,
			DeviceID:    req.DeviceID,
			State:       StatePending,
			PatternType: req.Settings.Type,
			Transition:  req.Settings.Transition,
			RepeatCount: req.Settings.RepeatCount,
			StepCount:   len(req.Steps),
			StartedAt:   now,
			LastUpdated: now,
		},
	}
}

// Cancel requests the run to stop at its next check point. It is safe to call
// more than once and after the run has finished.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed once the run has finished and its outcome is recorded.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (pattern.RunOutcome, error) {
	select {
	case <-r.done:
		outcome, _ := r.Outcome()
		return outcome, nil
	case <-ctx.Done():
		return pattern.RunOutcome{}, ctx.Err()
	}
}

// Outcome returns the run result and whether the run has finished.
func (r *Run) Outcome() (pattern.RunOutcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.outcome, r.finished
}

// Status returns a snapshot of the run's current status.
func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status := r.status
	if r.status.FinishedAt != nil {
		finishedAt := *r.status.FinishedAt
		status.FinishedAt = &finishedAt
	}
	return status
}

func (r *Run) markRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.State = StateRunning
	r.status.LastUpdated = time.Now()
}

func (r *Run) recordProgress(p pattern.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Cycle = p.Cycle
	r.status.Position = p.Position
	r.status.CurrentColor = p.Step.DisplayHex()
	r.status.CyclesCompleted = p.Cycle
	r.status.LastUpdated = time.Now()
}

func (r *Run) finish(outcome pattern.RunOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.outcome = outcome
	r.finished = true
	r.status.State = stateFor(outcome.Status)
	r.status.CyclesCompleted = outcome.CyclesCompleted
	if outcome.Err != nil {
		r.status.Error = outcome.Err.Error()
	}
	r.status.FinishedAt = &now
	r.status.LastUpdated = now
}
