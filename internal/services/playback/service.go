// Package playback runs color patterns in the background and tracks them per device.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lucsky/cuid"

	"github.com/bbernstein/lacylights-bulbs/internal/database/models"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
)

var (
	// ErrDeviceBusy is returned by Submit under PolicyReject when the device already has an active run.
	ErrDeviceBusy = errors.New("device already has an active pattern run")
	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("pattern run not found")
)

// maxFinishedRuns bounds how many finished runs stay available through GetRun.
const maxFinishedRuns = 100

// DevicePolicy decides what happens when a run is submitted for a device that is already busy.
type DevicePolicy string

const (
	// PolicyReplace cancels the active run and starts the new one once the old run has stopped.
	PolicyReplace DevicePolicy = "replace"
	// PolicyReject refuses the new run with ErrDeviceBusy.
	PolicyReject DevicePolicy = "reject"
)

// ParseDevicePolicy parses "replace" or "reject" (case-insensitive).
func ParseDevicePolicy(s string) (DevicePolicy, error) {
	switch DevicePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReplace, "":
		return PolicyReplace, nil
	case PolicyReject:
		return PolicyReject, nil
	}
	return "", fmt.Errorf("unknown device run policy %q", s)
}

// Runner executes pattern requests. *pattern.Sequencer satisfies it.
type Runner interface {
	Execute(ctx context.Context, req pattern.PatternRequest, opts ...pattern.RunOption) pattern.RunOutcome
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req pattern.PatternRequest, opts ...pattern.RunOption) pattern.RunOutcome

// Execute calls f.
func (f RunnerFunc) Execute(ctx context.Context, req pattern.PatternRequest, opts ...pattern.RunOption) pattern.RunOutcome {
	return f(ctx, req, opts...)
}

// RunStore persists run history. *repositories.PatternRunRepository satisfies it.
type RunStore interface {
	Create(ctx context.Context, run *models.PatternRun) error
	Finish(ctx context.Context, id, status, errMsg string, cyclesCompleted int, finishedAt time.Time) error
}

// Service owns every background pattern run.
type Service struct {
	mu sync.RWMutex

	runner Runner
	store  RunStore
	policy DevicePolicy

	ctx     context.Context
	stopAll context.CancelFunc
	wg      sync.WaitGroup

	// Active run per device ID
	active map[string]*Run
	// All known runs by run ID, active and recently finished
	runs     map[string]*Run
	finished []string

	// Callback for status updates (optional)
	onUpdate func(status *RunStatus)
}

// NewService creates a new playback service. store may be nil to disable history.
func NewService(runner Runner, store RunStore, policy DevicePolicy) *Service {
	if policy == "" {
		policy = PolicyReplace
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner:  runner,
		store:   store,
		policy:  policy,
		ctx:     ctx,
		stopAll: cancel,
		active:  make(map[string]*Run),
		runs:    make(map[string]*Run),
	}
}

// SetUpdateCallback sets the callback fired on every run state or progress change.
func (s *Service) SetUpdateCallback(callback func(status *RunStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = callback
}

// Policy returns the device policy in effect.
func (s *Service) Policy() DevicePolicy {
	return s.policy
}

// Submit validates req and starts it in the background. It returns as soon as
// the run is registered; use the returned handle to wait for or cancel it.
func (s *Service) Submit(req pattern.PatternRequest) (*Run, error) {
	if err := pattern.Validate(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	previous := s.active[req.DeviceID]
	if previous != nil {
		if s.policy == PolicyReject {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s (run %s)", ErrDeviceBusy, req.DeviceID, previous.ID)
		}
		previous.Cancel()
	}

	run := newRun(s.ctx, cuid.New(), req)
	s.active[req.DeviceID] = run
	s.runs[run.ID] = run
	s.wg.Add(1)
	s.mu.Unlock()

	if previous != nil {
		log.Printf("Replacing pattern run %s on %s with %s", previous.ID, req.DeviceID, run.ID)
	}

	s.recordStart(run)
	s.emitUpdate(run)

	go s.execute(run, previous)

	return run, nil
}

func (s *Service) execute(run *Run, previous *Run) {
	defer s.wg.Done()
	defer run.cancel()

	// Calls for one device never interleave: the replaced run must stop first.
	if previous != nil {
		<-previous.Done()
	}

	var outcome pattern.RunOutcome
	if run.ctx.Err() != nil {
		outcome = pattern.RunOutcome{Status: pattern.OutcomeCancelled}
	} else {
		run.markRunning()
		s.emitUpdate(run)

		log.Printf("▶️  Pattern run %s started on %s (%s, %d colors, repeat %d)",
			run.ID, run.DeviceID, run.Request.Settings.Type, len(run.Request.Steps), run.Request.Settings.RepeatCount)

		outcome = s.runner.Execute(run.ctx, run.Request,
			pattern.WithRunID(run.ID),
			pattern.WithProgress(func(p pattern.Progress) {
				run.recordProgress(p)
				s.emitUpdate(run)
			}),
		)
	}

	run.finish(outcome)

	s.mu.Lock()
	if s.active[run.DeviceID] == run {
		delete(s.active, run.DeviceID)
	}
	s.retainFinished(run.ID)
	s.mu.Unlock()

	switch outcome.Status {
	case pattern.OutcomeFailed:
		log.Printf("❌ Pattern run %s on %s failed: %v", run.ID, run.DeviceID, outcome.Err)
	default:
		log.Printf("⏹️  Pattern run %s on %s %s after %d cycles",
			run.ID, run.DeviceID, strings.ToLower(string(outcome.Status)), outcome.CyclesCompleted)
	}

	s.recordFinish(run)
	s.emitUpdate(run)
	close(run.done)
}

// retainFinished keeps the most recent finished runs addressable. Caller holds s.mu.
func (s *Service) retainFinished(id string) {
	s.finished = append(s.finished, id)
	for len(s.finished) > maxFinishedRuns {
		delete(s.runs, s.finished[0])
		s.finished = s.finished[1:]
	}
}

func (s *Service) recordStart(run *Run) {
	if s.store == nil {
		return
	}
	status := run.Status()
	record := &models.PatternRun{
		ID:          run.ID,
		DeviceID:    run.DeviceID,
		PatternType: string(status.PatternType),
		Transition:  string(status.Transition),
		RepeatCount: status.RepeatCount,
		StepCount:   status.StepCount,
		Status:      string(status.State),
		StartedAt:   status.StartedAt,
	}
	if err := s.store.Create(context.Background(), record); err != nil {
		log.Printf("Warning: failed to record pattern run %s: %v", run.ID, err)
	}
}

func (s *Service) recordFinish(run *Run) {
	if s.store == nil {
		return
	}
	status := run.Status()
	finishedAt := time.Now()
	if status.FinishedAt != nil {
		finishedAt = *status.FinishedAt
	}
	if err := s.store.Finish(context.Background(), run.ID, string(status.State), status.Error, status.CyclesCompleted, finishedAt); err != nil {
		log.Printf("Warning: failed to record result of pattern run %s: %v", run.ID, err)
	}
}

// GetRun returns a run by ID, or nil if it is unknown or no longer retained.
func (s *Service) GetRun(id string) *Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs[id]
}

// ActiveRun returns the active run for a device, or nil.
func (s *Service) ActiveRun(deviceID string) *Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[deviceID]
}

// ActiveRuns returns status snapshots of every active run, oldest first.
func (s *Service) ActiveRuns() []RunStatus {
	s.mu.RLock()
	statuses := make([]RunStatus, 0, len(s.active))
	for _, run := range s.active {
		statuses = append(statuses, run.Status())
	}
	s.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].StartedAt.Before(statuses[j].StartedAt)
	})
	return statuses
}

// CancelRun requests cancellation of a run by ID.
func (s *Service) CancelRun(id string) error {
	run := s.GetRun(id)
	if run == nil {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run.Cancel()
	return nil
}

// CancelDevice cancels the device's active run. It reports whether one was found.
func (s *Service) CancelDevice(deviceID string) bool {
	run := s.ActiveRun(deviceID)
	if run == nil {
		return false
	}
	run.Cancel()
	return true
}

// emitUpdate sends a status snapshot to the update callback.
func (s *Service) emitUpdate(run *Run) {
	s.mu.RLock()
	callback := s.onUpdate
	s.mu.RUnlock()

	if callback != nil {
		status := run.Status()
		callback(&status)
	}
}

// Cleanup cancels every run and waits for them to stop.
func (s *Service) Cleanup() {
	s.stopAll()
	s.wg.Wait()
}
