// Package scheduler starts stored pattern requests on cron schedules.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bbernstein/lacylights-bulbs/internal/database/models"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
	"github.com/bbernstein/lacylights-bulbs/internal/services/playback"
)

var (
	// ErrInvalidSchedule is returned for a blank name or an unparseable cron spec.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrScheduleNotFound is returned when a schedule ID is unknown.
	ErrScheduleNotFound = errors.New("schedule not found")
)

// Store persists schedules. *repositories.ScheduleRepository satisfies it.
type Store interface {
	FindAll(ctx context.Context) ([]models.Schedule, error)
	FindEnabled(ctx context.Context) ([]models.Schedule, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

// Submitter starts pattern runs. *playback.Service satisfies it.
type Submitter interface {
	Submit(req pattern.PatternRequest) (*playback.Run, error)
}

// Entry is a stored schedule with its next firing time.
type Entry struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Spec      string          `json:"spec"`
	DeviceID  string          `json:"deviceId"`
	Enabled   bool            `json:"enabled"`
	Request   json.RawMessage `json:"request"`
	Next      *time.Time      `json:"next,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Scheduler manages the cron jobs for stored schedules.
type Scheduler struct {
	cron      *cron.Cron
	store     Store
	submitter Submitter

	mu      sync.RWMutex
	entries map[string]cron.EntryID

	onChange func()
}

// New creates a scheduler. Jobs do not fire until Start is called.
func New(store Store, submitter Submitter, opts ...cron.Option) *Scheduler {
	return &Scheduler{
		cron:      cron.New(opts...),
		store:     store,
		submitter: submitter,
		entries:   make(map[string]cron.EntryID),
	}
}

// SetChangeCallback sets a callback fired after a schedule is added or removed.
func (s *Scheduler) SetChangeCallback(callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = callback
}

// Start registers every enabled schedule and starts the cron ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	schedules, err := s.store.FindEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	loaded := 0
	for _, schedule := range schedules {
		if err := s.register(schedule); err != nil {
			log.Printf("Warning: skipping schedule %s (%s): %v", schedule.ID, schedule.Name, err)
			continue
		}
		loaded++
	}

	s.cron.Start()
	log.Printf("⏰ Scheduler started with %d schedules", loaded)
	return nil
}

// Stop halts the ticker and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("Scheduler stopped")
}

// Add validates, stores and registers a new schedule.
func (s *Scheduler) Add(ctx context.Context, name, spec string, req pattern.PatternRequest) (*Entry, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if err := pattern.Validate(req); err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pattern request: %w", err)
	}

	schedule := &models.Schedule{
		Name:     name,
		Spec:     spec,
		DeviceID: req.DeviceID,
		Request:  string(data),
		Enabled:  true,
	}
	if err := s.store.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	if err := s.register(*schedule); err != nil {
		return nil, err
	}

	log.Printf("Added schedule %s (%s): %s on %s", schedule.ID, name, spec, req.DeviceID)
	s.emitChange()

	entry := s.entryFor(*schedule)
	return &entry, nil
}

// Remove unregisters and deletes a schedule.
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	schedule, err := s.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}
	if schedule == nil {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}

	s.mu.Lock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	log.Printf("Removed schedule %s (%s)", id, schedule.Name)
	s.emitChange()
	return nil
}

// List returns every stored schedule.
func (s *Scheduler) List(ctx context.Context) ([]Entry, error) {
	schedules, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}

	entries := make([]Entry, 0, len(schedules))
	for _, schedule := range schedules {
		entries = append(entries, s.entryFor(schedule))
	}
	return entries, nil
}

func (s *Scheduler) register(schedule models.Schedule) error {
	req, err := pattern.DecodeRequestBytes([]byte(schedule.Request))
	if err != nil {
		return err
	}

	id := schedule.ID
	entryID, err := s.cron.AddFunc(schedule.Spec, func() { s.fire(id, req) })
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	s.mu.Lock()
	s.entries[id] = entryID
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) fire(id string, req pattern.PatternRequest) {
	run, err := s.submitter.Submit(req)
	if err != nil {
		log.Printf("Scheduled pattern %s on %s not started: %v", id, req.DeviceID, err)
		return
	}
	log.Printf("Scheduled pattern %s started run %s on %s", id, run.ID, req.DeviceID)
}

func (s *Scheduler) entryFor(schedule models.Schedule) Entry {
	entry := Entry{
		ID:        schedule.ID,
		Name:      schedule.Name,
		Spec:      schedule.Spec,
		DeviceID:  schedule.DeviceID,
		Enabled:   schedule.Enabled,
		Request:   json.RawMessage(schedule.Request),
		CreatedAt: schedule.CreatedAt,
	}
	if !json.Valid(entry.Request) {
		entry.Request = nil
	}

	s.mu.RLock()
	entryID, ok := s.entries[schedule.ID]
	s.mu.RUnlock()
	if ok {
		if next := s.cron.Entry(entryID).Next; !next.IsZero() {
			entry.Next = &next
		}
	}
	return entry
}

func (s *Scheduler) emitChange() {
	s.mu.RLock()
	callback := s.onChange
	s.mu.RUnlock()
	if callback != nil {
		callback()
	}
}
