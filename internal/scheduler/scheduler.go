package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/loungeremote/internal/state"
)

// Handler is the callback invoked when a routine fires.
type Handler func(routine *state.Routine)

// Scheduler evaluates cron expressions from the routine store and fires
// routines through a handler callback.
type Scheduler struct {
	store   *state.RoutineStore
	handler Handler

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether expr is a schedule the scheduler accepts.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// NextRun returns the first time after from that expr fires.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched.Next(from), nil
}

// New creates a new Scheduler backed by the given routine store. The handler
// is called each time a scheduled routine fires.
func New(store *state.RoutineStore, handler Handler) *Scheduler {
	return &Scheduler{
		store:   store,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads routines from the store, registers enabled routines that have
// a schedule as cron entries, and starts the cron ticker.
func (s *Scheduler) Start() error {
	routines, err := s.store.List()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, routine := range routines {
		if routine.Schedule == "" || !routine.Enabled {
			continue
		}

		r := routine
		id, err := s.cron.AddFunc(r.Schedule, func() {
			slog.Info("cron firing routine", "name", r.Name, "command", r.Command, "screen", r.Screen)
			s.handler(r)
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", r.Name, "schedule", r.Schedule, "error", err)
			continue
		}
		s.entries[r.Name] = id
		slog.Info("scheduled routine", "name", r.Name, "schedule", r.Schedule)
	}

	s.cron.Start()
	return nil
}

// Reload stops the existing cron, creates a new one, and calls Start() again.
func (s *Scheduler) Reload() error {
	s.mu.Lock()
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	s.entries = make(map[string]cron.EntryID)
	s.mu.Unlock()
	return s.Start()
}

// Next returns when the named routine fires next, or false if it is not
// scheduled.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Stop()
}
