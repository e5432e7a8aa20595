package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Routine is a named playback command run on a cron schedule or via webhook.
type Routine struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule,omitempty"`
	Screen   string   `json:"screen,omitempty"`
	Command  string   `json:"command"`
	Args     []string `json:"args,omitempty"`
	Enabled  bool     `json:"enabled"`
	// Notify names where the outcome is reported, e.g. "telegram:12345".
	Notify   string   `json:"notify,omitempty"`
}

// RoutineStore is a JSON-file-backed store for routines.
type RoutineStore struct {
	path string
	mu   sync.RWMutex
}

// NewRoutineStore creates a new file-backed RoutineStore at the given file path.
func NewRoutineStore(path string) *RoutineStore {
	return &RoutineStore{path: path}
}

// Path returns the file path used by this store.
func (s *RoutineStore) Path() string {
	return s.path
}

// List returns all routines. Returns an empty slice if the file doesn't exist.
func (s *RoutineStore) List() ([]*Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routines, err := s.load()
	if err != nil {
		return nil, err
	}
	if routines == nil {
		return []*Routine{}, nil
	}
	return routines, nil
}

// Get finds a routine by name.
func (s *RoutineStore) Get(name string) (*Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routines, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range routines {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("routine not found: %s", name)
}

// Add appends a routine. Names are unique.
func (s *RoutineStore) Add(routine *Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	routines, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range routines {
		if existing.Name == routine.Name {
			return fmt.Errorf("routine already exists: %s", routine.Name)
		}
	}
	return s.save(append(routines, routine))
}

// Remove deletes a routine by name.
func (s *RoutineStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	routines, err := s.load()
	if err != nil {
		return err
	}
	for i, r := range routines {
		if r.Name == name {
			routines = append(routines[:i], routines[i+1:]...)
			return s.save(routines)
		}
	}
	return fmt.Errorf("routine not found: %s", name)
}

// SetEnabled toggles the enabled flag for a routine.
func (s *RoutineStore) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	routines, err := s.load()
	if err != nil {
		return err
	}
	for _, r := range routines {
		if r.Name == name {
			r.Enabled = enabled
			return s.save(routines)
		}
	}
	return fmt.Errorf("routine not found: %s", name)
}

func (s *RoutineStore) load() ([]*Routine, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read routines file: %w", err)
	}

	var routines []*Routine
	if err := json.Unmarshal(data, &routines); err != nil {
		return nil, fmt.Errorf("unmarshal routines: %w", err)
	}
	return routines, nil
}

func (s *RoutineStore) save(routines []*Routine) error {
	data, err := json.MarshalIndent(routines, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal routines: %w", err)
	}
	return writeFileAtomic(s.path, data, 0o644)
}
