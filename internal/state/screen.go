package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/loungeremote/pkg/lounge"
)

// Screen is a paired screen with its current lounge token.
type Screen struct {
	Name        string    `json:"name"`
	ScreenID    string    `json:"screen_id"`
	LoungeToken string    `json:"lounge_token"`
	PairedAt    time.Time `json:"paired_at"`
	RefreshedAt time.Time `json:"refreshed_at,omitempty"`
}

// Lounge converts s for use with lounge.NewClient.
func (s *Screen) Lounge() lounge.Screen {
	return lounge.Screen{Name: s.Name, ScreenID: s.ScreenID, LoungeToken: s.LoungeToken}
}

// ScreenStore is a JSON-file-backed store of paired screens. It implements
// lounge.TokenRefreshListener so refreshed tokens survive restarts.
type ScreenStore struct {
	path string
	mu   sync.RWMutex
}

var _ lounge.TokenRefreshListener = (*ScreenStore)(nil)

// NewScreenStore creates a store at the given file path.
func NewScreenStore(path string) *ScreenStore {
	return &ScreenStore{path: path}
}

// Path returns the file path used by this store.
func (s *ScreenStore) Path() string {
	return s.path
}

// List returns all screens, never nil.
func (s *ScreenStore) List() ([]*Screen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	screens, err := s.load()
	if err != nil {
		return nil, err
	}
	if screens == nil {
		return []*Screen{}, nil
	}
	return screens, nil
}

// Get finds a screen by name or screen id.
func (s *ScreenStore) Get(ref string) (*Screen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	screens, err := s.load()
	if err != nil {
		return nil, err
	}
	if sc := find(screens, ref); sc != nil {
		return sc, nil
	}
	return nil, fmt.Errorf("screen not found: %s", ref)
}

// Resolve returns the screen named by ref, or the only paired screen when
// ref is empty.
func (s *ScreenStore) Resolve(ref string) (*Screen, error) {
	if ref != "" {
		return s.Get(ref)
	}
	screens, err := s.List()
	if err != nil {
		return nil, err
	}
	switch len(screens) {
	case 0:
		return nil, fmt.Errorf("no paired screens; run pair first")
	case 1:
		return screens[0], nil
	default:
		return nil, fmt.Errorf("%d screens paired; choose one with --screen", len(screens))
	}
}

// Put adds a screen or replaces the one with the same screen id.
func (s *ScreenStore) Put(screen *Screen) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	screens, err := s.load()
	if err != nil {
		return err
	}
	if screen.PairedAt.IsZero() {
		screen.PairedAt = time.Now().UTC()
	}
	for i, existing := range screens {
		if existing.ScreenID == screen.ScreenID {
			screens[i] = screen
			return s.save(screens)
		}
	}
	for _, existing := range screens {
		if screen.Name != "" && existing.Name == screen.Name {
			return fmt.Errorf("screen name already used: %s", screen.Name)
		}
	}
	return s.save(append(screens, screen))
}

// Remove deletes a screen by name or screen id.
func (s *ScreenStore) Remove(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	screens, err := s.load()
	if err != nil {
		return err
	}
	for i, sc := range screens {
		if sc.ScreenID == ref || sc.Name == ref {
			screens = append(screens[:i], screens[i+1:]...)
			return s.save(screens)
		}
	}
	return fmt.Errorf("screen not found: %s", ref)
}

// UpdateToken stores a new lounge token for screenID.
func (s *ScreenStore) UpdateToken(screenID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	screens, err := s.load()
	if err != nil {
		return err
	}
	for _, sc := range screens {
		if sc.ScreenID == screenID {
			sc.LoungeToken = token
			sc.RefreshedAt = time.Now().UTC()
			return s.save(screens)
		}
	}
	return fmt.Errorf("screen not found: %s", screenID)
}

// OnTokenRefreshed persists the token. Failures are logged; the client keeps
// the new token in memory either way.
func (s *ScreenStore) OnTokenRefreshed(screenID, token string) {
	if err := s.UpdateToken(screenID, token); err != nil {
		slog.Warn("failed to persist refreshed lounge token", "screen_id", screenID, "error", err)
		return
	}
	slog.Debug("persisted refreshed lounge token", "screen_id", screenID)
}

func find(screens []*Screen, ref string) *Screen {
	for _, sc := range screens {
		if sc.ScreenID == ref {
			return sc
		}
	}
	for _, sc := range screens {
		if sc.Name == ref {
			return sc
		}
	}
	return nil
}

func (s *ScreenStore) load() ([]*Screen, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read screens file: %w", err)
	}

	var screens []*Screen
	if err := json.Unmarshal(data, &screens); err != nil {
		return nil, fmt.Errorf("unmarshal screens: %w", err)
	}
	return screens, nil
}

func (s *ScreenStore) save(screens []*Screen) error {
	data, err := json.MarshalIndent(screens, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal screens: %w", err)
	}
	// Tokens are credentials.
	return writeFileAtomic(s.path, data, 0o600)
}

// writeFileAtomic writes to a temp file then renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
