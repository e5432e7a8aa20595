package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one stored lounge event.
type Record struct {
	Seq      int64           `json:"seq"`
	ScreenID string          `json:"screen_id"`
	Type     string          `json:"type"`
	At       time.Time       `json:"at"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// HistoryStore is a JSONL-backed append-only log of lounge events, one file
// per screen at screens/<screenID>/history.jsonl.
type HistoryStore struct {
	root  string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	seqs  map[string]int64
}

// NewHistoryStore creates a store rooted at the given directory.
func NewHistoryStore(root string) *HistoryStore {
	return &HistoryStore{
		root:  root,
		locks: make(map[string]*sync.Mutex),
		seqs:  make(map[string]int64),
	}
}

func (h *HistoryStore) lock(screenID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.locks[screenID]; ok {
		return l
	}
	l := &sync.Mutex{}
	h.locks[screenID] = l
	return l
}

func (h *HistoryStore) path(screenID string) string {
	return filepath.Join(h.root, "screens", url.PathEscape(screenID), "history.jsonl")
}

// count reads the file and counts lines. Caller must hold the screen lock.
func (h *HistoryStore) count(screenID string) (int64, error) {
	f, err := os.Open(h.path(screenID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var n int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		n++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan history file: %w", err)
	}
	return n, nil
}

// Append stores rec with the next sequence number for its screen.
func (h *HistoryStore) Append(_ context.Context, rec *Record) error {
	l := h.lock(rec.ScreenID)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path(rec.ScreenID)), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	h.mu.Lock()
	seq, known := h.seqs[rec.ScreenID]
	h.mu.Unlock()
	if !known {
		n, err := h.count(rec.ScreenID)
		if err != nil {
			return err
		}
		seq = n
	}
	rec.Seq = seq + 1
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	f, err := os.OpenFile(h.path(rec.ScreenID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	h.mu.Lock()
	h.seqs[rec.ScreenID] = rec.Seq
	h.mu.Unlock()
	return nil
}

// Tail returns the last limit records for screenID, oldest first.
func (h *HistoryStore) Tail(_ context.Context, screenID string, limit int) ([]*Record, error) {
	l := h.lock(screenID)
	l.Lock()
	defer l.Unlock()

	f, err := os.Open(h.path(screenID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, &rec)
		if limit > 0 && len(records) > limit {
			records = records[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history file: %w", err)
	}
	return records, nil
}

// Count returns the number of records for screenID.
func (h *HistoryStore) Count(_ context.Context, screenID string) (int64, error) {
	l := h.lock(screenID)
	l.Lock()
	defer l.Unlock()

	return h.count(screenID)
}
