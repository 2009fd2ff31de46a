package detections

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"safety-monitor/distress"
	"safety-monitor/utils"
)

// Entry is one verdict as recorded in the journal.
type Entry struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
	distress.DetectionResult
}

// Journal is an append-only JSON file of every verdict the server produced.
type Journal struct {
	path string
	mu   sync.RWMutex
}

func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// loadInternal loads all entries from the JSON file (without lock)
func (j *Journal) loadInternal() ([]Entry, error) {
	if _, err := os.Stat(j.path); os.IsNotExist(err) {
		return []Entry{}, nil
	}

	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil, fmt.Errorf("error reading detections journal: %w", err)
	}

	if len(data) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error unmarshaling detections: %w", err)
	}

	return entries, nil
}

// Load returns every entry in insertion order.
func (j *Journal) Load() ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.loadInternal()
}

// Recent returns at most limit entries, newest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	entries, err := j.Load()
	if err != nil {
		return nil, err
	}

	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// Append records result for userID and returns the stored entry.
func (j *Journal) Append(result distress.DetectionResult, userID string) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.loadInternal()
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:              utils.GenerateUniqueID(),
		UserID:          userID,
		DetectionResult: result,
	}
	entries = append(entries, entry)

	dir := filepath.Dir(j.path)
	if dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return Entry{}, fmt.Errorf("error creating directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("error marshaling detections: %w", err)
	}

	// Replace atomically.
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Entry{}, fmt.Errorf("error writing detections journal: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return Entry{}, fmt.Errorf("error replacing detections journal: %w", err)
	}

	return entry, nil
}
