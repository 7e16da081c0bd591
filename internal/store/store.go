// Package store persists round progress so a restarted client resumes
// the round it was in instead of starting over. Storage is deliberately
// ephemeral: one small file per scope under the OS temp dir, comparable
// to per-tab session storage in a browser.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Progress reads and writes the (room id, round index) pair.
type Progress interface {
	Save(roomID string, round int) error
	// Load reports ok=false when nothing has been saved.
	Load() (roomID string, round int, ok bool)
	Clear() error
}

type record struct {
	RoomID string `json:"roomId"`
	Round  int    `json:"roundIndex"`
}

// File is the default Progress backed by a JSON file.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file-backed Progress scoped by the given key.
// Clients running under different scopes do not see each other's state.
func NewFile(scope string) *File {
	if scope == "" {
		scope = "default"
	}
	return &File{path: filepath.Join(os.TempDir(), "vibeparty-"+scope+".json")}
}

func (f *File) Save(roomID string, round int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(record{RoomID: roomID, Round: round})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *File) Load() (string, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", 0, false
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.RoomID == "" {
		return "", 0, false
	}
	return rec.RoomID, rec.Round, true
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Memory is an in-memory Progress, used by tests and by clients that
// opt out of resume-on-restart.
type Memory struct {
	mu  sync.Mutex
	rec *record
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(roomID string, round int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &record{RoomID: roomID, Round: round}
	return nil
}

func (m *Memory) Load() (string, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return "", 0, false
	}
	return m.rec.RoomID, m.rec.Round, true
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}
