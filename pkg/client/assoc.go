package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"
)

// Assoc remembers which player this client is in each session across
// restarts, the way the browser build keeps gameId→playerId in localStorage.
type Assoc interface {
	Get(gameID string) (int, bool)
	Set(gameID string, playerID int) error
	Remove(gameID string) error
}

// MemoryAssoc keeps associations for the lifetime of the process.
type MemoryAssoc struct {
	mu sync.Mutex
	m  map[string]int
}

func NewMemoryAssoc() *MemoryAssoc {
	return &MemoryAssoc{m: make(map[string]int)}
}

func (a *MemoryAssoc) Get(gameID string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.m[gameID]
	return id, ok
}

func (a *MemoryAssoc) Set(gameID string, playerID int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[gameID] = playerID
	return nil
}

func (a *MemoryAssoc) Remove(gameID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.m, gameID)
	return nil
}

// FileAssoc persists associations to a small JSON file.
type FileAssoc struct {
	path string
	mu   sync.Mutex
	m    map[string]int
}

func NewFileAssoc(path string) (*FileAssoc, error) {
	a := &FileAssoc{path: path, m: make(map[string]int)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return a, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &a.m); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *FileAssoc) Get(gameID string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.m[gameID]
	return id, ok
}

func (a *FileAssoc) Set(gameID string, playerID int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[gameID] = playerID
	return a.save()
}

func (a *FileAssoc) Remove(gameID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.m, gameID)
	return a.save()
}

func (a *FileAssoc) save() error {
	raw, err := json.MarshalIndent(a.m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.path, raw, 0o600)
}
