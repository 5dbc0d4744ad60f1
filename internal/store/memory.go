package store

import (
	"context"
	"math/rand"
	"sync"

	"github.com/andrewchart/final-rendezvous-game/internal/game"
)

// Memory is a mutex-guarded in-process store. It backs tests and the dev
// server when no MongoDB url is configured. Reference data ships with small
// built-in sets and can be replaced via LoadReference.
type Memory struct {
	mu        sync.RWMutex
	games     map[string]*game.Session
	cities    []int
	codewords []string
}

var defaultCodewords = []string{
	"BANANA", "LANTERN", "COMPASS", "SATCHEL", "VESPER",
	"MERIDIAN", "POSTCARD", "TELEGRAM", "PASSPORT", "ENVOY",
}

func NewMemory() *Memory {
	cities := make([]int, 40)
	for i := range cities {
		cities[i] = i
	}
	return &Memory{
		games:     make(map[string]*game.Session),
		cities:    cities,
		codewords: defaultCodewords,
	}
}

// LoadReference replaces the built-in reference data.
func (m *Memory) LoadReference(cities []int, codewords []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cities = cities
	m.codewords = codewords
}

func (m *Memory) InsertGame(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[s.ID] = clone(s)
	return nil
}

func (m *Memory) GetGame(ctx context.Context, id string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Memory) GetGameFields(ctx context.Context, id string, fields []string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return Projection(clone(s), fields), nil
}

func (m *Memory) UpdateGameFields(ctx context.Context, id string, set map[string]any) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.games[id]
	if !ok {
		return 0, 0, nil
	}

	// Apply to a clone and swap so a bad value partway through leaves the
	// stored document untouched, matching whole-$set semantics.
	next := clone(s)
	changed := false
	for k, v := range set {
		c, err := next.SetField(k, v)
		if err != nil {
			return 1, 0, err
		}
		changed = changed || c
	}
	if !changed {
		return 1, 0, nil
	}
	m.games[id] = next
	return 1, 1, nil
}

func (m *Memory) AddPlayer(ctx context.Context, id string, p game.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.games[id]
	if !ok {
		return ErrNotFound
	}
	s.Players = append(s.Players, p)
	return nil
}

func (m *Memory) RemovePlayer(ctx context.Context, id string, playerID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.games[id]
	if !ok {
		return false, ErrNotFound
	}
	for i, p := range s.Players {
		if p.ID == playerID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) RandomCity(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.cities) == 0 {
		return 0, ErrNotFound
	}
	return m.cities[rand.Intn(len(m.cities))], nil
}

func (m *Memory) RandomCodeword(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.codewords) == 0 {
		return "", ErrNotFound
	}
	return m.codewords[rand.Intn(len(m.codewords))], nil
}

func clone(s *game.Session) *game.Session {
	c := *s
	c.Players = append([]game.Player(nil), s.Players...)
	if c.Players == nil {
		c.Players = []game.Player{}
	}
	c.DoubleAgents = append([]int(nil), s.DoubleAgents...)
	c.Deck = append([]int(nil), s.Deck...)
	return &c
}
