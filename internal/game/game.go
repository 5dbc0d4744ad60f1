// Package game holds the session aggregate and its field schema. It is pure
// data logic: no I/O, no transport concerns.
package game

import (
	"fmt"
	"time"
)

// MaxPlayers caps the number of players a session will admit.
const MaxPlayers = 8

// Player is embedded in exactly one session and is not independently
// addressable. Ids are unique within the owning session only.
type Player struct {
	ID   int    `json:"_id" bson:"_id"`
	Name string `json:"name" bson:"name"`
}

// Session is the aggregate root, keyed by its 4-letter room code. The play
// state fields after Players are populated when the game starts.
type Session struct {
	ID                   string    `json:"_id" bson:"_id"`
	CreatedAt            time.Time `json:"createdAt" bson:"createdAt"`
	HasStarted           bool      `json:"hasStarted" bson:"hasStarted"`
	Players              []Player  `json:"players" bson:"players"`
	DoubleAgents         []int     `json:"doubleAgents" bson:"doubleAgents"`
	TargetCityID         int       `json:"targetCityId" bson:"targetCityId"`
	TargetCodeword       string    `json:"targetCodeword" bson:"targetCodeword"`
	Deck                 []int     `json:"deck" bson:"deck"`
	CurrentPlayerIndex   int       `json:"currentPlayerIndex" bson:"currentPlayerIndex"`
	TurnActionsRemaining int       `json:"turnActionsRemaining" bson:"turnActionsRemaining"`
}

// NewSession returns a fresh, unstarted session for the given room code.
func NewSession(id string) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		HasStarted: false,
		Players:    []Player{},
	}
}

// Fields is the enumerated schema of readable field names, in document order.
// Selections and payloads are validated against this set instead of
// reflecting over arbitrary keys.
var Fields = []string{
	"_id",
	"createdAt",
	"hasStarted",
	"players",
	"doubleAgents",
	"targetCityId",
	"targetCodeword",
	"deck",
	"currentPlayerIndex",
	"turnActionsRemaining",
}

var fieldSet = func() map[string]bool {
	m := make(map[string]bool, len(Fields))
	for _, f := range Fields {
		m[f] = true
	}
	return m
}()

// immutable fields may be read but never appear in an update payload.
var immutable = map[string]bool{
	"_id":       true,
	"createdAt": true,
}

// KnownField reports whether name is part of the session schema.
func KnownField(name string) bool { return fieldSet[name] }

// FilterFields keeps only known field names, preserving order. Unknown names
// are silently dropped; an all-unknown selection comes back empty.
func FilterFields(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if fieldSet[n] {
			out = append(out, n)
		}
	}
	return out
}

// FilterPayload drops unknown and immutable field names from an update
// payload before it touches the store.
func FilterPayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if fieldSet[k] && !immutable[k] {
			out[k] = v
		}
	}
	return out
}

// ValidatePayload checks that every value in an update payload coerces to its
// field's type, without touching any session. Keys must already be filtered
// against the schema.
func ValidatePayload(payload map[string]any) error {
	var scratch Session
	for k, v := range payload {
		if _, err := scratch.SetField(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Field returns the session's value for a schema field name.
func (s *Session) Field(name string) (any, bool) {
	switch name {
	case "_id":
		return s.ID, true
	case "createdAt":
		return s.CreatedAt, true
	case "hasStarted":
		return s.HasStarted, true
	case "players":
		return s.Players, true
	case "doubleAgents":
		return s.DoubleAgents, true
	case "targetCityId":
		return s.TargetCityID, true
	case "targetCodeword":
		return s.TargetCodeword, true
	case "deck":
		return s.Deck, true
	case "currentPlayerIndex":
		return s.CurrentPlayerIndex, true
	case "turnActionsRemaining":
		return s.TurnActionsRemaining, true
	}
	return nil, false
}

// SetField assigns a schema field from a value that may be a native Go value
// or a decoded JSON value (float64 numbers, []any slices, map players).
// It reports whether the stored value actually changed.
func (s *Session) SetField(name string, v any) (bool, error) {
	switch name {
	case "_id":
		val, ok := v.(string)
		if !ok {
			return false, badValue(name, v)
		}
		changed := s.ID != val
		s.ID = val
		return changed, nil
	case "createdAt":
		val, ok := asTime(v)
		if !ok {
			return false, badValue(name, v)
		}
		changed := !s.CreatedAt.Equal(val)
		s.CreatedAt = val
		return changed, nil
	case "hasStarted":
		val, ok := v.(bool)
		if !ok {
			return false, badValue(name, v)
		}
		changed := s.HasStarted != val
		s.HasStarted = val
		return changed, nil
	case "players":
		val, ok := asPlayers(v)
		if !ok {
			return false, badValue(name, v)
		}
		changed := !playersEqual(s.Players, val)
		s.Players = val
		return changed, nil
	case "doubleAgents":
		val, ok := asIntSlice(v)
		if !ok {
			return false, badValue(name, v)
		}
		changed := !intsEqual(s.DoubleAgents, val)
		s.DoubleAgents = val
		return changed, nil
	case "targetCityId":
		val, ok := asInt(v)
		if !ok {
			return false, badValue(name, v)
		}
		changed := s.TargetCityID != val
		s.TargetCityID = val
		return changed, nil
	case "targetCodeword":
		val, ok := v.(string)
		if !ok {
			return false, badValue(name, v)
		}
		changed := s.TargetCodeword != val
		s.TargetCodeword = val
		return changed, nil
	case "deck":
		val, ok := asIntSlice(v)
		if !ok {
			return false, badValue(name, v)
		}
		changed := !intsEqual(s.Deck, val)
		s.Deck = val
		return changed, nil
	case "currentPlayerIndex":
		val, ok := asInt(v)
		if !ok {
			return false, badValue(name, v)
		}
		changed := s.CurrentPlayerIndex != val
		s.CurrentPlayerIndex = val
		return changed, nil
	case "turnActionsRemaining":
		val, ok := asInt(v)
		if !ok {
			return false, badValue(name, v)
		}
		changed := s.TurnActionsRemaining != val
		s.TurnActionsRemaining = val
		return changed, nil
	}
	return false, fmt.Errorf("game: unknown field %q", name)
}

func badValue(name string, v any) error {
	return fmt.Errorf("game: bad value of type %T for field %q", v, name)
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		return t, err == nil
	}
	return time.Time{}, false
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	}
	return 0, false
}

func asIntSlice(v any) ([]int, bool) {
	switch x := v.(type) {
	case []int:
		return x, true
	case []any:
		out := make([]int, 0, len(x))
		for _, e := range x {
			n, ok := asInt(e)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	}
	return nil, false
}

func asPlayers(v any) ([]Player, bool) {
	switch x := v.(type) {
	case []Player:
		return x, true
	case []any:
		out := make([]Player, 0, len(x))
		for _, e := range x {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, false
			}
			id, ok := asInt(m["_id"])
			if !ok {
				return nil, false
			}
			name, ok := m["name"].(string)
			if !ok {
				return nil, false
			}
			out = append(out, Player{ID: id, Name: name})
		}
		return out, true
	}
	return nil, false
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func playersEqual(a, b []Player) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HasPlayer reports whether a player with the given id is in the session.
func (s *Session) HasPlayer(id int) bool {
	for _, p := range s.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// PlayerIDs returns the ids of the session's players, in join order.
func (s *Session) PlayerIDs() []int {
	ids := make([]int, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	return ids
}

// PlayerNames returns the display names of the session's players.
func (s *Session) PlayerNames() []string {
	names := make([]string, len(s.Players))
	for i, p := range s.Players {
		names[i] = p.Name
	}
	return names
}
