// Package store is the persistence facade over the games collection and the
// reference data used at game start. All operations are single-document;
// each session is independently addressable by its room code so nothing here
// needs a cross-document transaction.
package store

import (
	"context"
	"errors"

	"github.com/andrewchart/final-rendezvous-game/internal/game"
)

// ErrNotFound is returned when the referenced document does not exist. It is
// deliberately distinct from driver/transport errors so callers can map the
// two to different HTTP outcomes.
var ErrNotFound = errors.New("store: not found")

// Store is the contract the session API requires of its datastore.
type Store interface {
	// InsertGame persists a new session document.
	InsertGame(ctx context.Context, s *game.Session) error

	// GetGame fetches a full session document. ErrNotFound when absent.
	GetGame(ctx context.Context, id string) (*game.Session, error)

	// GetGameFields fetches a projection of named fields. The field names
	// must already be validated against the session schema.
	GetGameFields(ctx context.Context, id string, fields []string) (map[string]any, error)

	// UpdateGameFields replaces the named fields on one session and reports
	// how many documents matched and how many were actually modified.
	UpdateGameFields(ctx context.Context, id string, set map[string]any) (matched, modified int64, err error)

	// AddPlayer appends a player to the session's embedded list.
	// ErrNotFound when the session does not exist.
	AddPlayer(ctx context.Context, id string, p game.Player) error

	// RemovePlayer pulls the matching player from the embedded list. It
	// reports whether a player was removed; ErrNotFound when the session
	// itself does not exist.
	RemovePlayer(ctx context.Context, id string, playerID int) (bool, error)

	// RandomCity picks one city id at random from the reference data.
	RandomCity(ctx context.Context) (int, error)

	// RandomCodeword picks one codeword at random from the reference data.
	RandomCodeword(ctx context.Context) (string, error)
}

// Projection builds a field map from a session for the requested names.
// Shared by implementations so projected reads look identical regardless of
// the backing store.
func Projection(s *game.Session, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := s.Field(f); ok {
			out[f] = v
		}
	}
	return out
}
