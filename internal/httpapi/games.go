// Package httpapi implements the session REST API over the games collection.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/internal/game"
	"github.com/andrewchart/final-rendezvous-game/internal/ident"
	"github.com/andrewchart/final-rendezvous-game/internal/store"
)

// Notifier announces a committed session change to the realtime relay. Calls
// are fire-and-forget: they happen strictly after the store write is
// confirmed and their failure is never surfaced to the HTTP caller.
type Notifier interface {
	NotifyGameUpdate(gameID string, fields []string, excludeTokens []string, excludePlayerIDs []int)
}

// API holds the handlers' dependencies.
type API struct {
	store  store.Store
	notify Notifier
	log    *zap.Logger
}

func New(st store.Store, n Notifier, log *zap.Logger) *API {
	return &API{store: st, notify: n, log: log}
}

// requestBody is the envelope for mutating requests: the field payload under
// data, and the caller's relay connection token so its own subscription can
// be excluded from the change announcement.
type requestBody struct {
	Data     map[string]any `json:"data"`
	SocketID string         `json:"socketId"`
}

// decodeBody tolerates an empty body, returning an empty envelope.
func decodeBody(r *http.Request) (requestBody, error) {
	var body requestBody
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return body, err
	}
	if len(raw) == 0 {
		return body, nil
	}
	return body, json.Unmarshal(raw, &body)
}

func gameIDParam(r *http.Request) string {
	return strings.ToUpper(chi.URLParam(r, "gameID"))
}

// CreateGame handles POST /api/games. The caller must not pick its own id;
// one is allocated against current store contents and the new session starts
// pending with no players.
func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		badRequest(w, "")
		return
	}
	if _, ok := body.Data["_id"]; ok {
		badRequest(w, "A new game cannot be created with a specific id.")
		return
	}

	id, err := ident.GameID(r.Context(), func(ctx context.Context, code string) (bool, error) {
		_, err := a.store.GetGame(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	})
	if errors.Is(err, ident.ErrExhausted) {
		serverError(w, "Could not allocate a unique game id.")
		return
	}
	if err != nil {
		a.log.Error("probing game ids", zap.Error(err))
		serverError(w, "Error checking game ids against the database.")
		return
	}

	if err := a.store.InsertGame(r.Context(), game.NewSession(id)); err != nil {
		a.log.Error("inserting game", zap.String("game_id", id), zap.Error(err))
		serverError(w, "Could not create the game in the database.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"_id": id})
}

// GetGame handles GET /api/games/{gameID}. An optional comma-separated
// fields parameter projects the response; unknown names are dropped, and a
// selection with no known names at all is a bad request.
func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	id := gameIDParam(r)

	if raw := r.URL.Query().Get("fields"); raw != "" {
		fields := game.FilterFields(strings.Split(raw, ","))
		if len(fields) == 0 {
			badRequest(w, "No fields of those names can be read.")
			return
		}

		proj, err := a.store.GetGameFields(r.Context(), id, fields)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "")
			return
		}
		if err != nil {
			a.log.Error("reading game fields", zap.String("game_id", id), zap.Error(err))
			serverError(w, "Error retrieving the game from the database.")
			return
		}
		writeJSON(w, http.StatusOK, proj)
		return
	}

	s, err := a.store.GetGame(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "")
		return
	}
	if err != nil {
		a.log.Error("reading game", zap.String("game_id", id), zap.Error(err))
		serverError(w, "Error retrieving the game from the database.")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateGame handles PATCH /api/games/{gameID}: a field-set replace of the
// named schema fields. Flipping hasStarted on a pending session also rolls
// the play state into the same write.
func (a *API) UpdateGame(w http.ResponseWriter, r *http.Request) {
	id := gameIDParam(r)

	body, err := decodeBody(r)
	if err != nil || len(body.Data) == 0 {
		badRequest(w, "")
		return
	}

	payload := game.FilterPayload(body.Data)
	if len(payload) == 0 {
		badRequest(w, "No fields of those names can be updated.")
		return
	}
	if err := game.ValidatePayload(payload); err != nil {
		badRequest(w, "One or more fields have a value of the wrong type.")
		return
	}

	if starting, ok := payload["hasStarted"].(bool); ok {
		var done bool
		if starting {
			done = a.mergeStartFields(w, r, id, payload)
		} else {
			done = a.rejectRevert(w, r, id)
		}
		if done {
			return
		}
	}

	matched, modified, err := a.store.UpdateGameFields(r.Context(), id, payload)
	if err != nil {
		a.log.Error("updating game", zap.String("game_id", id), zap.Error(err))
		serverError(w, "Error updating the game in the database.")
		return
	}
	if matched == 0 {
		notFound(w, "")
		return
	}
	if modified == 0 {
		writeJSON(w, http.StatusOK, map[string]bool{"updated": false})
		return
	}

	fields := make([]string, 0, len(payload))
	for k := range payload {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var exclude []string
	if body.SocketID != "" {
		exclude = []string{body.SocketID}
	}
	a.notify.NotifyGameUpdate(id, fields, exclude, nil)

	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// mergeStartFields enriches a start PATCH with the rolled play state. It
// reports true when it has already written a response and the caller should
// stop.
func (a *API) mergeStartFields(w http.ResponseWriter, r *http.Request, id string, payload map[string]any) bool {
	cur, err := a.store.GetGame(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "")
		return true
	}
	if err != nil {
		a.log.Error("reading game before start", zap.String("game_id", id), zap.Error(err))
		serverError(w, "Error retrieving the game from the database.")
		return true
	}
	if cur.HasStarted {
		// Already started: the write will land as a no-op on hasStarted.
		return false
	}

	cityID, err := a.store.RandomCity(r.Context())
	if err != nil {
		a.log.Error("drawing random city", zap.String("game_id", id), zap.Error(err))
		serverError(w, "Could not initialise the game start state.")
		return true
	}
	codeword, err := a.store.RandomCodeword(r.Context())
	if err != nil {
		a.log.Error("drawing random codeword", zap.String("game_id", id), zap.Error(err))
		serverError(w, "Could not initialise the game start state.")
		return true
	}

	start, err := game.StartFields(cur, cityID, codeword)
	if err != nil {
		conflict(w, "Can't start a game with no players.")
		return true
	}
	for k, v := range start {
		payload[k] = v
	}
	return false
}

// rejectRevert guards the one-way start transition: hasStarted never goes
// back to false once a session has started. Reports true when it has already
// written a response and the caller should stop.
func (a *API) rejectRevert(w http.ResponseWriter, r *http.Request, id string) bool {
	cur, err := a.store.GetGame(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "")
		return true
	}
	if err != nil {
		a.log.Error("reading game", zap.String("game_id", id), zap.Error(err))
		serverError(w, "Error retrieving the game from the database.")
		return true
	}
	if cur.HasStarted {
		conflict(w, "Can't return a started game to pending.")
		return true
	}
	// Still pending: the write lands as a no-op on hasStarted.
	return false
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
