package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/internal/game"
	"github.com/andrewchart/final-rendezvous-game/internal/ident"
	"github.com/andrewchart/final-rendezvous-game/internal/store"
)

// CreatePlayer handles POST /api/games/{gameID}/players. Player ids are
// always server-assigned and name collisions within the session are resolved
// by suffixing rather than rejected.
func (a *API) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	gameID := gameIDParam(r)

	body, err := decodeBody(r)
	if err != nil {
		badRequest(w, "")
		return
	}
	if _, ok := body.Data["_id"]; ok {
		badRequest(w, "A new player cannot be created with a specific id.")
		return
	}
	name, _ := body.Data["name"].(string)
	if name == "" {
		badRequest(w, "A new player must have a name.")
		return
	}

	s, err := a.store.GetGame(r.Context(), gameID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Can't add player because game does not exist.")
		return
	}
	if err != nil {
		a.log.Error("reading game", zap.String("game_id", gameID), zap.Error(err))
		serverError(w, "Error retrieving the game from the database.")
		return
	}
	if s.HasStarted {
		conflict(w, "Can't add player because the game has already started.")
		return
	}
	if len(s.Players) >= game.MaxPlayers {
		conflict(w, "Can't add player because the game is full.")
		return
	}

	playerID, err := ident.PlayerID(s.PlayerIDs())
	if err != nil {
		serverError(w, "Could not create player in the database.")
		return
	}
	playerName := ident.ResolveName(name, s.PlayerNames())

	p := game.Player{ID: playerID, Name: playerName}
	if err := a.store.AddPlayer(r.Context(), gameID, p); err != nil {
		a.log.Error("adding player", zap.String("game_id", gameID), zap.Error(err))
		serverError(w, "Could not create player in the database.")
		return
	}

	// The caller already knows about its own player; exclude its connection
	// token so it is not told to re-fetch.
	var exclude []string
	if body.SocketID != "" {
		exclude = []string{body.SocketID}
	}
	a.notify.NotifyGameUpdate(gameID, []string{"players"}, exclude, nil)

	writeJSON(w, http.StatusCreated, map[string]int{"_id": playerID})
}

// ListPlayers handles GET /api/games/{gameID}/players. A session with no
// players returns an empty array, distinct from an unknown session's 404.
func (a *API) ListPlayers(w http.ResponseWriter, r *http.Request) {
	gameID := gameIDParam(r)

	s, err := a.store.GetGame(r.Context(), gameID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Can't retrieve players because game does not exist.")
		return
	}
	if err != nil {
		a.log.Error("reading game", zap.String("game_id", gameID), zap.Error(err))
		serverError(w, "Error retrieving players from database.")
		return
	}

	players := s.Players
	if players == nil {
		players = []game.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

// DeletePlayer handles DELETE /api/games/{gameID}/players/{playerID}.
func (a *API) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	gameID := gameIDParam(r)

	playerID, err := strconv.Atoi(chi.URLParam(r, "playerID"))
	if err != nil {
		badRequest(w, "")
		return
	}

	s, err := a.store.GetGame(r.Context(), gameID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "Can't delete player because game does not exist.")
		return
	}
	if err != nil {
		a.log.Error("reading game", zap.String("game_id", gameID), zap.Error(err))
		serverError(w, "Error retrieving the game from the database.")
		return
	}
	if s.HasStarted {
		conflict(w, "Can't remove player because the game has already started.")
		return
	}

	removed, err := a.store.RemovePlayer(r.Context(), gameID, playerID)
	if err != nil {
		a.log.Error("removing player",
			zap.String("game_id", gameID),
			zap.Int("player_id", playerID),
			zap.Error(err))
		serverError(w, "Error removing player from the database.")
		return
	}
	if !removed {
		notFound(w, fmt.Sprintf(
			"Could not delete player %d from %s. The player could not be found.",
			playerID, gameID))
		return
	}

	// The departing player's own connection is identified by its playerId
	// rather than a token: a DELETE has no body to carry one.
	a.notify.NotifyGameUpdate(gameID, []string{"players"}, nil, []int{playerID})

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
