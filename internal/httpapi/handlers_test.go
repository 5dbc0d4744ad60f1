package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/internal/game"
	"github.com/andrewchart/final-rendezvous-game/internal/store"
)

var codePattern = regexp.MustCompile(`^[BCDFGHJKLMNPQRSTVWXYZ]{4}$`)

// recordingNotifier captures relay announcements for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	GameID    string
	Fields    []string
	Tokens    []string
	PlayerIDs []int
}

func (n *recordingNotifier) NotifyGameUpdate(gameID string, fields []string, tokens []string, playerIDs []int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{GameID: gameID, Fields: fields, Tokens: tokens, PlayerIDs: playerIDs})
}

func (n *recordingNotifier) last(t *testing.T) notifyCall {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		t.Fatalf("expected at least one notification")
	}
	return n.calls[len(n.calls)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newTestAPI(t *testing.T) (*API, *store.Memory, *recordingNotifier) {
	t.Helper()
	st := store.NewMemory()
	n := &recordingNotifier{}
	return New(st, n, zap.NewNop()), st, n
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createGame(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/games", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[map[string]string](t, rec)["_id"]
}

func TestCreateGame_ThenRead(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)

	id := createGame(t, h)
	assert.Regexp(t, codePattern, id)

	rec := doJSON(t, h, http.MethodGet, "/api/games/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["hasStarted"])
	assert.Equal(t, []any{}, body["players"])
}

func TestCreateGame_RejectsSuppliedID(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)

	rec := doJSON(t, h, http.MethodPost, "/api/games", map[string]any{
		"data": map[string]any{"_id": "QWKZ"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[errorBody](t, rec)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, http.StatusBadRequest, body.Errors[0].Code)
}

func TestGetGame_NotFound(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)

	rec := doJSON(t, h, http.MethodGet, "/api/games/XXXX", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetGame_FieldSelection(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	// All unknown names: bad request, not a silent full read.
	rec := doJSON(t, h, http.MethodGet, "/api/games/"+id+"?fields=bogus,alsoBogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Mixed: unknown names dropped, known ones returned.
	rec = doJSON(t, h, http.MethodGet, "/api/games/"+id+"?fields=hasStarted,bogus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, map[string]any{"hasStarted": false}, body)
}

func TestUpdateGame_Outcomes(t *testing.T) {
	api, _, n := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	// Empty payload.
	rec := doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Only unknown fields in the payload.
	rec = doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data": map[string]any{"bogus": 1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown game.
	rec = doJSON(t, h, http.MethodPatch, "/api/games/XXXX", map[string]any{
		"data": map[string]any{"targetCityId": 9},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Real change.
	rec = doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data":     map[string]any{"targetCityId": 9},
		"socketId": "tab-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["updated"])

	call := n.last(t)
	assert.Equal(t, id, call.GameID)
	assert.Equal(t, []string{"targetCityId"}, call.Fields)
	assert.Equal(t, []string{"tab-1"}, call.Tokens)

	// Same value again: success, but flagged unchanged and not announced.
	before := n.count()
	rec = doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data":     map[string]any{"targetCityId": 9},
		"socketId": "tab-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["updated"])
	assert.Equal(t, before, n.count())
}

func TestStartGame_RollsPlayState(t *testing.T) {
	api, _, n := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)
	addPlayer(t, h, id, "Sam")

	rec := doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data":     map[string]any{"hasStarted": true},
		"socketId": "tab-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["updated"])

	call := n.last(t)
	assert.Contains(t, call.Fields, "hasStarted")
	assert.Contains(t, call.Fields, "deck")
	assert.Contains(t, call.Fields, "targetCodeword")

	rec = doJSON(t, h, http.MethodGet, "/api/games/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["hasStarted"])
	assert.NotEmpty(t, body["targetCodeword"])
	assert.Len(t, body["deck"], 40)
	assert.Equal(t, float64(3), body["turnActionsRemaining"])
}

func TestStartGame_NoPlayersConflicts(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	rec := doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data": map[string]any{"hasStarted": true},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func addPlayer(t *testing.T, h http.Handler, gameID, name string) int {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/games/"+gameID+"/players", map[string]any{
		"data":     map[string]any{"name": name},
		"socketId": "tab-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[map[string]int](t, rec)["_id"]
}

func TestCreatePlayer_ThenList(t *testing.T) {
	api, _, n := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	pid := addPlayer(t, h, id, "Sam")
	assert.GreaterOrEqual(t, pid, 100)
	assert.LessOrEqual(t, pid, 999)

	call := n.last(t)
	assert.Equal(t, []string{"players"}, call.Fields)
	assert.Equal(t, []string{"tab-1"}, call.Tokens)

	rec := doJSON(t, h, http.MethodGet, "/api/games/"+id+"/players", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	players := decode[[]game.Player](t, rec)
	require.Len(t, players, 1)
	assert.Equal(t, "Sam", players[0].Name)
	assert.Equal(t, pid, players[0].ID)
}

func TestCreatePlayer_Validation(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/games/"+id+"/players", map[string]any{
		"data": map[string]any{"_id": 101, "name": "Sam"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/games/"+id+"/players", map[string]any{
		"data": map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/games/XXXX/players", map[string]any{
		"data": map[string]any{"name": "Sam"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePlayer_ResolvesDuplicateNames(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	addPlayer(t, h, id, "Alice")
	addPlayer(t, h, id, "Alice")
	addPlayer(t, h, id, "Alice")

	rec := doJSON(t, h, http.MethodGet, "/api/games/"+id+"/players", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	players := decode[[]game.Player](t, rec)
	require.Len(t, players, 3)
	assert.Equal(t, "Alice", players[0].Name)
	assert.Equal(t, "Alice (1)", players[1].Name)
	assert.Equal(t, "Alice (2)", players[2].Name)
}

func TestCreatePlayer_FullGameConflicts(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	for i := 0; i < game.MaxPlayers; i++ {
		addPlayer(t, h, id, fmt.Sprintf("Player %d", i))
	}

	rec := doJSON(t, h, http.MethodPost, "/api/games/"+id+"/players", map[string]any{
		"data": map[string]any{"name": "One Too Many"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartedGame_PlayerMutationsConflict(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)
	pid := addPlayer(t, h, id, "Sam")

	rec := doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data": map[string]any{"hasStarted": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/games/"+id+"/players", map[string]any{
		"data": map[string]any{"name": "Latecomer"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/games/%s/players/%d", id, pid), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartedGame_CannotRevertToPending(t *testing.T) {
	api, _, n := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)
	addPlayer(t, h, id, "Sam")

	rec := doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data": map[string]any{"hasStarted": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	before := n.count()
	rec = doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data": map[string]any{"hasStarted": false},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, before, n.count())

	// The started-game guard still holds for player mutations afterwards.
	rec = doJSON(t, h, http.MethodPost, "/api/games/"+id+"/players", map[string]any{
		"data": map[string]any{"name": "Latecomer"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// hasStarted:false on a pending session stays a no-op, not a conflict.
	pending := createGame(t, h)
	rec = doJSON(t, h, http.MethodPatch, "/api/games/"+pending, map[string]any{
		"data": map[string]any{"hasStarted": false},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["updated"])
}

func TestUpdateGame_RejectsWrongTypedValues(t *testing.T) {
	api, _, n := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	before := n.count()
	rec := doJSON(t, h, http.MethodPatch, "/api/games/"+id, map[string]any{
		"data": map[string]any{"hasStarted": "yes", "targetCityId": 9},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, before, n.count())

	// Nothing from the rejected payload landed.
	rec = doJSON(t, h, http.MethodGet, "/api/games/"+id+"?fields=hasStarted,targetCityId", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["hasStarted"])
	assert.Equal(t, float64(0), body["targetCityId"])
}

func TestDeletePlayer(t *testing.T) {
	api, _, n := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)
	pid := addPlayer(t, h, id, "Sam")

	// Unknown player on an existing, unstarted game.
	rec := doJSON(t, h, http.MethodDelete, "/api/games/"+id+"/players/555", nil)
	if pid == 555 {
		t.Skip("drew the one colliding id")
	}
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown game.
	rec = doJSON(t, h, http.MethodDelete, "/api/games/XXXX/players/555", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed player id.
	rec = doJSON(t, h, http.MethodDelete, "/api/games/"+id+"/players/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Real delete announces to everyone except the departed player.
	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/games/%s/players/%d", id, pid), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["deleted"])

	call := n.last(t)
	assert.Equal(t, []string{"players"}, call.Fields)
	assert.Equal(t, []int{pid}, call.PlayerIDs)

	rec = doJSON(t, h, http.MethodGet, "/api/games/"+id+"/players", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]game.Player](t, rec))
}

func TestListPlayers_EmptyIsNotMissing(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.Routes(nil)
	id := createGame(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/games/"+id+"/players", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/games/XXXX/players", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGameIDsAreCaseInsensitive(t *testing.T) {
	api, st, _ := newTestAPI(t)
	h := api.Routes(nil)

	require.NoError(t, st.InsertGame(context.Background(), game.NewSession("QWKZ")))

	rec := doJSON(t, h, http.MethodGet, "/api/games/qwkz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
