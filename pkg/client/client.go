// Package client is the session controller a game frontend drives: it calls
// the session API, keeps a local copy of the session, and holds exactly one
// relay subscription whose pushes trigger field-scoped re-fetches.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/internal/game"
	"github.com/andrewchart/final-rendezvous-game/pkg/types"
)

// ErrNotJoined is returned by operations that need a local player identity.
var ErrNotJoined = errors.New("client: no local player in this session")

// APIError is a decoded error response from the session API, suitable for
// showing to the player as-is.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// Controller orchestrates one session view. Not safe for use by multiple
// session views; open one controller per view.
type Controller struct {
	apiURL   string
	relayURL string
	httpc    *http.Client
	token    string
	assoc    Assoc
	log      *zap.Logger

	gameID string

	mu       sync.Mutex
	session  game.Session
	playerID *int

	wsMu     sync.Mutex
	ws       *websocket.Conn
	wsCancel context.CancelFunc
	wsDone   chan struct{}
}

// New builds a controller with a fresh connection token. The token is opaque
// and exists only so this client's own writes aren't echoed back to it.
func New(apiURL, relayURL string, assoc Assoc, log *zap.Logger) *Controller {
	return &Controller{
		apiURL:   strings.TrimRight(apiURL, "/"),
		relayURL: relayURL,
		httpc:    &http.Client{Timeout: 10 * time.Second},
		token:    uuid.NewString(),
		assoc:    assoc,
		log:      log,
	}
}

// Token returns the controller's connection token.
func (c *Controller) Token() string { return c.token }

// GameID returns the resolved room code, empty before Resolve.
func (c *Controller) GameID() string { return c.gameID }

// Session returns a copy of the local session state.
func (c *Controller) Session() game.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// PlayerID returns the local player's id, or nil while spectating.
func (c *Controller) PlayerID() *int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playerID == nil {
		return nil
	}
	id := *c.playerID
	return &id
}

// Resolve binds the controller to a session: an empty id registers a new
// game on the server, a non-empty one is normalised to upper case and
// verified to exist.
func (c *Controller) Resolve(ctx context.Context, id string) (string, error) {
	if id == "" {
		var out struct {
			ID string `json:"_id"`
		}
		if err := c.do(ctx, http.MethodPost, "/api/games", nil, &out); err != nil {
			return "", err
		}
		c.gameID = out.ID
		return out.ID, nil
	}

	id = strings.ToUpper(id)
	if err := c.do(ctx, http.MethodGet, "/api/games/"+id+"?fields=_id", nil, nil); err != nil {
		return "", err
	}
	c.gameID = id
	return id, nil
}

// Load fetches the full session and restores the local player identity from
// the persisted association. A remembered id that no longer appears in the
// player list means this client is a fresh spectator again.
func (c *Controller) Load(ctx context.Context) error {
	var s game.Session
	if err := c.do(ctx, http.MethodGet, "/api/games/"+c.gameID, nil, &s); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.playerID = nil
	if pid, ok := c.assoc.Get(c.gameID); ok {
		if s.HasPlayer(pid) {
			id := pid
			c.playerID = &id
		} else {
			_ = c.assoc.Remove(c.gameID)
		}
	}
	return nil
}

// Join adds a player to the session and adopts it as the local identity.
func (c *Controller) Join(ctx context.Context, name string) (int, error) {
	body := map[string]any{
		"data":     map[string]any{"name": name},
		"socketId": c.token,
	}
	var out struct {
		ID int `json:"_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/games/"+c.gameID+"/players", body, &out); err != nil {
		return 0, err
	}

	c.mu.Lock()
	id := out.ID
	c.playerID = &id
	c.mu.Unlock()
	_ = c.assoc.Set(c.gameID, out.ID)

	c.updateSubscription()

	// Our own write was excluded from the fan-out, so pull the list here.
	if err := c.Refresh(ctx, []string{"players"}); err != nil {
		c.log.Warn("refreshing players after join", zap.Error(err))
	}
	return out.ID, nil
}

// Leave removes the local player from the session.
func (c *Controller) Leave(ctx context.Context) error {
	c.mu.Lock()
	pid := c.playerID
	c.mu.Unlock()
	if pid == nil {
		return ErrNotJoined
	}

	path := fmt.Sprintf("/api/games/%s/players/%d", c.gameID, *pid)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.playerID = nil
	c.mu.Unlock()
	_ = c.assoc.Remove(c.gameID)

	c.updateSubscription()

	if err := c.Refresh(ctx, []string{"players"}); err != nil {
		c.log.Warn("refreshing players after leave", zap.Error(err))
	}
	return nil
}

// Start flips the session to started. The server rolls the play state, so
// the whole session is re-fetched afterwards.
func (c *Controller) Start(ctx context.Context) error {
	body := map[string]any{
		"data":     map[string]any{"hasStarted": true},
		"socketId": c.token,
	}
	if err := c.do(ctx, http.MethodPatch, "/api/games/"+c.gameID, body, nil); err != nil {
		return err
	}
	return c.Load(ctx)
}

// Refresh re-fetches only the named fields and merges them into the local
// session. This is how relay pushes are honoured: the push is a dirty-field
// signal, never a data channel.
func (c *Controller) Refresh(ctx context.Context, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	path := "/api/games/" + c.gameID + "?fields=" + strings.Join(fields, ",")
	var proj map[string]any
	if err := c.do(ctx, http.MethodGet, path, nil, &proj); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range proj {
		if _, err := c.session.SetField(k, v); err != nil {
			return err
		}
	}
	// The refreshed list may no longer contain us.
	if c.playerID != nil && !c.session.HasPlayer(*c.playerID) {
		c.playerID = nil
		_ = c.assoc.Remove(c.gameID)
	}
	return nil
}

// Subscribe opens the controller's single relay connection and starts
// honouring pushes. Any previous subscription is closed first.
func (c *Controller) Subscribe(ctx context.Context) error {
	c.closeWS()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	ws, _, err := websocket.Dial(dialCtx, c.relayURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dialing relay: %w", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.wsMu.Lock()
	c.ws = ws
	c.wsCancel = stop
	c.wsDone = done
	c.wsMu.Unlock()

	if err := c.sendSubscription(runCtx, ws, types.MsgSubscribe); err != nil {
		c.closeWS()
		return err
	}

	go func() {
		defer close(done)
		for {
			_, data, err := ws.Read(runCtx)
			if err != nil {
				return
			}
			var push types.ServerPush
			if err := json.Unmarshal(data, &push); err != nil {
				continue
			}
			if push.MessageType != types.MsgUpdateGameData {
				continue
			}
			rctx, cancel := context.WithTimeout(runCtx, 10*time.Second)
			if err := c.Refresh(rctx, push.Data.Fields); err != nil {
				c.log.Warn("refreshing after push", zap.Error(err))
			}
			cancel()
		}
	}()
	return nil
}

// Close drops the relay subscription. The controller can Subscribe again.
func (c *Controller) Close() {
	c.closeWS()
}

func (c *Controller) closeWS() {
	c.wsMu.Lock()
	ws, stop, done := c.ws, c.wsCancel, c.wsDone
	c.ws, c.wsCancel, c.wsDone = nil, nil, nil
	c.wsMu.Unlock()

	if ws == nil {
		return
	}
	stop()
	_ = ws.Close(websocket.StatusNormalClosure, "")
	<-done
}

// updateSubscription re-announces the local player identity on the open
// subscription, if any. Best-effort: a lost update just means this client
// receives a redundant push or two.
func (c *Controller) updateSubscription() {
	c.wsMu.Lock()
	ws := c.ws
	c.wsMu.Unlock()
	if ws == nil {
		return
	}
	if err := c.sendSubscription(context.Background(), ws, types.MsgUpdateSubscription); err != nil {
		c.log.Warn("updating relay subscription", zap.Error(err))
	}
}

func (c *Controller) sendSubscription(ctx context.Context, ws *websocket.Conn, messageType string) error {
	c.mu.Lock()
	msg := types.ClientMessage{
		ClientType:  types.ClientTypePlayer,
		MessageType: messageType,
		GameID:      c.gameID,
		PlayerID:    c.playerID,
		SocketID:    c.token,
	}
	c.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ws.Write(wctx, websocket.MessageText, payload)
}

func (c *Controller) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return decodeAPIError(res)
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(res *http.Response) error {
	var body struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil && len(body.Errors) > 0 {
		return &APIError{Code: body.Errors[0].Code, Message: body.Errors[0].Message}
	}
	return &APIError{Code: res.StatusCode, Message: http.StatusText(res.StatusCode)}
}
