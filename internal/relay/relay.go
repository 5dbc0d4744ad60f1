// Package relay fans out "data changed" signals to browsers subscribed to a
// game session. It carries no game data: a push only names the dirty fields
// and receivers re-fetch them over the API.
package relay

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/pkg/types"
)

type Msg interface{ isRelayMsg() }

// Join registers a connection with an empty subscription. Until the client
// subscribes it matches no game and receives nothing.
type Join struct{ Conn *Conn }

type Leave struct{ Conn *Conn }

// Subscribe overwrites the connection's association. SUBSCRIBE sets the
// connection token as well; UPDATE_SUBSCRIPTION leaves the original token in
// place so exclusion keeps working across re-subscribes.
type Subscribe struct {
	Conn     *Conn
	GameID   string
	PlayerID *int
	Token    string
	SetToken bool
}

// Notify is an API-originated change announcement to fan out.
type Notify struct {
	GameID           string
	Fields           []string
	ExcludeTokens    []string
	ExcludePlayerIDs []int
}

// GetState reflects registry state without data races. Test-only.
type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRelayMsg()      {}
func (Leave) isRelayMsg()     {}
func (Subscribe) isRelayMsg() {}
func (Notify) isRelayMsg()    {}
func (GetState) isRelayMsg()  {}
func (Shutdown) isRelayMsg()  {}

type View struct {
	NumConns int
}

// Conn is the relay's handle for one browser tab. The outbox is drained by
// the connection's writer goroutine.
type Conn struct {
	outbox chan types.ServerPush
}

func NewConn(buffer int) *Conn {
	return &Conn{outbox: make(chan types.ServerPush, buffer)}
}

// Outbox is where this connection receives its pushes. Closed when the
// connection leaves or the relay shuts down.
func (c *Conn) Outbox() <-chan types.ServerPush { return c.outbox }

// subscription is the mutable association a client sets on its connection.
type subscription struct {
	gameID   string
	playerID *int // nil while spectating
	token    string
}

// Relay owns the connection registry. The registry is mutated only inside
// loop, so no locking is needed: everything else talks to it through the
// inbox.
type Relay struct {
	inbox  chan Msg
	conns  map[*Conn]*subscription
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, log *zap.Logger) *Relay {
	ctx, cancel := context.WithCancel(parent)
	rl := &Relay{
		inbox:  make(chan Msg, 64),
		conns:  make(map[*Conn]*subscription),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go rl.loop()
	return rl
}

func (rl *Relay) Inbox() chan<- Msg { return rl.inbox }

// Done is closed once the relay loop has exited. Senders select on it so
// handlers never block on a relay that will not drain its inbox.
func (rl *Relay) Done() <-chan struct{} { return rl.ctx.Done() }

// NotifyGameUpdate implements the API's notifier for the single-process
// deployment. Fire-and-forget: a full inbox drops the announcement and
// clients catch up on their next fetch.
func (rl *Relay) NotifyGameUpdate(gameID string, fields []string, excludeTokens []string, excludePlayerIDs []int) {
	msg := Notify{
		GameID:           gameID,
		Fields:           fields,
		ExcludeTokens:    excludeTokens,
		ExcludePlayerIDs: excludePlayerIDs,
	}
	select {
	case rl.inbox <- msg:
	default:
		rl.log.Warn("relay inbox full, dropping notification",
			zap.String("game_id", gameID))
	}
}

func (rl *Relay) loop() {
	for {
		select {
		case <-rl.ctx.Done():
			rl.shutdown()
			return

		case m := <-rl.inbox:
			switch msg := m.(type) {
			case Join:
				rl.conns[msg.Conn] = &subscription{}

			case Leave:
				if _, ok := rl.conns[msg.Conn]; ok {
					delete(rl.conns, msg.Conn)
					close(msg.Conn.outbox)
				}

			case Subscribe:
				sub := rl.conns[msg.Conn]
				if sub == nil {
					break
				}
				sub.gameID = msg.GameID
				sub.playerID = msg.PlayerID
				if msg.SetToken {
					sub.token = msg.Token
				}

			case Notify:
				rl.fanOut(msg)

			case GetState:
				msg.Reply <- View{NumConns: len(rl.conns)}

			case Shutdown:
				rl.shutdown()
				return
			}
		}
	}
}

// fanOut pushes the dirty-field signal to every subscribed connection of the
// game, minus the excluded originator. Delivery is best-effort per
// connection: a full outbox drops that one push and the rest still go out.
func (rl *Relay) fanOut(msg Notify) {
	push := types.ServerPush{
		MessageType: types.MsgUpdateGameData,
		Data:        types.PushData{All: false, Fields: msg.Fields},
	}

	for conn, sub := range rl.conns {
		if sub.gameID == "" || sub.gameID != msg.GameID {
			continue
		}
		if excluded(sub, msg) {
			continue
		}
		select {
		case conn.outbox <- push:
		default:
			rl.log.Warn("connection outbox full, dropping push",
				zap.String("game_id", msg.GameID))
		}
	}
}

func excluded(sub *subscription, msg Notify) bool {
	if sub.token != "" && slices.Contains(msg.ExcludeTokens, sub.token) {
		return true
	}
	if sub.playerID != nil && slices.Contains(msg.ExcludePlayerIDs, *sub.playerID) {
		return true
	}
	return false
}

func (rl *Relay) shutdown() {
	for conn := range rl.conns {
		close(conn.outbox)
		delete(rl.conns, conn)
	}
	rl.cancel()
}

// SplitExclusions separates a wire exclusion list into tokens and player
// ids. JSON numbers arrive as float64; anything else is ignored.
func SplitExclusions(list []any) (tokens []string, playerIDs []int) {
	for _, v := range list {
		switch x := v.(type) {
		case string:
			tokens = append(tokens, x)
		case float64:
			playerIDs = append(playerIDs, int(x))
		case int:
			playerIDs = append(playerIDs, x)
		}
	}
	return tokens, playerIDs
}
