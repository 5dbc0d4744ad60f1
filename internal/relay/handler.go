package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/pkg/types"
)

const (
	outboxSize   = 8
	writeTimeout = 3 * time.Second
)

// Handler upgrades the request to a WebSocket and bridges it onto the relay:
// a writer goroutine drains the connection's outbox while the read loop
// translates inbound frames into relay messages.
func Handler(rl *Relay, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "bye")

		conn := NewConn(outboxSize)
		if !send(rl, Join{Conn: conn}) {
			return
		}
		defer func() { send(rl, Leave{Conn: conn}) }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for push := range conn.outbox {
				payload, err := json.Marshal(push)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = c.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Subscriptions idle between game events, so reads get no deadline
		// of their own; the connection lives until the client goes away.
		for {
			_, data, err := c.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var msg types.ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Warn("discarding unparseable relay message", zap.Error(err))
				continue
			}
			dispatch(rl, conn, msg)
		}
	}
}

func dispatch(rl *Relay, conn *Conn, msg types.ClientMessage) {
	switch msg.ClientType {
	case types.ClientTypePlayer:
		switch msg.MessageType {
		case types.MsgSubscribe:
			send(rl, Subscribe{
				Conn:     conn,
				GameID:   msg.GameID,
				PlayerID: msg.PlayerID,
				Token:    msg.SocketID,
				SetToken: true,
			})
		case types.MsgUpdateSubscription:
			send(rl, Subscribe{
				Conn:     conn,
				GameID:   msg.GameID,
				PlayerID: msg.PlayerID,
			})
		}

	case types.ClientTypeAPIServer:
		if msg.MessageType != types.MsgUpdateGameData || msg.Data == nil {
			return
		}
		tokens, playerIDs := SplitExclusions(msg.Data.ExcludePlayers)
		send(rl, Notify{
			GameID:           msg.Data.GameID,
			Fields:           msg.Data.Fields,
			ExcludeTokens:    tokens,
			ExcludePlayerIDs: playerIDs,
		})
	}
}

// send delivers a message to the relay unless its loop has already exited, in
// which case it reports false instead of blocking forever.
func send(rl *Relay, msg Msg) bool {
	select {
	case rl.inbox <- msg:
		return true
	case <-rl.Done():
		return false
	}
}
