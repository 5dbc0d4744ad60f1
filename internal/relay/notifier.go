package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/andrewchart/final-rendezvous-game/pkg/types"
)

const dialTimeout = 5 * time.Second

// APIClient notifies a relay running in another process: dial its WebSocket
// endpoint, send one API-origin message, close. Failures are swallowed after
// logging: the store write this announces has already committed, and other
// clients catch up on their next fetch or reconnect.
type APIClient struct {
	url string
	log *zap.Logger
}

func NewAPIClient(url string, log *zap.Logger) *APIClient {
	return &APIClient{url: url, log: log}
}

func (c *APIClient) NotifyGameUpdate(gameID string, fields []string, excludeTokens []string, excludePlayerIDs []int) {
	exclude := make([]any, 0, len(excludeTokens)+len(excludePlayerIDs))
	for _, t := range excludeTokens {
		exclude = append(exclude, t)
	}
	for _, id := range excludePlayerIDs {
		exclude = append(exclude, id)
	}

	msg := types.ClientMessage{
		ClientType:  types.ClientTypeAPIServer,
		MessageType: types.MsgUpdateGameData,
		Data: &types.UpdatePayload{
			GameID:         gameID,
			Fields:         fields,
			ExcludePlayers: exclude,
		},
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()

		ws, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			c.log.Warn("relay unreachable, skipping notification",
				zap.String("game_id", gameID), zap.Error(err))
			return
		}
		defer ws.Close(websocket.StatusNormalClosure, "")

		payload, err := json.Marshal(msg)
		if err != nil {
			return
		}
		if err := ws.Write(ctx, websocket.MessageText, payload); err != nil {
			c.log.Warn("failed sending notification to relay",
				zap.String("game_id", gameID), zap.Error(err))
		}
	}()
}
