package types

// Message shapes shared between the relay, the API server's notifier and the
// game client. Everything travels as JSON text frames.

const (
	ClientTypePlayer    = "PLAYER"
	ClientTypeAPIServer = "API_SERVER"

	MsgSubscribe          = "SUBSCRIBE"
	MsgUpdateSubscription = "UPDATE_SUBSCRIPTION"
	MsgUpdateGameData     = "UPDATE_GAME_DATA"
)

// ClientMessage is any inbound frame on a relay connection. Player clients set
// gameId/playerId/socketId; the API server sets Data instead.
type ClientMessage struct {
	ClientType  string         `json:"clientType"`
	MessageType string         `json:"messageType"`
	GameID      string         `json:"gameId,omitempty"`
	PlayerID    *int           `json:"playerId,omitempty"` // nil = spectating, not yet joined
	SocketID    string         `json:"socketId,omitempty"`
	Data        *UpdatePayload `json:"data,omitempty"`
}

// UpdatePayload carries an API-originated change announcement. ExcludePlayers
// is heterogeneous on the wire: numbers are player ids, strings are connection
// tokens.
type UpdatePayload struct {
	GameID         string   `json:"gameId"`
	Fields         []string `json:"fields"`
	ExcludePlayers []any    `json:"excludePlayers,omitempty"`
}

// ServerPush is the dirty-field signal fanned out to subscribed clients. It
// never carries game data; receivers re-fetch the named fields over the API.
type ServerPush struct {
	MessageType string   `json:"messageType"`
	Data        PushData `json:"data"`
}

type PushData struct {
	All    bool     `json:"all"`
	Fields []string `json:"fields"`
}
