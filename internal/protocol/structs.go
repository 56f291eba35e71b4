package protocol

import "encoding/json"

// Message is one decoded frame. The same struct carries both directions:
// clients send login/move/chat requests, the server replies with ack fields
// or a typed event envelope.
type Message struct {
	// client -> server
	PlayerID string `json:"player_id,omitempty"`
	Action   string `json:"action,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
	Pos      *int   `json:"pos,omitempty"`
	Text     string `json:"text,omitempty"`

	// server -> client
	OK     *bool           `json:"ok,omitempty"`
	Status string          `json:"status,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Type   string          `json:"type,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

const (
	ActionMove = "move"
	ActionChat = "chat"

	TypeMatchFound = "match_found"
	TypeGameState  = "game_state"
	TypeChat       = "chat"

	StatusWaiting = "waiting"
)

// MatchFoundPayload is the data of a "match_found" event.
type MatchFoundPayload struct {
	GameID   string `json:"game_id"`
	YouAre   string `json:"you_are"`
	Opponent string `json:"opponent"`
}

// GameStatePayload is the data of a "game_state" event. Empty cells and an
// absent turn are encoded as nulls.
type GameStatePayload struct {
	Status string     `json:"status"`
	Board  [9]*string `json:"board"`
	Turn   *string    `json:"turn"`
	Result string     `json:"result,omitempty"`
}

// ChatPayload is the data of a "chat" event relayed to room participants.
type ChatPayload struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// NewAck - builds an {"ok":...} reply.
func NewAck(ok bool, status, reason string) *Message {
	return &Message{OK: &ok, Status: status, Reason: reason}
}

// NewEvent - builds a {"type":...,"data":...} envelope.
func NewEvent(eventType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{Type: eventType, Data: data}, nil
}
