package transport

import (
	"github.com/goccy/go-json"
)

// Wire events, shared by client and server.
const (
	EventJoin        = "join"         // client -> server: register presence
	EventJoinChat    = "join_chat"    // client -> server: scope delivery to a conversation
	EventLeaveChat   = "leave_chat"   // client -> server: release delivery scoping
	EventSendMessage = "send_message" // client -> server: submit a new message
	EventNewMessage  = "new_message"  // server -> client: deliver a message to subscribers
)

// Frame is the envelope every socket message travels in.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewFrame marshals payload into a Frame for the given event.
func NewFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: data}, nil
}

// JoinPayload registers the actor's presence on the socket.
type JoinPayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// JoinChatPayload scopes delivery to one conversation key.
type JoinChatPayload struct {
	ChatID string `json:"chatId"`
}

// LeaveChatPayload releases delivery scoping for a conversation key.
type LeaveChatPayload struct {
	ChatID string `json:"chatId"`
}

// SendMessagePayload submits a composed message.
type SendMessagePayload struct {
	ChatID     string `json:"chatId"`
	SenderID   string `json:"senderId"`
	SenderRole string `json:"senderRole"`
	Text       string `json:"text"`
}
