// Package chat is the client-side core of the store chat: it owns the
// authoritative view of the active conversation, merges fetched history
// with live socket events, and keeps unread counts for everything else.
package chat

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Vovarama1992/shop-chat/internal/identity"
	"github.com/Vovarama1992/shop-chat/internal/transport"
)

// Message is the one tagged message shape used everywhere. Every field the
// wire requires is validated at the boundary; a missing field is a decode
// error, never a runtime guess.
type Message struct {
	ID         string        `json:"id" validate:"required"`
	ChatID     string        `json:"chatId" validate:"required"`
	SenderID   string        `json:"senderId,omitempty"`
	SenderRole identity.Role `json:"senderRole" validate:"required"`
	Text       string        `json:"text" validate:"required"`
	CreatedAt  time.Time     `json:"createdAt" validate:"required"`
}

// Customer is a directory entry subject: one known customer conversation.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

var validate = validator.New()

// DecodeMessage parses and validates a wire message.
func DecodeMessage(data json.RawMessage) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	if err := validate.Struct(m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Transport is the slice of the realtime channel the controller needs.
// *transport.Conn satisfies it.
type Transport interface {
	Emit(event string, payload any) error
	On(event string, h transport.Handler)
	OnConnect(f func())
}

// History fetches the canonical ordered past of a conversation.
type History interface {
	Messages(ctx context.Context, chatID string) ([]Message, error)
}

// CustomerLister fetches the known customers for the admin directory.
type CustomerLister interface {
	Customers(ctx context.Context) ([]Customer, error)
}
