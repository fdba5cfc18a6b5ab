package ai

import (
	"context"

	"github.com/Vovarama1992/shop-chat/internal/chat"
)

// Responder produces a bot reply from the running conversation. It knows
// nothing about transports or storage.
type Responder interface {
	Reply(ctx context.Context, history []chat.Message, userText string) (string, error)
}
