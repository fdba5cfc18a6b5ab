package chatserver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vovarama1992/shop-chat/internal/chat"
	"github.com/Vovarama1992/shop-chat/internal/identity"
	"github.com/Vovarama1992/shop-chat/internal/logging"
	"github.com/Vovarama1992/shop-chat/internal/transport"
)

// Hub routes socket traffic between connected clients. Each conversation
// key is a room; send_message is persisted first and then echoed back as
// new_message to every room subscriber. Admins additionally receive every
// new_message regardless of room, which is what feeds the directory's
// unread badges for conversations they have not joined.
type Hub struct {
	store Store
	log   zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
}

func NewHub(store Store) *Hub {
	return &Hub{
		store:   store,
		clients: map[*Client]bool{},
		rooms:   map[string]map[*Client]bool{},
		log:     logging.Logger().With().Str("component", "chat-hub").Logger(),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("total_clients", total).Msg("socket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for key, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, key)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	c.closeSend()
	h.log.Info().Int("total_clients", total).Msg("socket client disconnected")
}

func (h *Hub) joinChat(c *Client, chatID string) {
	if chatID == "" {
		return
	}
	h.mu.Lock()
	room := h.rooms[chatID]
	if room == nil {
		room = map[*Client]bool{}
		h.rooms[chatID] = room
	}
	room[c] = true
	h.mu.Unlock()
}

func (h *Hub) leaveChat(c *Client, chatID string) {
	h.mu.Lock()
	if room := h.rooms[chatID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, chatID)
		}
	}
	h.mu.Unlock()
}

// handleSend persists the message and fans the echo out. The sender sees
// its own message through the same echo; clients do not render locally.
func (h *Hub) handleSend(ctx context.Context, p transport.SendMessagePayload) {
	text := strings.TrimSpace(p.Text)
	if text == "" || p.ChatID == "" {
		return
	}

	m := chat.Message{
		ID:         uuid.NewString(),
		ChatID:     p.ChatID,
		SenderID:   p.SenderID,
		SenderRole: identity.Role(p.SenderRole),
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.store.Append(ctx, m); err != nil {
		h.log.Error().Err(err).Str("chat", m.ChatID).Msg("message append failed")
		return
	}
	if m.SenderRole == identity.RoleCustomer || m.SenderRole == identity.RoleGuest {
		if err := h.store.UpsertCustomer(ctx, chat.Customer{ID: p.SenderID}); err != nil {
			h.log.Warn().Err(err).Msg("customer upsert failed")
		}
	}

	h.broadcast(m)
}

func (h *Hub) broadcast(m chat.Message) {
	frame, err := transport.NewFrame(transport.EventNewMessage, m)
	if err != nil {
		h.log.Error().Err(err).Msg("broadcast encode failed")
		return
	}

	targets := map[*Client]bool{}
	h.mu.RLock()
	for c := range h.rooms[m.ChatID] {
		targets[c] = true
	}
	for c := range h.clients {
		if c.Role() == identity.RoleAdmin {
			targets[c] = true
		}
	}
	h.mu.RUnlock()

	for c := range targets {
		if !c.trySend(frame) {
			// Slow or already disconnecting; drop rather than stall the hub.
			h.log.Warn().Str("chat", m.ChatID).Msg("dropping frame for slow client")
		}
	}
}
