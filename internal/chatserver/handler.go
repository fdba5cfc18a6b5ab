package chatserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vovarama1992/shop-chat/internal/ai"
	"github.com/Vovarama1992/shop-chat/internal/chat"
	"github.com/Vovarama1992/shop-chat/internal/identity"
	"github.com/Vovarama1992/shop-chat/internal/logging"
)

// botThread namespaces bot conversations away from the live-support thread
// of the same customer.
func botThread(chatID string) string {
	return "bot:" + chatID
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser origins are vetted by the cors middleware on the HTTP side;
	// the reference server accepts any socket origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

type Handler struct {
	store  Store
	hub    *Hub
	bot    ai.Responder
	secret string
}

func NewHandler(store Store, hub *Hub, bot ai.Responder, secret string) *Handler {
	return &Handler{store: store, hub: hub, bot: bot, secret: secret}
}

// HandleHistory serves GET /chat/{chatID}/messages.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	if !mayRead(actor, chatID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	msgs, err := h.store.History(r.Context(), chatID)
	if err != nil {
		logging.Error().Err(err).Str("chat", chatID).Msg("history read failed")
		http.Error(w, "history error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"messages": msgs})
}

// HandleCustomers serves GET /user/customers (admin only).
func (h *Handler) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	actor, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.Role != identity.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	customers, err := h.store.Customers(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("customer list read failed")
		http.Error(w, "customers error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"customers": customers})
}

// HandleBotHistory serves GET /chatbot/{chatID}. Guests are allowed.
func (h *Handler) HandleBotHistory(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	msgs, err := h.store.History(r.Context(), botThread(chatID))
	if err != nil {
		logging.Error().Err(err).Str("chat", chatID).Msg("bot history read failed")
		http.Error(w, "history error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"messages": withPublicChatID(msgs, chatID)})
}

// HandleBotSend serves POST /chatbot/{chatID}: append the visitor's text,
// run the responder and return the full updated conversation.
func (h *Handler) HandleBotSend(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}

	role := identity.RoleGuest
	if actor, err := h.authenticate(r); err == nil {
		role = actor.Role
	}

	thread := botThread(chatID)
	now := time.Now().UTC()
	userMsg := chat.Message{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderID:   identity.CustomerID(chatID),
		SenderRole: role,
		Text:       text,
		CreatedAt:  now,
	}
	if err := h.store.Append(r.Context(), withThread(userMsg, thread)); err != nil {
		logging.Error().Err(err).Str("chat", chatID).Msg("bot append failed")
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	prior, err := h.store.History(r.Context(), thread)
	if err != nil {
		logging.Error().Err(err).Str("chat", chatID).Msg("bot history read failed")
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	reply, err := h.bot.Reply(r.Context(), prior, text)
	if err != nil {
		logging.Error().Err(err).Str("chat", chatID).Msg("bot reply failed")
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	botMsg := chat.Message{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderID:   "bot",
		SenderRole: identity.RoleBot,
		Text:       reply,
		CreatedAt:  now.Add(time.Millisecond),
	}
	if err := h.store.Append(r.Context(), withThread(botMsg, thread)); err != nil {
		logging.Error().Err(err).Str("chat", chatID).Msg("bot append failed")
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	msgs, err := h.store.History(r.Context(), thread)
	if err != nil {
		logging.Error().Err(err).Str("chat", chatID).Msg("bot history read failed")
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"messages": withPublicChatID(msgs, chatID)})
}

// HandleSocket upgrades GET /ws to the realtime channel.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("socket upgrade failed")
		return
	}

	c := newClient(h.hub, conn)
	h.hub.register(c)
	c.start()
}

// authenticate verifies the bearer credential and returns the actor it
// carries.
func (h *Handler) authenticate(r *http.Request) (identity.Actor, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return identity.VerifyToken(raw, h.secret)
}

// mayRead: admins read any conversation, everyone else only their own.
func mayRead(actor identity.Actor, chatID string) bool {
	if actor.Role == identity.RoleAdmin {
		return true
	}
	key, err := identity.KeyForActor(actor)
	return err == nil && key == chatID
}

// withThread stores a message under the internal thread id while keeping
// the public ChatID the client knows.
func withThread(m chat.Message, thread string) chat.Message {
	m.ChatID = thread
	return m
}

// withPublicChatID maps stored bot messages back to the conversation id
// the client asked for.
func withPublicChatID(msgs []chat.Message, chatID string) []chat.Message {
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		m.ChatID = chatID
		out[i] = m
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
