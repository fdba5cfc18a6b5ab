package chatserver

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/chat/{chatID}/messages", h.HandleHistory)
	r.Get("/user/customers", h.HandleCustomers)
	r.Get("/chatbot/{chatID}", h.HandleBotHistory)
	r.Post("/chatbot/{chatID}", h.HandleBotSend)
	r.Get("/ws", h.HandleSocket)
}
