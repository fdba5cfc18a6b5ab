package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"

	"github.com/Vovarama1992/shop-chat/internal/ai"
	"github.com/Vovarama1992/shop-chat/internal/chatserver"
	"github.com/Vovarama1992/shop-chat/internal/config"
	"github.com/Vovarama1992/shop-chat/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if cfg.JWTSecret == "" {
		logging.Error().Msg("JWT_SECRET is not set")
		os.Exit(1)
	}

	// --- Store ---
	var store chatserver.Store = chatserver.NewMemStore()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logging.Error().Err(err).Msg("db open error")
			os.Exit(1)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			cancel()
			logging.Error().Err(err).Msg("db ping error")
			os.Exit(1)
		}
		cancel()
		store = chatserver.NewPGStore(db)
	}

	// --- Bot responder ---
	var fallback ai.Responder
	if cfg.OpenAIKey != "" {
		fallback = ai.NewOpenAIResponder(cfg.OpenAIKey, cfg.OpenAIModel)
	}
	responder := chatserver.NewCannedResponder(fallback)

	// --- Chat module wiring ---
	hub := chatserver.NewHub(store)
	handler := chatserver.NewHandler(store, hub, responder, cfg.JWTSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		chatserver.RegisterRoutes(r, handler)
	})

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("shutdown error")
	}
}
