package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config carries everything the server binary needs from the environment.
type Config struct {
	Port        string
	DatabaseURL string // optional; empty means in-memory message store
	JWTSecret   string
	OpenAIKey   string // optional; empty disables the AI bot fallback
	OpenAIModel string
	LogLevel    string
	LogFormat   string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
