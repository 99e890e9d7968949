// Package config loads application configuration from environment variables.
//
// Env vars (rather than flags or files) keep the two binaries — the API
// server and the mealctl client — configured the same way in development,
// Docker, and CI. The cmd/ entry points call godotenv.Load() first so a
// local .env file works out of the box.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Server holds configuration for the API server.
type Server struct {
	Port   int
	DBPath string

	// JWTSecret signs bearer tokens. At least 16 characters; generate with
	// openssl rand -hex 32.
	JWTSecret string

	// Google OAuth (optional — if unset, only password login is available).
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// Generator selects the nutrition backend: "gemini", "openai" or "mock".
	Generator    string
	GeminiAPIKey string
	OpenAIAPIKey string

	// GenerateWorkers bounds concurrent generation requests.
	GenerateWorkers int
}

// ServerFromEnv reads server configuration from the environment.
func ServerFromEnv() (*Server, error) {
	cfg := &Server{
		Port:            8080,
		DBPath:          "data/nutrilog.db",
		Generator:       "gemini",
		GenerateWorkers: 4,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET environment variable not set")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleCallbackURL = os.Getenv("GOOGLE_CALLBACK_URL")
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	if v := os.Getenv("GENERATOR"); v != "" {
		cfg.Generator = v
	}
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	switch cfg.Generator {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("config: GEMINI_API_KEY environment variable not set")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("config: OPENAI_API_KEY environment variable not set")
		}
	case "mock":
		// No key needed — canned responses for development and tests.
	default:
		return nil, fmt.Errorf("config: unknown GENERATOR %q (want gemini, openai or mock)", cfg.Generator)
	}

	if v := os.Getenv("GENERATE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: invalid GENERATE_WORKERS %q", v)
		}
		cfg.GenerateWorkers = n
	}

	return cfg, nil
}

// Client holds configuration for the mealctl terminal client.
type Client struct {
	ServerURL string
	Token     string // bearer token from /auth/login
}

// ClientFromEnv reads mealctl configuration from the environment.
// The token may be empty: `mealctl login` works without one and prints
// the token to export.
func ClientFromEnv() (*Client, error) {
	cfg := &Client{
		ServerURL: "http://localhost:8080",
		Token:     os.Getenv("NUTRILOG_TOKEN"),
	}
	if v := os.Getenv("NUTRILOG_SERVER"); v != "" {
		cfg.ServerURL = v
	}
	return cfg, nil
}
