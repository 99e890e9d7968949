// Package main is the entry point for the nutrilog API server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars, flags, or config files)
// 2. Create dependencies (logger, database connections, etc.)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
// This separation makes the app testable and its components reusable.
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// A project might have multiple executables — here cmd/server (the API)
// and cmd/mealctl (the terminal client). Each gets its own main.go.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/nutrilog/internal/config"
	"github.com/sakif/nutrilog/internal/generator"
	"github.com/sakif/nutrilog/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// slog.New creates a structured logger. slog.NewTextHandler outputs human-readable logs.
	// os.Stdout means logs go to the terminal. slog.LevelDebug enables all log levels.
	//
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	// In production, you'd use LevelInfo or LevelWarn to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ CONFIGURATION ===
	// godotenv.Load reads a local .env file into the process environment if
	// one exists. Missing file is fine — production sets real env vars.
	_ = godotenv.Load()

	cfg, err := config.ServerFromEnv()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure the data directory exists.
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create data directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 3. PICK THE NUTRITION BACKEND ===
	gen, err := newGenerator(cfg, logger)
	if err != nil {
		logger.Error("failed to create generator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. START THE SERVER ===
	srv, err := server.New(cfg, gen, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newGenerator builds the configured nutrition analysis backend.
func newGenerator(cfg *config.Server, logger *slog.Logger) (generator.Generator, error) {
	switch cfg.Generator {
	case "gemini":
		return generator.NewGemini(context.Background(), cfg.GeminiAPIKey)
	case "openai":
		return generator.NewOpenAI(cfg.OpenAIAPIKey, ""), nil
	default:
		// "mock" — validated by config, so anything else can't reach here.
		logger.Warn("using mock generator; nutrition data will be canned")
		return &generator.Mock{}, nil
	}
}
