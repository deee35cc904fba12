// Package main is the entry point for the gitsweep backend.
//
// MAIN PACKAGE IN GO:
// main should stay minimal. Its job is to:
//  1. Read configuration (.env file, then environment variables)
//  2. Create dependencies (logger)
//  3. Start the application
//
// All actual logic lives in internal/ packages.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sakif/gitsweep/internal/config"
	"github.com/sakif/gitsweep/internal/logger"
	"github.com/sakif/gitsweep/internal/server"
)

func main() {
	// === 1. LOAD .env ===
	// A missing .env is normal in production, where the environment is set by
	// the platform; only a present but unreadable file is worth mentioning.
	envErr := godotenv.Load()

	// === 2. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. SET UP LOGGING ===
	// Text with debug detail in development; JSON at info in production.
	log := logger.New(os.Stdout, cfg.LogFormat, !cfg.IsProduction())
	slog.SetDefault(log)
	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn("could not read .env", slog.String("error", envErr.Error()))
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, log, nil)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
