// cmd/seeder/main.go loads a directory of reference PDFs into the
// knowledge base through the backend's upload endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ammerola/medboard/internal/adapters/backend"
	"github.com/ammerola/medboard/internal/pkg/config"
	"github.com/ammerola/medboard/internal/pkg/logger"
)

func main() {
	var (
		documentsDir = flag.String("documents", "./documents", "Directory containing PDF documents")
		stateFile    = flag.String("state", "./.seed_state.json", "State file for tracking progress")
		logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun       = flag.Bool("dry-run", false, "Validate documents without uploading them")
		force        = flag.Bool("force", false, "Reload documents already recorded in the state file")
		reset        = flag.Bool("reset", false, "Clear the knowledge base before loading")
	)
	flag.Parse()

	slogger := logger.SetupLogger(*logLevel, "text")

	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := LoadState(*stateFile)
	if err != nil {
		slogger.Error("failed to load state", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client := backend.NewClient(backend.ConfigFrom(cfg.Backend), slogger.Logger)
	loader := NewLoader(client, *dryRun, *force, slogger.Logger)

	if *reset {
		if err := loader.Reset(ctx, state); err != nil {
			slogger.Error("reset failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slogger.Info("knowledge base cleared", slog.String("backend", cfg.Backend.BaseURL))
	}

	summary, runErr := loader.Run(ctx, *documentsDir, state)
	if !*dryRun {
		if err := state.Save(*stateFile); err != nil {
			slogger.Error("failed to save state", slog.String("error", err.Error()))
		}
	}
	if summary != nil {
		fmt.Print(summary.String())
	}
	if runErr != nil {
		slogger.Error("seeding aborted", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	if len(summary.Failed) > 0 {
		os.Exit(2)
	}
}
