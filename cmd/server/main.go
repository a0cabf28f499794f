package main

import (
	"log/slog"
	"os"

	"github.com/sakif/voicepost/internal/app"
	"github.com/sakif/voicepost/internal/config"
	"github.com/sakif/voicepost/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	if err := server.New(a).Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		a.Close()
		os.Exit(1)
	}
}
