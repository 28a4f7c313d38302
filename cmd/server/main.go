package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"forumsync/internal/app"
	"forumsync/internal/config"
	"forumsync/internal/util"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		util.NewLogger("info").WithError(err).Fatal("Failed to load config")
	}

	log := util.NewLogger(cfg.LogLevel)
	if cfg.LogFile != "" {
		// Tee to a file so a log shipper can pick it up.
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err == nil {
			f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err == nil {
				defer f.Close()
				log.SetOutput(io.MultiWriter(os.Stderr, f))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := app.NewServer(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize server")
	}
	defer server.Close()

	if err := server.Run(ctx); err != nil {
		log.WithError(err).Error("Server stopped with error")
		return
	}
	log.Info("Server stopped")
}
