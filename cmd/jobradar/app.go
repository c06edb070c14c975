package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonathan/job-radar/internal/alert"
	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/pipeline"
	"github.com/jonathan/job-radar/internal/sources"
)

// connectTimeout bounds the initial database connection.
const connectTimeout = 15 * time.Second

// app holds what every command needs: the loaded config and a logger.
type app struct {
	cfg    *config.Config
	logger logging.Logger
}

// loadApp reads the config file and builds a logger writing to w. The
// --log-level flag wins over the file and LOG_LEVEL.
func loadApp(w io.Writer, jsonLogs bool) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	var logger logging.Logger
	if jsonLogs {
		logger = logging.NewLogger()
		logger.SetOutput(w)
	} else {
		logger = logging.NewTextLogger(w)
	}
	switch {
	case logLevel != "":
		logger.SetLevel(logging.ParseLevel(logLevel))
	case cfg.LogLevel != "":
		logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// openStore connects to PostgreSQL and applies the schema.
func (a *app) openStore(ctx context.Context) (*db.DB, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is not configured (set DATABASE_URL)")
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	store, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// newOrchestrator wires alert channels and source adapters around store.
// The returned cleanup closes the alert channels.
func (a *app) newOrchestrator(store *db.DB, onProgress func(pipeline.ProgressEvent)) (*pipeline.Orchestrator, func(), error) {
	channels, err := alert.BuildChannels(a.cfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build alert channels: %w", err)
	}
	dispatcher := alert.NewDispatcher(store, channels.List, alert.Options{
		Threshold: a.cfg.Alerts.Threshold,
		Timeout:   a.cfg.Alerts.Timeout.Duration,
	}, a.logger)

	orch, err := pipeline.New(a.cfg, pipeline.Deps{
		Store:      store,
		Sources:    sources.NewRegistry(),
		Notifier:   dispatcher,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		Logger:     a.logger,
		OnProgress: onProgress,
	})
	if err != nil {
		channels.Close()
		return nil, nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return orch, channels.Close, nil
}
