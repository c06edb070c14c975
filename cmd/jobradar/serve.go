package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/pipeline"
	"github.com/jonathan/job-radar/internal/server"
	"github.com/jonathan/job-radar/internal/server/ratelimit"
)

var (
	serveAddr     string
	serveNoServer bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the REST API server",
	Long: `Start the discovery scheduler and an HTTP server exposing cycles, schedule
status, progress events and stored postings. SIGHUP reloads the config file;
SIGINT or SIGTERM shuts down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr and JOBRADAR_ADDR)")
	serveCmd.Flags().BoolVar(&serveNoServer, "no-server", false, "Run the scheduler only, without the HTTP API")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	auth, err := config.NewAuthConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := server.NewHub()
	orch, closeChannels, err := a.newOrchestrator(store, hub.Publish)
	if err != nil {
		return err
	}
	defer closeChannels()

	go reloadOnHangup(ctx, orch, a.logger)

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	var serveErr error
	if serveNoServer {
		a.logger.Info("running scheduler without HTTP API")
		<-ctx.Done()
	} else {
		addr := a.cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		if auth == nil {
			a.logger.Warn("JWT_SECRET not set, mutating endpoints are unauthenticated")
		}
		srv := server.New(server.Config{
			Addr:        addr,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			Auth:        auth,
			RateLimit:   ratelimit.LoadConfig(),
			Hub:         hub,
		}, store, orch, a.logger)
		serveErr = srv.Start(ctx)
	}

	a.logger.Info("stopping scheduler")
	timeout := a.cfg.Pipeline.ShutdownTimeout.Duration + 5*time.Second
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	stopErr := orch.Stop(stopCtx)
	return errors.Join(serveErr, stopErr)
}

// reloadOnHangup re-reads the config file on every SIGHUP. A bad file is
// logged and the running config stays in place.
func reloadOnHangup(ctx context.Context, orch *pipeline.Orchestrator, logger logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := orch.ReloadFromFile(); err != nil {
				logger.WithError(err).Error("config reload failed, keeping current config")
				continue
			}
			logger.Info("config reloaded on SIGHUP")
		}
	}
}
