//go:build !test

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/preinstall/internal/api"
	"github.com/jbweber/homelab/preinstall/internal/datastore"
	"github.com/jbweber/homelab/preinstall/internal/logging"
	"github.com/jbweber/homelab/preinstall/internal/metrics"
	"github.com/jbweber/homelab/preinstall/internal/repository"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ds, err := datastore.Open(cfg.DatabasePath(), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer func() {
				if err := ds.Close(); err != nil {
					logger.Warnw("failed to close database", "error", err)
				}
			}()

			if v, err := ds.SchemaVersion(cmd.Context()); err == nil {
				logger.Infow("database schema", "version", v, "path", cfg.DatabasePath())
			}

			m := metrics.New()
			a, err := api.NewAPI(repository.NewRecordRepository(ds.DB), cfg, logger, m)
			if err != nil {
				return err
			}

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.RealIP)
			r.Use(middleware.Recoverer)
			r.Use(m.Middleware)

			a.RegisterRoutes(r)

			// Health check endpoint
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				if err := ds.Ping(r.Context()); err != nil {
					http.Error(w, "database unavailable", http.StatusServiceUnavailable)
					return
				}
				if _, err := fmt.Fprintln(w, "Preinstall service is running!"); err != nil {
					logger.Warnw("failed to write response", "error", err)
				}
			})

			server := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Infow("starting preinstall service", "addr", server.Addr, "version", version)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Infow("shutting down", "sessions", a.Sessions().Len())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
			logger.Infow("server stopped")
			return nil
		},
	}
}
