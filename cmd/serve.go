package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/config"
	"github.com/artifex-heritage/artifex/internal/frontql"
	"github.com/artifex-heritage/artifex/internal/guide"
	"github.com/artifex-heritage/artifex/internal/handlers"
	"github.com/artifex-heritage/artifex/internal/scheduler"
	"github.com/artifex-heritage/artifex/internal/storage"
	"github.com/artifex-heritage/artifex/internal/upload"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const sessionPruneSpec = "@every 1h"

func newServeCmd() *cobra.Command {
	var port string
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalogue HTTP API and front end",
		Long: `Starts the Artifex HTTP API on the configured port.

The catalogue is fetched once at startup and held in memory. Visitors search and
filter it through /api/collections; curators edit it through /api/admin. Set
CATALOGUE_REFRESH_CRON to re-fetch on a schedule.`,
		Example: `  # Start server on default port 8888
  artifex serve

  # Start server on custom port, refreshing every 10 minutes
  CATALOGUE_REFRESH_CRON="0 */10 * * * *" artifex serve --port 3000

  # Serve an exported snapshot without a backend
  artifex serve --snapshot catalogue.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(snapshotOverride(snapshotPath), func(c *config.Config) {
				if port != "" {
					c.Server.Port = port
				}
			})
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (defaults to PORT or 8888)")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Serve a snapshot file instead of the remote backend")

	return cmd
}

func runServer(parent context.Context, cfg *config.Config) error {
	client := newFrontQLClient(cfg)
	fetcher := newFetcher(cfg, client)
	snapshots := storage.NewSnapshotStore()
	sessions := storage.New()

	deps := handlers.Deps{
		Snapshots:   snapshots,
		Sessions:    sessions,
		Fetcher:     fetcher,
		AdminAPIKey: cfg.Server.AdminAPIKey,
		SessionTTL:  cfg.Server.AdminSessionTTL,
		StaticDir:   cfg.Server.StaticDir,
	}
	if client != nil {
		deps.Artifacts = catalogue.NewRepository(client, cfg.FrontQL.CollectionsResource)
		deps.Users = frontql.UserStore{Client: client, Resource: cfg.FrontQL.UsersResource}
	} else {
		slog.Warn("No backend configured, artifact editing and login are disabled")
	}
	if cfg.Upload.URL != "" {
		deps.Uploader = upload.NewClient(cfg.Upload.URL, cfg.Upload.Username, cfg.Upload.Password, cfg.Upload.ImageBaseURL)
	} else {
		slog.Warn("FILE_UPLOAD_URL not set, uploads are disabled")
	}
	if svc, err := newGuide(cfg, snapshots); err != nil {
		slog.Warn("Guide disabled", "error", err)
	} else {
		deps.Guide = svc
	}

	g, ctx := errgroup.WithContext(parent)
	handler := handlers.New(ctx, deps)

	sched := scheduler.New()
	if err := sched.Add(ctx, sessionPruneSpec, "prune-sessions", func(context.Context) error {
		if n := sessions.Prune(); n > 0 {
			slog.Info("Pruned expired admin sessions", "count", n)
		}
		return nil
	}); err != nil {
		return err
	}
	if cfg.Catalogue.RefreshCron != "" {
		if err := sched.Add(ctx, cfg.Catalogue.RefreshCron, "refresh-catalogue", func(ctx context.Context) error {
			return snapshots.Refresh(ctx, fetcher)
		}); err != nil {
			return err
		}
	}

	addr := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		if err := snapshots.Refresh(ctx, fetcher); err != nil {
			slog.Error("Initial catalogue fetch failed, visitors will see a retry prompt", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		return sched.Run(ctx)
	})

	g.Go(func() error {
		slog.Info("Artifex interface available", "addr", addr, "url", "http://localhost"+addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down server...")
		// Give server 5 seconds to shut down gracefully
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	handler.Wait()
	snapshots.Close()
	if err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}

func newGuide(cfg *config.Config, reader guide.CatalogueReader) (*guide.Service, error) {
	provider, err := guide.NewProvider(cfg.Guide.Provider)
	if err != nil {
		return nil, err
	}
	return guide.NewService(provider, reader, guide.Options{
		Provider:      cfg.Guide.Provider,
		Model:         cfg.Guide.Model,
		Temperature:   cfg.Guide.Temperature,
		RatePerMinute: cfg.Guide.RatePerMinute,
		Burst:         cfg.Guide.Burst,
	}), nil
}
