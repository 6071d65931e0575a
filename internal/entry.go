// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ferrost/othala/internal/api"
	"github.com/ferrost/othala/internal/mcp"
	"github.com/ferrost/othala/internal/resources"
	"github.com/ferrost/othala/internal/tools"
	"github.com/ferrost/othala/internal/vault"
	"github.com/ferrost/othala/internal/watch"
)

// ServerName and ServerVersion identify this build over MCP.
const (
	ServerName    = "othala"
	ServerVersion = "0.3.0"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_api_url", cfg.Vault.APIURL),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Vault client with its structure and notes caches.
	client, err := vault.New(vault.Config{
		APIURL:       cfg.Vault.APIURL,
		APIKey:       cfg.Vault.APIKey,
		Path:         cfg.Vault.Path,
		InsecureTLS:  cfg.Vault.InsecureTLS,
		StructureTTL: cfg.Cache.StructureTTL.Std(),
		NotesTTL:     cfg.Cache.NotesTTL.Std(),
	})
	if err != nil {
		return fmt.Errorf("init vault client: %w", err)
	}

	if !client.Health(ctx) {
		logger.Warn("Vault API not reachable at startup, continuing anyway",
			slog.String("api_url", cfg.Vault.APIURL))
	}

	catalog := resources.New(client, cfg.Cache.ResourceTTL.Std(), logger)

	executor := tools.New(tools.Config{
		Vault:         client,
		Log:           logger,
		Templates:     cfg.Templates.Enabled,
		Invalidate:    catalog.InvalidateCache,
		ServerName:    ServerName,
		ServerVersion: ServerVersion,
	})

	dispatcher := mcp.NewDispatcher(executor, catalog,
		mcp.ServerInfo{Name: ServerName, Version: ServerVersion}, logger)

	encoder := mcp.NewEncoder(cfg.Stream.ChunkSize, cfg.Stream.FrameDelay.Std())

	router := api.NewRouter(api.RouterConfig{
		Dispatcher:    dispatcher,
		Encoder:       encoder,
		Vault:         client,
		Log:           logger,
		AuthToken:     authToken(cfg),
		ServerName:    ServerName,
		ServerVersion: ServerVersion,
	})

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Optional vault watcher: caches invalidated on disk changes.
	if cfg.Watcher.Enabled {
		watcher, err := watch.New(cfg.Vault.Path, cfg.Watcher.Debounce.Std(), func() {
			client.InvalidateCache()
			catalog.InvalidateCache("")
			dispatcher.InvalidateResources()
		}, logger)
		if err != nil {
			return fmt.Errorf("init watcher: %w", err)
		}
		g.Go(func() error {
			if err := watcher.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher error: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func authToken(cfg *Config) string {
	if cfg.Auth.AuthEnabled() {
		return cfg.Auth.Token
	}
	return ""
}
