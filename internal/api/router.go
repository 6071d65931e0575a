package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ferrost/othala/internal/mcp"
	"github.com/ferrost/othala/internal/vault"
)

// RouterConfig carries everything the router wires together.
type RouterConfig struct {
	Dispatcher *mcp.Dispatcher
	Encoder    *mcp.Encoder
	Vault      *vault.Client
	Log        *slog.Logger

	// AuthToken guards /mcp when set; health and the descriptor stay open.
	AuthToken string

	ServerName    string
	ServerVersion string
}

// NewRouter assembles the HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)

	r.Get("/", descriptorHandler(cfg))
	r.Get("/health", healthHandler(cfg.Vault))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		r.Method(http.MethodPost, "/mcp", NewMCPHandler(cfg.Dispatcher, cfg.Encoder, cfg.Log))
	})

	return r
}

func descriptorHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":             cfg.ServerName,
			"version":          cfg.ServerVersion,
			"protocol":         "mcp",
			"protocol_version": mcp.ProtocolVersion,
			"endpoints": map[string]string{
				"mcp":    "/mcp",
				"health": "/health",
			},
		})
	}
}

func healthHandler(vc *vault.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		healthy := vc.Health(ctx)
		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		writeJSON(w, status, map[string]any{
			"status":     state,
			"vault_api":  healthy,
			"checked_at": time.Now().UTC(),
		})
	}
}
