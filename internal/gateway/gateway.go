// ABOUTME: Gateway orchestrator wiring store, validator, provider client and HTTP server
// ABOUTME: Manages route registration, request gating and server lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/auth-gateway/internal/auth"
	"github.com/2389/auth-gateway/internal/config"
	"github.com/2389/auth-gateway/internal/provider"
	"github.com/2389/auth-gateway/internal/store"
)

// tokenExchanger is the outbound dependency of the refresh flow.
// Nil when the provider connection is not configured.
type tokenExchanger interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*provider.TokenPair, error)
}

// Gateway orchestrates the auth-gateway server components. It owns the
// user store, the token validator, the optional provider client and the
// HTTP server.
type Gateway struct {
	config     *config.Config
	store      store.Store
	validator  *auth.Validator
	exchanger  tokenExchanger
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a gateway from the given configuration: opens the store,
// constructs the validator (failing fast on a missing secret) and, when
// configured, the provider client; then wires the HTTP routes behind the
// request gate.
func New(cfg *config.Config) (*Gateway, error) {
	logger := slog.Default().With("component", "gateway")

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	validator, err := auth.NewValidator([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initializing token validator: %w", err)
	}

	var exchanger tokenExchanger
	if cfg.Provider.Enabled() {
		client, err := provider.NewClient(cfg.Provider.URL, cfg.Provider.APIKey, cfg.Provider.Timeout)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("initializing provider client: %w", err)
		}
		exchanger = client
	} else {
		logger.Warn("identity provider not configured, refresh flow disabled")
	}

	g := &Gateway{
		config:    cfg,
		store:     st,
		validator: validator,
		exchanger: exchanger,
		logger:    logger,
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.buildHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// buildHandler assembles the route mux behind the request gate.
func (g *Gateway) buildHandler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	// Auth flows - public by allow-list
	mux.HandleFunc("/login", g.handleLogin)
	mux.HandleFunc("/logout", g.handleLogout)
	mux.HandleFunc("/refresh", g.handleRefresh)

	// Protected routes
	mux.HandleFunc("/me", g.handleMe)

	publicPaths := append([]string{"/health", "/health/ready"}, g.config.Auth.PublicPaths...)
	gate := auth.NewRequestGate(g.validator, g.store, publicPaths)

	return trimTrailingSlash(gate.Middleware(mux))
}

// trimTrailingSlash normalizes request paths so /login/ and /login hit
// the same route.
func trimTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimRight(r.URL.Path, "/")
		}
		next.ServeHTTP(w, r)
	})
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (g *Gateway) Start() error {
	g.logger.Info("http server listening", "addr", g.httpServer.Addr)
	if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}

// handleHealth handles GET /health liveness checks.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady handles GET /health/ready readiness checks. Ready means
// the database answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := g.store.Ping(r.Context()); err != nil {
		g.logger.Error("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
