// Package app wires configuration, storage and services into the REST and
// MCP handlers the server binary runs.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/config"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/editor"
	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/obelixia/reclock/internal/mcp"
	"github.com/obelixia/reclock/internal/store"
	"github.com/obelixia/reclock/internal/transport"
)

// MCPSessionTimeout closes idle streamable HTTP sessions.
const MCPSessionTimeout = 30 * time.Minute

// App holds the services of one running server.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	Store       *store.Store
	Records     *record.Service
	Collections *collection.Service
	Activity    *activity.Service
	Editors     *editor.Registry
	Resolver    auth.TenantResolver
}

// Option configures an App.
type Option func(*App)

// WithClock replaces time.Now as the source of record versions.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.Records = record.NewService(a.Store.Records, a.Collections, a.Activity, a.logger,
			record.WithTolerance(a.cfg.Lock.Tolerance), record.WithClock(now))
	}
}

// Open connects to the configured store and builds the app on it.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	s, err := store.Open(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return New(cfg, s, logger, opts...), nil
}

// New builds the app on an open store.
func New(cfg config.Config, s *store.Store, logger *slog.Logger, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		Store:   s,
		Editors: editor.NewRegistry(),
	}
	a.Collections = collection.NewService(s.Collections, logger)
	a.Activity = activity.NewService(s.Activity, logger)
	a.Records = record.NewService(s.Records, a.Collections, a.Activity, logger,
		record.WithTolerance(cfg.Lock.Tolerance))
	a.Resolver = a.resolver()

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// resolver accepts API keys and, when a secret is configured, JWTs.
func (a *App) resolver() auth.TenantResolver {
	if !a.cfg.Auth.Enabled {
		return auth.Static(auth.DefaultTenant)
	}
	chain := auth.Chain{auth.NewAPIKeyResolver(a.Store.APIKeys)}
	if a.cfg.Auth.JWTSecret != "" {
		chain = append(chain, auth.NewJWTManager(a.cfg.Auth.JWTSecret))
	}
	return chain
}

// MCPServer builds the MCP server for the given transport mode.
func (a *App) MCPServer(mode string) *sdkmcp.Server {
	return mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Collections: a.Collections,
			Records:     a.Records,
			Activity:    a.Activity,
			ActivityLog: a.Activity,
		},
		Resolver:      a.Resolver,
		AuthEnabled:   a.cfg.Auth.Enabled,
		TransportMode: mode,
		Logger:        a.logger,
		Editors:       a.Editors,
	})
}

// Handler returns the HTTP handler serving /health, the REST API under /v1
// and the MCP streamable HTTP endpoint under /mcp.
func (a *App) Handler() http.Handler {
	authMiddleware := transport.DefaultTenantMiddleware(auth.DefaultTenant)
	if a.cfg.Auth.Enabled {
		authMiddleware = transport.AuthMiddleware(a.Resolver)
	}
	router := transport.NewServer(transport.Services{
		Records:     a.Records,
		Collections: a.Collections,
		Activity:    a.Activity,
	}, authMiddleware, a.logger)

	mcpServer := a.MCPServer(config.TransportHTTP)
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: MCPSessionTimeout,
		},
	)
	cleanup := mcp.SessionCleanup(a.Editors, a.Resolver, a.cfg.Auth.Enabled, a.logger)
	router.Handle("/mcp", cleanup(mcpHandler))
	router.Handle("/mcp/*", cleanup(mcpHandler))

	return router
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
