package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/editor"
	"github.com/obelixia/reclock/internal/domain/record"
)

// CollectionService defines collection operations needed by MCP.
type CollectionService interface {
	Create(ctx context.Context, tenantID string, req collection.CreateRequest) (*collection.Collection, error)
	List(ctx context.Context, tenantID string) ([]collection.CollectionSummary, error)
}

// RecordService defines record operations needed by MCP. It is also the
// store behind every editor the server opens.
type RecordService interface {
	editor.Store
	Create(ctx context.Context, tenantID string, req record.CreateRequest) (*record.Record, error)
	List(ctx context.Context, tenantID string, opts record.ListRecordsOptions) ([]record.RecordRef, error)
	Delete(ctx context.Context, tenantID, id string) error
	Detect(ctx context.Context, tenantID string, req record.DetectRequest) (*record.ConflictInfo, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Collections CollectionService
	Records     RecordService
	Activity    ActivityService
	// ActivityLog receives conflict resolutions from editors. Optional.
	ActivityLog editor.ActivityLogger
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      auth.TenantResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
	// Editors holds open drafts and their conflicts. A fresh registry is
	// created when nil.
	Editors *editor.Registry
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "reclock",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is local only and never authenticates.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(auth.DefaultTenant))
	}
	server.AddReceivingMiddleware(sessionMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	editors := cfg.Editors
	if editors == nil {
		editors = editor.NewRegistry()
	}
	t := &tools{services: cfg.Services, editors: editors, logger: cfg.Logger}
	t.register(server)

	return server
}
