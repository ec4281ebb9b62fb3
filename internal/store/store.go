// Package store opens the configured storage backend and exposes its
// repositories behind the domain interfaces.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/obelixia/reclock/internal/config"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/obelixia/reclock/internal/memory"
	"github.com/obelixia/reclock/internal/postgres"
	"github.com/obelixia/reclock/internal/sqlite"
)

// APIKeys stores hashed API keys.
type APIKeys interface {
	Add(ctx context.Context, tenantID, keyHash, description string) error
	TenantForKeyHash(ctx context.Context, keyHash string) (string, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Driver      string
	Records     record.RecordRepository
	Collections collection.Repository
	Activity    activity.Repository
	APIKeys     APIKeys

	close func() error
}

// Close releases the backend connection.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the backend named by cfg.Driver and brings its schema up
// to date.
func Open(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return openSQLite(cfg.Path)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg.DSN)
	case config.DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

// NewMemory returns a process-local store. Its contents die with the process.
func NewMemory() *Store {
	records := memory.NewRecordRepository()
	return &Store{
		Driver:      config.DriverMemory,
		Records:     records,
		Collections: memory.NewCollectionRepository(records),
		Activity:    memory.NewActivityRepository(),
		APIKeys:     memory.NewAPIKeyRepository(),
	}
}

// NewSQLite wraps an open, migrated SQLite database.
func NewSQLite(db *sqlite.DB) *Store {
	return &Store{
		Driver:      config.DriverSQLite,
		Records:     sqlite.NewRecordRepository(db),
		Collections: sqlite.NewCollectionRepository(db),
		Activity:    sqlite.NewActivityRepository(db),
		APIKeys:     sqlite.NewAPIKeyRepository(db),
		close:       db.Close,
	}
}

func openSQLite(path string) (*Store, error) {
	if err := ensureDBDir(path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewSQLite(db), nil
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{
		Driver:      config.DriverPostgres,
		Records:     postgres.NewRecordRepository(db),
		Collections: postgres.NewCollectionRepository(db),
		Activity:    postgres.NewActivityRepository(db),
		APIKeys:     postgres.NewAPIKeyRepository(db),
		close:       db.Close,
	}, nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
