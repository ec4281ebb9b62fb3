// Package testserver runs a complete reclock server over a shared-cache
// in-memory SQLite database for end-to-end tests.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obelixia/reclock/internal/app"
	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/config"
	"github.com/obelixia/reclock/internal/sqlite"
	"github.com/obelixia/reclock/internal/store"
)

// Start is the clock reading every test server begins at.
var Start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type TestServer struct {
	Server   *httptest.Server
	App      *app.App
	DB       *sqlite.DB
	Clock    *Clock
	Token    string
	TenantID string
}

// New starts a server with auth enabled and token registered as an API key
// for tenantID.
func New(t *testing.T, token, tenantID string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	cfg := config.Default()
	cfg.Auth.Enabled = true
	clock := &Clock{now: Start}
	a := app.New(cfg, store.NewSQLite(db), nil, app.WithClock(clock.Now))
	server := httptest.NewServer(a.Handler())

	ts := &TestServer{
		Server:   server,
		App:      a,
		DB:       db,
		Clock:    clock,
		Token:    token,
		TenantID: tenantID,
	}

	require.NoError(t, ts.AddAPIKey(token, tenantID))

	t.Cleanup(func() {
		server.Close()
		_ = a.Close()
	})

	return ts
}

// URL returns the server's base URL.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

func (ts *TestServer) AddAPIKey(token, tenantID string) error {
	return ts.App.Store.APIKeys.Add(context.Background(), tenantID, auth.HashKey(token), "test")
}
