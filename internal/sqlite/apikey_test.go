package sqlite

import (
	"context"
	"testing"

	"github.com/obelixia/reclock/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyRepository(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAPIKeyRepository(db)

	require.NoError(t, repo.Add(ctx, "tenant1", "hash1", "ci key"))
	require.ErrorIs(t, repo.Add(ctx, "tenant2", "hash1", ""), repository.ErrAlreadyExists)

	tenantID, err := repo.TenantForKeyHash(ctx, "hash1")
	require.NoError(t, err)
	require.Equal(t, "tenant1", tenantID)

	var used int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM api_keys WHERE last_used IS NOT NULL`).Scan(&used))
	require.Equal(t, 1, used)

	_, err = repo.TenantForKeyHash(ctx, "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
