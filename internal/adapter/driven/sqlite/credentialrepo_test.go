package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

func TestCredentialRepo_PutAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	expiry := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	err := repo.Put(ctx, model.Credential{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		TokenExpiry:  expiry,
		TenantID:     "tenant-1",
	})
	require.NoError(t, err)

	cred, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "access-abc", cred.AccessToken)
	assert.Equal(t, "refresh-xyz", cred.RefreshToken)
	assert.Equal(t, "tenant-1", cred.TenantID)
	assert.True(t, cred.TokenExpiry.Equal(expiry))
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())

	cred, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestCredentialRepo_PutOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	err := repo.Put(ctx, model.Credential{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		TokenExpiry:  time.Now().Add(time.Minute),
		TenantID:     "tenant-1",
	})
	require.NoError(t, err)

	err = repo.Put(ctx, model.Credential{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		TokenExpiry:  time.Now().Add(time.Hour),
		TenantID:     "tenant-2",
	})
	require.NoError(t, err)

	cred, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "tenant-2", cred.TenantID)
}

func TestCredentialRepo_Clear(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	err := repo.Put(ctx, model.Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenExpiry:  time.Now().Add(time.Hour),
		TenantID:     "tenant-1",
	})
	require.NoError(t, err)

	require.NoError(t, repo.Clear(ctx))

	cred, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)

	// Clearing an empty store is not an error.
	require.NoError(t, repo.Clear(ctx))
}

func TestCredentialRepo_TokensEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	err := repo.Put(ctx, model.Credential{
		AccessToken:  "plaintext-access",
		RefreshToken: "plaintext-refresh",
		TokenExpiry:  time.Now().Add(time.Hour),
		TenantID:     "tenant-1",
	})
	require.NoError(t, err)

	var access, refresh string
	err = db.Reader.QueryRowContext(ctx, `SELECT access_token, refresh_token FROM xero_connection WHERE id = 1`).
		Scan(&access, &refresh)
	require.NoError(t, err)
	assert.NotEqual(t, "plaintext-access", access)
	assert.NotEqual(t, "plaintext-refresh", refresh)
	assert.NotContains(t, access, "plaintext")
}

func TestCredentialRepo_NoKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	err = repo.Put(ctx, model.Credential{AccessToken: "a"})
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}
