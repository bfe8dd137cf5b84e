package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
)

func TestBunPrincipalRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunPrincipalRepository(db)
	ctx := context.Background()

	bob := &models.Principal{Folder: "users", Name: "1", Login: "bob", PasswordHash: "{SSHA}x", PasswordManager: "SSHA", Title: "Bob"}
	require.NoError(t, repo.Create(ctx, bob))
	assert.NotEmpty(t, bob.ID)

	t.Run("login unique per folder", func(t *testing.T) {
		dup := &models.Principal{Folder: "users", Name: "2", Login: "bob", PasswordHash: "x", PasswordManager: "Plain Text"}
		assert.Error(t, repo.Create(ctx, dup))

		other := &models.Principal{Folder: "admins", Name: "1", Login: "bob", PasswordHash: "x", PasswordManager: "Plain Text"}
		assert.NoError(t, repo.Create(ctx, other))
	})

	t.Run("update login and password", func(t *testing.T) {
		require.NoError(t, repo.UpdateLogin(ctx, "users", "1", "robert"))
		require.NoError(t, repo.UpdatePassword(ctx, "users", "1", "{BCRYPT}y", "BCRYPT"))

		fetched, err := repo.GetByName(ctx, "users", "1")
		require.NoError(t, err)
		assert.Equal(t, "robert", fetched.Login)
		assert.Equal(t, "{BCRYPT}y", fetched.PasswordHash)
		assert.Equal(t, "BCRYPT", fetched.PasswordManager)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.Principal{Folder: "users", Name: "0", Login: "alice", PasswordHash: "x", PasswordManager: "Plain Text"}))
		list, err := repo.ListByFolder(ctx, "users")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "0", list[0].Name)
		assert.Equal(t, "1", list[1].Name)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "users", "1"))
		_, err := repo.GetByName(ctx, "users", "1")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.Is(repo.Delete(ctx, "users", "1"), ErrNotFound))
		assert.True(t, errors.Is(repo.UpdateLogin(ctx, "users", "1", "x"), ErrNotFound))
	})
}

func TestBunRevokedTokenRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRevokedTokenRepository(db)
	ctx := context.Background()

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.Revoke(ctx, "jti-1", "users.1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.Revoke(ctx, "jti-1", "users.1", time.Now().Add(time.Hour)), "revoking twice is fine")
	require.NoError(t, repo.Revoke(ctx, "jti-2", "users.1", time.Now().Add(-2*time.Hour)))

	revoked, err = repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := repo.DeleteExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err = repo.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
