package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
)

func newGroup(folder, name string, members ...string) *models.Group {
	g := &models.Group{Folder: folder, Name: name, Title: name}
	for _, m := range members {
		g.Members = append(g.Members, models.GroupMember{PrincipalID: m})
	}
	return g
}

func TestBunGroupRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunGroupRepository(db)
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		g := newGroup("groups", "editors", "pau.users.2", "pau.users.1")
		require.NoError(t, repo.Create(ctx, g))
		assert.NotEmpty(t, g.ID)

		fetched, err := repo.GetByName(ctx, "groups", "editors")
		require.NoError(t, err)
		assert.Equal(t, g.ID, fetched.ID)
		assert.Equal(t, []string{"pau.users.2", "pau.users.1"}, fetched.MemberIDs(), "member order is kept")
	})

	t.Run("duplicate name in folder", func(t *testing.T) {
		assert.Error(t, repo.Create(ctx, newGroup("groups", "editors")))
		require.NoError(t, repo.Create(ctx, newGroup("other", "editors")), "names are scoped by folder")
	})

	t.Run("list by folder", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newGroup("groups", "authors")))

		groups, err := repo.ListByFolder(ctx, "groups")
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, "authors", groups[0].Name)
		assert.Empty(t, groups[0].MemberIDs())
		assert.Equal(t, "editors", groups[1].Name)
		assert.Equal(t, []string{"pau.users.2", "pau.users.1"}, groups[1].MemberIDs())
	})

	t.Run("replace members", func(t *testing.T) {
		require.NoError(t, repo.ReplaceMembers(ctx, "groups", "editors", []string{"pau.users.3", "pau.groups.authors"}))
		fetched, err := repo.GetByName(ctx, "groups", "editors")
		require.NoError(t, err)
		assert.Equal(t, []string{"pau.users.3", "pau.groups.authors"}, fetched.MemberIDs())

		require.NoError(t, repo.ReplaceMembers(ctx, "groups", "editors", nil))
		fetched, err = repo.GetByName(ctx, "groups", "editors")
		require.NoError(t, err)
		assert.Empty(t, fetched.MemberIDs())
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.ReplaceMembers(ctx, "groups", "editors", []string{"pau.users.1"}))
		require.NoError(t, repo.Delete(ctx, "groups", "editors"))

		_, err := repo.GetByName(ctx, "groups", "editors")
		assert.True(t, errors.Is(err, ErrNotFound))

		n, err := db.NewSelect().Model((*models.GroupMember)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("missing group", func(t *testing.T) {
		assert.True(t, errors.Is(repo.Delete(ctx, "groups", "nope"), ErrNotFound))
		assert.True(t, errors.Is(repo.ReplaceMembers(ctx, "groups", "nope", []string{"x"}), ErrNotFound))
	})
}

func TestBunGroupRepository_RollbackInTx(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := NewBunGroupRepository(tx).Create(ctx, newGroup("groups", "editors", "a")); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	groups, err := NewBunGroupRepository(db).ListByFolder(ctx, "groups")
	require.NoError(t, err)
	assert.Empty(t, groups)
}
