package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/terraconstructs/pluggableauth/internal/db/bunx"
	"github.com/terraconstructs/pluggableauth/internal/event"
	"github.com/terraconstructs/pluggableauth/internal/graph"
	"github.com/terraconstructs/pluggableauth/internal/migrations"
	"github.com/terraconstructs/pluggableauth/internal/password"
	"github.com/terraconstructs/pluggableauth/internal/plugins/groupfolder"
	"github.com/terraconstructs/pluggableauth/internal/plugins/principalfolder"
	"github.com/terraconstructs/pluggableauth/internal/repository"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := bunx.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)
	return db
}

type fixture struct {
	svc        *Service
	groups     *groupfolder.GroupFolder
	principals *principalfolder.PrincipalFolder
}

func newFixture(db *bun.DB) fixture {
	fx := fixture{
		svc:        NewService(db),
		groups:     groupfolder.New("groups."),
		principals: principalfolder.New("users."),
	}
	fx.svc.RegisterGroupFolder("groups", fx.groups)
	fx.svc.RegisterPrincipalFolder("users", fx.principals)
	return fx
}

func TestService_LoadRestoresFolders(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	fx := newFixture(db)
	require.NoError(t, fx.svc.AddPrincipal(ctx, "users", "1", "bob", "123", "Bob", "", password.PlainText))
	require.NoError(t, fx.svc.AddPrincipal(ctx, "users", "2", "alice", "456", "Alice", "", ""))
	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "staff", "Staff", "everyone on staff", []string{"users.1"}))
	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "editors", "Editors", "", []string{"users.2", "groups.staff"}))
	require.NoError(t, fx.svc.ChangeLogin(ctx, "users", "1", "robert"))
	require.NoError(t, fx.svc.SetPassword(ctx, "users", "2", "789", password.SSHA))

	loaded := newFixture(db)
	require.NoError(t, loaded.svc.Load(ctx))

	assert.Equal(t, []string{"1", "2"}, loaded.principals.Names())
	bob, ok := loaded.principals.Get("1")
	require.True(t, ok)
	assert.Equal(t, "robert", bob.Login())
	assert.True(t, bob.CheckPassword("123"))

	alice, ok := loaded.principals.Get("2")
	require.True(t, ok)
	assert.Equal(t, password.SSHA, alice.PasswordManagerName())
	assert.True(t, alice.CheckPassword("789"))

	editors, ok := loaded.groups.Get("editors")
	require.True(t, ok)
	assert.Equal(t, "Editors", editors.Title)
	assert.Equal(t, []string{"users.2", "groups.staff"}, editors.Principals())
	assert.Equal(t, []string{"groups.editors"}, loaded.groups.GetGroupsForPrincipal("groups.staff"))
}

func TestService_CycleIsNotStored(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	fx := newFixture(db)

	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "a", "A", "", nil))
	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "b", "B", "", []string{"groups.a"}))

	err := fx.svc.SetGroupMembers(ctx, "groups", "a", []string{"groups.b"})
	assert.True(t, errors.Is(err, groupfolder.ErrGroupCycle))

	err = fx.svc.AddGroup(ctx, "groups", "c", "C", "", []string{"groups.c"})
	assert.True(t, errors.Is(err, groupfolder.ErrGroupCycle))
	assert.False(t, fx.groups.Contains("c"))

	stored, err := repository.NewBunGroupRepository(db).GetByName(ctx, "groups", "a")
	require.NoError(t, err)
	assert.Empty(t, stored.Members)

	cycles, err := fx.svc.AuditCycles()
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestService_RejectedChangesPublishNothing(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	bus := event.NewBus()
	rec := (&event.Recorder{}).Attach(bus)
	svc := NewService(db)
	groups := groupfolder.New("groups.", groupfolder.WithEventBus(bus))
	svc.RegisterGroupFolder("groups", groups)

	err := svc.AddGroup(ctx, "groups", "b", "B", "", []string{"groups.b"})
	assert.True(t, errors.Is(err, groupfolder.ErrGroupCycle))
	assert.False(t, groups.Contains("b"))
	assert.Empty(t, rec.Events())

	require.NoError(t, svc.AddGroup(ctx, "groups", "a", "A", "", []string{"users.1"}))
	assert.Len(t, event.Of[groupfolder.GroupAdded](rec), 1)
	assert.Len(t, event.Of[groupfolder.PrincipalsAddedToGroup](rec), 1)
	rec.Reset()

	require.NoError(t, db.Close())
	assert.Error(t, svc.AddGroup(ctx, "groups", "c", "C", "", []string{"users.1"}))
	assert.Error(t, svc.SetGroupMembers(ctx, "groups", "a", []string{"users.2"}))
	assert.Error(t, svc.RemoveGroup(ctx, "groups", "a"))
	assert.Empty(t, rec.Events())
	assert.Equal(t, []string{"groups.a"}, groups.GetGroupsForPrincipal("users.1"))
	assert.Empty(t, groups.GetGroupsForPrincipal("users.2"))
}

func TestService_FailedStoreReverts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	fx := newFixture(db)

	require.NoError(t, fx.svc.AddPrincipal(ctx, "users", "1", "bob", "123", "Bob", "", password.PlainText))
	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "staff", "Staff", "", []string{"users.1"}))
	require.NoError(t, db.Close())

	assert.Error(t, fx.svc.AddGroup(ctx, "groups", "other", "Other", "", []string{"users.1"}))
	assert.False(t, fx.groups.Contains("other"))
	assert.Equal(t, []string{"groups.staff"}, fx.groups.GetGroupsForPrincipal("users.1"))

	assert.Error(t, fx.svc.SetGroupMembers(ctx, "groups", "staff", []string{"users.2"}))
	staff, _ := fx.groups.Get("staff")
	assert.Equal(t, []string{"users.1"}, staff.Principals())

	assert.Error(t, fx.svc.RemoveGroup(ctx, "groups", "staff"))
	assert.True(t, fx.groups.Contains("staff"))
	assert.Equal(t, []string{"groups.staff"}, fx.groups.GetGroupsForPrincipal("users.1"))

	assert.Error(t, fx.svc.ChangeLogin(ctx, "users", "1", "robert"))
	id, err := fx.principals.GetIDByLogin("bob")
	require.NoError(t, err)
	assert.Equal(t, "users.1", id)

	assert.Error(t, fx.svc.SetPassword(ctx, "users", "1", "secret", password.SSHA))
	bob, _ := fx.principals.Get("1")
	assert.Equal(t, password.PlainText, bob.PasswordManagerName())
	assert.True(t, bob.CheckPassword("123"))

	assert.Error(t, fx.svc.AddPrincipal(ctx, "users", "2", "alice", "456", "", "", ""))
	assert.False(t, fx.principals.Contains("2"))

	assert.Error(t, fx.svc.RemovePrincipal(ctx, "users", "1"))
	assert.True(t, fx.principals.Contains("1"))
}

func TestService_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(nil)

	require.NoError(t, fx.svc.Load(ctx))
	require.NoError(t, fx.svc.AddPrincipal(ctx, "users", "1", "bob", "123", "", "", password.PlainText))
	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "staff", "Staff", "", []string{"users.1"}))
	require.NoError(t, fx.svc.RemovePrincipal(ctx, "users", "1"))
	require.NoError(t, fx.svc.RemoveGroup(ctx, "groups", "staff"))
	assert.Equal(t, 0, fx.groups.Len())
	assert.Empty(t, fx.groups.GetGroupsForPrincipal("users.1"))
}

func TestService_Lookups(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(nil)

	err := fx.svc.AddGroup(ctx, "nope", "g", "", "", nil)
	assert.True(t, errors.Is(err, ErrUnknownFolder))

	err = fx.svc.SetGroupMembers(ctx, "groups", "missing", nil)
	assert.True(t, errors.Is(err, ErrNoSuchEntry))

	err = fx.svc.ChangeLogin(ctx, "users", "missing", "x")
	assert.True(t, errors.Is(err, ErrNoSuchEntry))

	require.NoError(t, fx.svc.AddPrincipal(ctx, "users", "1", "bob", "123", "", "", ""))
	require.NoError(t, fx.svc.AddPrincipal(ctx, "users", "2", "alice", "123", "", "", ""))
	err = fx.svc.ChangeLogin(ctx, "users", "2", "bob")
	assert.True(t, errors.Is(err, principalfolder.ErrLoginTaken))

	assert.Equal(t, []string{"groups"}, fx.svc.GroupFolders())
}

func TestService_Closure(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(nil)

	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "admins", "", "", []string{"users.1"}))
	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "staff", "", "", []string{"users.1", "groups.admins"}))
	require.NoError(t, fx.svc.AddGroup(ctx, "groups", "all", "", "", []string{"groups.staff"}))

	layers, err := fx.svc.Closure("users.1")
	require.NoError(t, err)
	assert.Equal(t, []graph.Layer{
		{Level: 0, IDs: []string{"users.1"}},
		{Level: 1, IDs: []string{"groups.admins", "groups.staff"}},
		{Level: 2, IDs: []string{"groups.all"}},
	}, layers)

	layers, err = fx.svc.Closure("users.9")
	require.NoError(t, err)
	assert.Equal(t, []graph.Layer{{Level: 0, IDs: []string{"users.9"}}}, layers)
}
