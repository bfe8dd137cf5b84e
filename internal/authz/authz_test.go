package authz

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
	"github.com/terraconstructs/pluggableauth/internal/migrations"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

// groupSource maps principal ids to their direct groups.
type groupSource map[string][]string

func (s groupSource) GetPrincipal(_ context.Context, id string) (*authn.Principal, error) {
	groups, ok := s[id]
	if !ok {
		return nil, &authn.PrincipalLookupError{ID: id}
	}
	p := authn.NewPrincipal(id, id, "")
	p.Groups = append(p.Groups, groups...)
	p.SetSource(s)
	return p, nil
}

func principal(t *testing.T, src groupSource, id string) *authn.Principal {
	t.Helper()
	p, err := src.GetPrincipal(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestAuthorize_GroupClosure(t *testing.T) {
	ctx := context.Background()
	src := groupSource{
		"pau.bob":            {"pau.groups.editors"},
		"pau.alice":          {},
		"pau.groups.editors": {"pau.groups.staff"},
		"pau.groups.staff":   {},
	}
	a, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, a.Grant(Grant{Subject: "pau.groups.staff", Object: "/principals/:id", Action: "read"}))
	require.NoError(t, a.Grant(Grant{Subject: "pau.alice", Object: "/admin/*", Action: "*"}))

	tests := []struct {
		who  string
		obj  string
		act  string
		want bool
	}{
		{"pau.bob", "/principals/pau.users.1", "read", true},
		{"pau.bob", "/principals/pau.users.1", "write", false},
		{"pau.alice", "/principals/pau.users.1", "read", false},
		{"pau.alice", "/admin/groups", "delete", true},
		{"pau.bob", "/admin/groups", "read", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s %s", tt.who, tt.act, tt.obj), func(t *testing.T) {
			got, err := a.Authorize(ctx, principal(t, src, tt.who), tt.obj, tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorize_Anonymous(t *testing.T) {
	ctx := context.Background()

	a, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, a.Grant(Grant{Subject: "zope.Everybody", Object: "/healthz", Action: "read"}))
	ok, err := a.Authorize(ctx, nil, "/healthz", "read")
	require.NoError(t, err)
	assert.False(t, ok, "no anonymous subject configured")

	a, err = New(nil, WithAnonymousSubject("zope.Everybody"))
	require.NoError(t, err)
	require.NoError(t, a.Grant(Grant{Subject: "zope.Everybody", Object: "/healthz", Action: "read"}))
	ok, err = a.Authorize(ctx, nil, "/healthz", "read")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorize_LookupFailure(t *testing.T) {
	src := groupSource{"pau.bob": {"pau.groups.gone"}}
	a, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, a.Grant(Grant{Subject: "pau.groups.other", Object: "/x", Action: "read"}))

	_, err = a.Authorize(context.Background(), principal(t, src, "pau.bob"), "/x", "read")
	assert.True(t, errors.Is(err, authn.ErrPrincipalLookup))
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	src := groupSource{"pau.bob": {}}
	a, err := New(nil)
	require.NoError(t, err)

	g := Grant{Subject: "pau.bob", Object: "/x", Action: "read"}
	require.NoError(t, a.Grant(g))
	require.NoError(t, a.Grant(Grant{Subject: "pau.bob", Object: "/y", Action: "read"}))
	require.NoError(t, a.Revoke(g))

	ok, err := a.Authorize(ctx, principal(t, src, "pau.bob"), "/x", "read")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.RevokeSubject("pau.bob"))
	grants, err := a.Grants()
	require.NoError(t, err)
	assert.Empty(t, grants)
}

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

func TestBunAdapter_Persists(t *testing.T) {
	db := setupTestDB(t)

	a, err := New(NewBunAdapter(db))
	require.NoError(t, err)
	require.NoError(t, a.Grant(Grant{Subject: "pau.groups.staff", Object: "/principals/:id", Action: "read"}))
	require.NoError(t, a.Grant(Grant{Subject: "pau.alice", Object: "/admin/*", Action: "*"}))
	require.NoError(t, a.Grant(Grant{Subject: "pau.alice", Object: "/admin/*", Action: "*"}))
	require.NoError(t, a.Revoke(Grant{Subject: "pau.groups.staff", Object: "/principals/:id", Action: "read"}))

	reloaded, err := New(NewBunAdapter(db))
	require.NoError(t, err)
	grants, err := reloaded.Grants()
	require.NoError(t, err)
	assert.Equal(t, []Grant{{Subject: "pau.alice", Object: "/admin/*", Action: "*"}}, grants)

	require.NoError(t, reloaded.RevokeSubject("pau.alice"))
	again, err := New(NewBunAdapter(db))
	require.NoError(t, err)
	grants, err = again.Grants()
	require.NoError(t, err)
	assert.Empty(t, grants)
}
