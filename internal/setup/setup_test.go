package setup

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/terraconstructs/pluggableauth/internal/authz"
	"github.com/terraconstructs/pluggableauth/internal/config"
	"github.com/terraconstructs/pluggableauth/internal/db/bunx"
	"github.com/terraconstructs/pluggableauth/internal/migrations"
	"github.com/terraconstructs/pluggableauth/internal/password"
	"github.com/terraconstructs/pluggableauth/internal/plugins/httpbasic"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
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

func testConfig() *config.Config {
	return &config.Config{
		DatabaseURL:   "file::memory:",
		ServerAddr:    "localhost:0",
		SessionSecret: "session-secret",
		TokenSecret:   "0123456789abcdef0123456789abcdef",
		TokenIssuer:   "pauthd",
		Auth: config.AuthConfig{
			Prefix:               "pau.",
			CredentialsPlugins:   []string{"basic", "bearer", "session"},
			AuthenticatorPlugins: []string{"users", "groups", "jwt"},
			EveryoneGroup:        "zope.Everybody",
			AuthenticatedGroup:   "zope.Authenticated",
			Plugins: []config.PluginConfig{
				{Name: "users", Type: config.PluginPrincipalFolder, Options: map[string]any{"prefix": "users."}},
				{Name: "groups", Type: config.PluginGroupFolder, Options: map[string]any{"prefix": "groups."}},
				{Name: "basic", Type: config.PluginHTTPBasic, Options: map[string]any{"realm": "pauth"}},
				{Name: "bearer", Type: config.PluginBearer},
				{Name: "jwt", Type: config.PluginJWT, Options: map[string]any{"ttl": "15m"}},
				{Name: "session", Type: config.PluginSession, Options: map[string]any{
					"cookie_name":   "pauth",
					"trusted_hosts": "example.com,example.org",
					"max_sessions":  "10",
				}},
			},
		},
		Grants: []config.Grant{
			{Subject: "pau.groups.admins", Object: "/admin/*", Action: "*"},
		},
	}
}

func authenticateBasic(t *testing.T, s *Stack, login, pw string) *authn.Principal {
	t.Helper()
	r := httptest.NewRequest("GET", "/", nil)
	r.SetBasicAuth(login, pw)
	p, err := s.Scope.Authenticate(context.Background(), authn.NewHTTPRequest(httptest.NewRecorder(), r))
	require.NoError(t, err)
	return p
}

func TestBuild_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	s, err := Build(ctx, testConfig(), Options{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"basic", "bearer", "groups", "jwt", "session", "users"}, s.Scope.PluginNames())
	assert.Equal(t, []string{"groups"}, s.Directory.GroupFolders())
	require.NotNil(t, s.Tokens)
	require.Contains(t, s.Sessions, "session")

	require.NoError(t, s.Directory.AddPrincipal(ctx, "users", "1", "bob", "123", "Bob", "", password.PlainText))
	require.NoError(t, s.Directory.AddGroup(ctx, "groups", "admins", "Admins", "", []string{"pau.users.1"}))

	p := authenticateBasic(t, s, "bob", "123")
	require.NotNil(t, p)
	assert.Equal(t, "pau.users.1", p.ID)

	all, err := p.CollectAllGroups(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pau.groups.admins", "zope.Everybody", "zope.Authenticated"}, all)

	assert.Nil(t, authenticateBasic(t, s, "bob", "wrong"))

	ok, err := s.Authorizer.Authorize(ctx, p, "/admin/groups", "write")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuild_BearerLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	s, err := Build(ctx, testConfig(), Options{DB: setupTestDB(t)})
	require.NoError(t, err)
	require.NoError(t, s.Directory.AddPrincipal(ctx, "users", "1", "bob", "123", "Bob", "", password.PlainText))

	tok, err := s.Tokens.Issue(authn.NewPrincipalInfo("users.1", "", "Bob", ""), 0)
	require.NoError(t, err)

	request := func() *authn.HTTPRequest {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		return authn.NewHTTPRequest(httptest.NewRecorder(), r)
	}

	p, err := s.Scope.Authenticate(ctx, request())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "pau.users.1", p.ID)

	s.Scope.Logout(ctx, request())

	p, err = s.Scope.Authenticate(ctx, request())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestBuild_RestoresPersistedState(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	first, err := Build(ctx, testConfig(), Options{DB: db})
	require.NoError(t, err)
	require.NoError(t, first.Directory.AddPrincipal(ctx, "users", "1", "bob", "123", "Bob", "", password.BCrypt))
	require.NoError(t, first.Directory.AddGroup(ctx, "groups", "admins", "Admins", "", []string{"pau.users.1"}))
	require.NoError(t, first.Authorizer.Grant(authz.Grant{Subject: "pau.users.1", Object: "/reports/*", Action: "read"}))

	second, err := Build(ctx, testConfig(), Options{DB: db})
	require.NoError(t, err)

	p := authenticateBasic(t, second, "bob", "123")
	require.NotNil(t, p)
	assert.Contains(t, p.Groups, "pau.groups.admins")

	ok, err := second.Authorizer.Authorize(ctx, p, "/reports/q3", "read")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuild_GlobalPlugin(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Plugins[2].Global = true

	s, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)

	_, contained := s.Scope.Plugin("basic")
	assert.False(t, contained)
	cp, ok := s.Registry.CredentialsPlugin("basic")
	require.True(t, ok)
	assert.IsType(t, &httpbasic.Plugin{}, cp)

	require.NoError(t, s.Directory.AddPrincipal(context.Background(), "users", "1", "bob", "123", "Bob", "", password.PlainText))
	assert.NotNil(t, authenticateBasic(t, s, "bob", "123"))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name: "unknown option",
			mutate: func(c *config.Config) {
				c.Auth.Plugins[2].Options["colour"] = "blue"
			},
		},
		{
			name: "unknown type",
			mutate: func(c *config.Config) {
				c.Auth.Plugins = append(c.Auth.Plugins, config.PluginConfig{Name: "x", Type: "kerberos"})
			},
		},
		{
			name: "folder cannot be global",
			mutate: func(c *config.Config) {
				c.Auth.Plugins[0].Global = true
			},
		},
		{
			name: "bad duration",
			mutate: func(c *config.Config) {
				c.Auth.Plugins[4].Options["ttl"] = "soon"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := Build(context.Background(), cfg, Options{})
			assert.Error(t, err)
		})
	}
}

func TestSessionKeys(t *testing.T) {
	hash1, block1, err := SessionKeys("secret")
	require.NoError(t, err)
	assert.Len(t, hash1, 64)
	assert.Len(t, block1, 32)
	assert.False(t, bytes.Equal(hash1[:32], block1))

	hash2, block2, err := SessionKeys("secret")
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
	assert.Equal(t, block1, block2)

	other, _, err := SessionKeys("other")
	require.NoError(t, err)
	assert.NotEqual(t, hash1, other)

	_, _, err = SessionKeys("")
	assert.Error(t, err)
}
