package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/pluggableauth/internal/authz"
	"github.com/terraconstructs/pluggableauth/internal/event"
	"github.com/terraconstructs/pluggableauth/internal/password"
	"github.com/terraconstructs/pluggableauth/internal/plugins/groupfolder"
	"github.com/terraconstructs/pluggableauth/internal/plugins/httpbasic"
	"github.com/terraconstructs/pluggableauth/internal/plugins/principalfolder"
	"github.com/terraconstructs/pluggableauth/internal/plugins/token"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
	"github.com/terraconstructs/pluggableauth/internal/services/directory"
)

type memoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]string
}

func (d *memoryDenylist) Revoke(_ context.Context, jti, subject string, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[jti] = subject
	return nil
}

func (d *memoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[jti]
	return ok, nil
}

type fixture struct {
	server *httptest.Server
	dir    *directory.Service
	groups *groupfolder.GroupFolder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	bus := event.NewBus()
	reg := authn.NewRegistry(nil)
	reg.SetEveryoneGroup(authn.SpecialGroup{ID: "zope.Everybody", Title: "Everybody"})
	groupfolder.Subscribe(bus)
	authn.InstallDefaultSubscribers(bus, reg)

	pau := authn.New("pau.",
		authn.WithRegistry(reg),
		authn.WithEventBus(bus),
		authn.WithCredentialsPlugins("basic", "bearer"),
		authn.WithAuthenticatorPlugins("users", "groups", "jwt"),
	)
	users := principalfolder.New("users.")
	groups := groupfolder.New("groups.")
	tokens, err := token.NewAuthenticator("0123456789abcdef0123456789abcdef", "pauthd",
		token.WithDenylist(&memoryDenylist{revoked: map[string]string{}}))
	require.NoError(t, err)

	require.NoError(t, pau.AddPlugin("users", users))
	require.NoError(t, pau.AddPlugin("groups", groups))
	require.NoError(t, pau.AddPlugin("jwt", tokens))
	require.NoError(t, pau.AddPlugin("basic", httpbasic.New("")))
	require.NoError(t, pau.AddPlugin("bearer", token.NewBearerPlugin("", tokens.Revoke)))

	dir := directory.NewService(nil)
	dir.RegisterPrincipalFolder("users", users)
	dir.RegisterGroupFolder("groups", groups)
	require.NoError(t, dir.AddPrincipal(ctx, "users", "1", "bob", "123", "Bob", "", password.PlainText))
	require.NoError(t, dir.AddPrincipal(ctx, "users", "2", "root", "toor", "Admin", "", password.PlainText))
	require.NoError(t, dir.AddGroup(ctx, "groups", "admins", "Admins", "", []string{"pau.users.2"}))
	require.NoError(t, dir.AddGroup(ctx, "groups", "staff", "Staff", "", []string{"pau.users.1", "pau.groups.admins"}))

	a, err := authz.New(nil)
	require.NoError(t, err)
	require.NoError(t, a.Grant(authz.Grant{Subject: "pau.groups.admins", Object: "/admin/*", Action: "*"}))

	srv := httptest.NewServer(NewRouter(RouterOptions{
		Scope:      pau,
		Tokens:     tokens,
		Directory:  dir,
		Authorizer: a,
	}))
	t.Cleanup(srv.Close)
	return &fixture{server: srv, dir: dir, groups: groups}
}

func (fx *fixture) do(t *testing.T, method, path string, body any, auth func(*http.Request)) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, fx.server.URL+path, &buf)
	require.NoError(t, err)
	if auth != nil {
		auth(req)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func basic(login, pw string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(login, pw) }
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t)
	resp := fx.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWhoAmI(t *testing.T) {
	fx := newFixture(t)

	resp := fx.do(t, http.MethodGet, "/whoami", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.ElementsMatch(t, []string{`basic realm="pauthd"`, `Bearer realm="pauthd"`}, resp.Header.Values("WWW-Authenticate"))

	resp = fx.do(t, http.MethodGet, "/whoami", nil, basic("bob", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/whoami", nil, basic("root", "toor"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[PrincipalResponse](t, resp)
	assert.Equal(t, "pau.users.2", me.ID)
	assert.Equal(t, "Admin", me.Title)
	assert.Equal(t, []string{"pau.groups.admins", "pau.groups.staff", "zope.Everybody"}, sortedCopy(me.AllGroups))
}

func TestGetPrincipal(t *testing.T) {
	fx := newFixture(t)

	resp := fx.do(t, http.MethodGet, "/principals/pau.users.2", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/principals/pau.groups.staff", nil, basic("bob", "123"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	staff := decode[PrincipalResponse](t, resp)
	assert.True(t, staff.Group)
	assert.Equal(t, "Staff", staff.Title)

	resp = fx.do(t, http.MethodGet, "/principals/pau.users.9", nil, basic("bob", "123"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	fx := newFixture(t)

	resp := fx.do(t, http.MethodGet, "/search?q=o", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/search?q=sta", nil, basic("bob", "123"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Results []SearchResult `json:"results"`
	}](t, resp)

	byPlugin := map[string][]string{}
	for _, r := range body.Results {
		byPlugin[r.Plugin] = r.IDs
	}
	assert.Equal(t, []string{"pau.groups.staff"}, byPlugin["groups"])
	assert.Empty(t, byPlugin["users"])

	resp = fx.do(t, http.MethodGet, "/search?q=x&size=nope", nil, basic("bob", "123"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenLifecycle(t *testing.T) {
	fx := newFixture(t)

	resp := fx.do(t, http.MethodPost, "/token", nil, basic("bob", "123"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode[TokenResponse](t, resp)
	assert.Equal(t, "Bearer", tok.TokenType)

	resp = fx.do(t, http.MethodGet, "/whoami", nil, bearer(tok.AccessToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[PrincipalResponse](t, resp)
	assert.Equal(t, "pau.users.1", me.ID)
	assert.Contains(t, me.Groups, "pau.groups.staff")

	resp = fx.do(t, http.MethodPost, "/logout", nil, bearer(tok.AccessToken))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/whoami", nil, bearer(tok.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_RequiresGrant(t *testing.T) {
	fx := newFixture(t)

	resp := fx.do(t, http.MethodGet, "/admin/cycles", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/admin/cycles", nil, basic("bob", "123"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/admin/cycles", nil, basic("root", "toor"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string][][]string](t, resp)
	assert.Empty(t, body["cycles"])
}

func TestAdmin_Groups(t *testing.T) {
	fx := newFixture(t)
	root := basic("root", "toor")

	resp := fx.do(t, http.MethodPost, "/admin/groups/groups", GroupRequest{Title: "Editors", Members: []string{"pau.users.1"}}, root)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]string](t, resp)
	assert.Equal(t, "1", created["name"])
	assert.Equal(t, "groups.1", created["id"])

	resp = fx.do(t, http.MethodPut, "/admin/groups/groups/admins/members", MembersRequest{Members: []string{"pau.users.2", "pau.groups.staff"}}, root)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	admins, _ := fx.groups.Get("admins")
	assert.Equal(t, []string{"pau.users.2"}, admins.Principals())

	resp = fx.do(t, http.MethodPut, "/admin/groups/groups/1/members", MembersRequest{Members: []string{"pau.users.2"}}, root)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = fx.do(t, http.MethodDelete, "/admin/groups/groups/1", nil, root)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, fx.groups.Contains("1"))

	resp = fx.do(t, http.MethodDelete, "/admin/groups/nope/1", nil, root)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/admin/groups/groups", GroupRequest{Name: "+bad"}, root)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmin_Principals(t *testing.T) {
	fx := newFixture(t)
	root := basic("root", "toor")

	resp := fx.do(t, http.MethodPost, "/admin/principals/users", PrincipalRequest{Name: "carol", Login: "carol", Password: "pw"}, root)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/whoami", nil, basic("carol", "pw"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, "/admin/principals/users/carol/login", LoginRequest{Login: "bob"}, root)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, "/admin/principals/users/carol/login", LoginRequest{Login: "caz"}, root)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, "/admin/principals/users/carol/password", PasswordRequest{Password: "new", PasswordManager: password.SSHA}, root)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/whoami", nil, basic("caz", "new"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodDelete, "/admin/principals/users/carol", nil, root)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = fx.do(t, http.MethodGet, "/whoami", nil, basic("caz", "new"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	slices.Sort(out)
	return out
}

// brokenScope fails every lookup with an error that maps to 500.
type brokenScope struct{ err error }

func (s brokenScope) GetPrincipal(context.Context, string) (*authn.Principal, error) {
	return nil, s.err
}
func (s brokenScope) Authenticate(context.Context, authn.Request) (*authn.Principal, error) {
	return nil, nil
}
func (brokenScope) Unauthorized(context.Context, string, authn.Request) {}
func (brokenScope) Logout(context.Context, authn.Request)               {}
func (brokenScope) Prefix() string                                      { return "pau." }
func (brokenScope) Queriables() []authn.NamedQueriable                  { return nil }

func TestHandleGetPrincipal_LogsInternalErrors(t *testing.T) {
	var lines []string
	log := funcr.New(func(_, args string) { lines = append(lines, args) }, funcr.Options{})

	r := chi.NewRouter()
	r.Get("/principals/{id}", HandleGetPrincipal(brokenScope{err: errors.New("db down")}, log))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/principals/pau.users.1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg"="request failed"`)
	assert.Contains(t, lines[0], "db down")
}
