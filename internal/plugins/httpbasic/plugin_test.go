package httpbasic

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

func basicRequest(header string) *authn.HTTPRequest {
	r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1/", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return authn.NewHTTPRequest(nil, r)
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestExtractCredentials(t *testing.T) {
	ctx := context.Background()
	p := New("")

	tests := []struct {
		name   string
		header string
		want   authn.Credentials
	}{
		{name: "basic", header: "Basic " + encode("mgr:mgrpw"), want: authn.LoginPassword{Login: "mgr", Password: "mgrpw"}},
		{name: "lowercase scheme", header: "basic " + encode("mgr:mgrpw"), want: authn.LoginPassword{Login: "mgr", Password: "mgrpw"}},
		{name: "colons in password", header: "Basic " + encode("mgr:mgrpw:with:colon"), want: authn.LoginPassword{Login: "mgr", Password: "mgrpw:with:colon"}},
		{name: "no header"},
		{name: "other scheme", header: "foo bar"},
		{name: "bad base64", header: "Basic !!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ExtractCredentials(ctx, basicRequest(tt.header)))
		})
	}

	assert.Nil(t, p.ExtractCredentials(ctx, &authn.FTPRequest{}))
}

func TestChallenge(t *testing.T) {
	ctx := context.Background()
	p := New("Zope")

	rec := httptest.NewRecorder()
	req := authn.NewHTTPRequest(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, p.Challenge(ctx, req))
	assert.Equal(t, http.StatusUnauthorized, req.Status())
	assert.Equal(t, `basic realm="Zope"`, rec.Header().Get("WWW-Authenticate"))

	assert.False(t, p.Challenge(ctx, &authn.FTPRequest{}))
}

func TestLogout(t *testing.T) {
	assert.False(t, New("").Logout(context.Background(), basicRequest("")))
}

func TestDefaults(t *testing.T) {
	p := New("")
	assert.Equal(t, DefaultRealm, p.Realm)
	assert.Equal(t, "http auth", p.ChallengeProtocol())
}
