package authn

import (
	"context"
	"iter"
	"strings"
)

type memberList struct{ ids []string }

func (m *memberList) Members() []string { return m.ids }
func (m *memberList) SetMembers(_ context.Context, ids []string) error {
	m.ids = ids
	return nil
}

// fakeCredentials returns fixed credentials and records challenge/logout
// calls.
type fakeCredentials struct {
	creds     Credentials
	protocol  string
	challenge bool
	logout    bool

	challenged int
	loggedOut  int
}

func (f *fakeCredentials) ExtractCredentials(context.Context, Request) Credentials { return f.creds }

func (f *fakeCredentials) Challenge(context.Context, Request) bool {
	f.challenged++
	return f.challenge
}

func (f *fakeCredentials) Logout(context.Context, Request) bool {
	f.loggedOut++
	return f.logout
}

func (f *fakeCredentials) ChallengeProtocol() string { return f.protocol }

// fakeAuthenticator accepts LoginPassword credentials whose login is a key of
// users and resolves ids from the same map.
type fakeAuthenticator struct {
	users  map[string]*PrincipalInfo
	groups map[string]*PrincipalInfo
}

func (f *fakeAuthenticator) AuthenticateCredentials(_ context.Context, creds Credentials) *PrincipalInfo {
	lp, ok := creds.(LoginPassword)
	if !ok {
		return nil
	}
	info, ok := f.users[lp.Login]
	if !ok || lp.Password != "secret" {
		return nil
	}
	return info
}

func (f *fakeAuthenticator) PrincipalInfo(_ context.Context, id string) *PrincipalInfo {
	for _, info := range f.users {
		if info.ID == id {
			return info
		}
	}
	if info, ok := f.groups[id]; ok {
		return info
	}
	return nil
}

func (f *fakeAuthenticator) Search(_ context.Context, query Query, start, batchSize int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, info := range f.users {
			if strings.Contains(info.Title, query["search"]) {
				if !yield(info.ID) {
					return
				}
			}
		}
	}
}

// nullAuthenticator never recognizes anything.
type nullAuthenticator struct{ calls int }

func (n *nullAuthenticator) AuthenticateCredentials(context.Context, Credentials) *PrincipalInfo {
	n.calls++
	return nil
}

func (n *nullAuthenticator) PrincipalInfo(context.Context, string) *PrincipalInfo { return nil }

// recordingParent is a parent scope that records what was delegated to it.
type recordingParent struct {
	principals   map[string]*Principal
	lookups      []string
	unauthorized int
	logouts      int
}

func (r *recordingParent) GetPrincipal(_ context.Context, id string) (*Principal, error) {
	r.lookups = append(r.lookups, id)
	if p, ok := r.principals[id]; ok {
		return p, nil
	}
	return nil, &PrincipalLookupError{ID: id}
}

func (r *recordingParent) Authenticate(context.Context, Request) (*Principal, error) { return nil, nil }
func (r *recordingParent) Unauthorized(context.Context, string, Request)            { r.unauthorized++ }
func (r *recordingParent) Logout(context.Context, Request)                          { r.logouts++ }
