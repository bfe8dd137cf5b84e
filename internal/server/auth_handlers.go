package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/terraconstructs/pluggableauth/internal/plugins/token"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

// PrincipalResponse describes a principal and its transitive groups.
type PrincipalResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Group       bool     `json:"group,omitempty"`
	Groups      []string `json:"groups"`
	AllGroups   []string `json:"all_groups,omitempty"`
}

func principalResponse(r *http.Request, p *authn.Principal) (PrincipalResponse, error) {
	resp := PrincipalResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Group:       p.IsGroup(),
		Groups:      append([]string{}, p.Groups...),
	}
	for id, err := range p.AllGroups(r.Context()) {
		if err != nil {
			return resp, err
		}
		resp.AllGroups = append(resp.AllGroups, id)
	}
	return resp, nil
}

// HandleWhoAmI handles GET /whoami for an authenticated principal.
func HandleWhoAmI(log logr.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := authn.PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		resp, err := principalResponse(r, p)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleLogout handles POST /logout by asking the credentials plugins to
// forget the client.
func HandleLogout(scope Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := authn.NewHTTPRequest(w, r)
		scope.Logout(r.Context(), req)

		switch status := req.Status(); status {
		case 0:
			w.WriteHeader(http.StatusNoContent)
		case http.StatusFound:
			w.WriteHeader(status)
		default:
			http.Error(w, http.StatusText(status), status)
		}
	}
}

// HandleGetPrincipal handles GET /principals/{id}.
func HandleGetPrincipal(scope Scope, log logr.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, err := scope.GetPrincipal(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		resp, err := principalResponse(r, p)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SearchResult holds the ids one authenticator plugin matched.
type SearchResult struct {
	Plugin string   `json:"plugin"`
	IDs    []string `json:"ids"`
}

// HandleSearch handles GET /search?q=&start=&size= over every searchable
// authenticator plugin of the scope.
func HandleSearch(scope Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := intParam(q.Get("start"))
		if err != nil {
			http.Error(w, "invalid start", http.StatusBadRequest)
			return
		}
		size, err := intParam(q.Get("size"))
		if err != nil {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}

		query := authn.Query{"search": q.Get("q")}
		results := []SearchResult{}
		for _, nq := range scope.Queriables() {
			ids := []string{}
			for id := range nq.Queriable.Search(r.Context(), query, start, size) {
				ids = append(ids, id)
			}
			results = append(results, SearchResult{Plugin: nq.Name, IDs: ids})
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err == nil && n < 0 {
		n = 0
	}
	return n, err
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleIssueToken handles POST /token. The authenticated principal gets a
// bearer token whose subject is its id local to the scope.
func HandleIssueToken(scope Scope, tokens *token.Authenticator, log logr.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := authn.PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		local, ok := strings.CutPrefix(p.ID, scope.Prefix())
		if !ok {
			http.Error(w, "principal is not from this scope", http.StatusBadRequest)
			return
		}

		signed, err := tokens.Issue(authn.NewPrincipalInfo(local, "", p.Title, p.Description), 0)
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.V(1).Info("token issued", "principal", p.ID)
		writeJSON(w, http.StatusOK, TokenResponse{AccessToken: signed, TokenType: "Bearer"})
	}
}
