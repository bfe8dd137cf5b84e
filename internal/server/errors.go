package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/terraconstructs/pluggableauth/internal/container"
	"github.com/terraconstructs/pluggableauth/internal/plugins/groupfolder"
	"github.com/terraconstructs/pluggableauth/internal/plugins/idpicker"
	"github.com/terraconstructs/pluggableauth/internal/plugins/principalfolder"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
	"github.com/terraconstructs/pluggableauth/internal/services/directory"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps directory and lookup errors to HTTP status codes.
func statusFor(err error) int {
	var validation *idpicker.ValidationError
	switch {
	case errors.Is(err, groupfolder.ErrGroupCycle),
		errors.Is(err, container.ErrDuplicateID),
		errors.Is(err, principalfolder.ErrLoginTaken):
		return http.StatusConflict
	case errors.Is(err, directory.ErrUnknownFolder),
		errors.Is(err, directory.ErrNoSuchEntry),
		errors.Is(err, authn.ErrPrincipalLookup):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log logr.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(err, "request failed")
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
