package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/terraconstructs/pluggableauth/internal/plugins/idpicker"
	"github.com/terraconstructs/pluggableauth/internal/services/directory"
)

// GroupRequest creates a group. An empty name is chosen by the folder.
type GroupRequest struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

// MembersRequest replaces a group's members.
type MembersRequest struct {
	Members []string `json:"members"`
}

// PrincipalRequest creates an internal principal.
type PrincipalRequest struct {
	Name            string `json:"name"`
	Login           string `json:"login"`
	Password        string `json:"password"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	PasswordManager string `json:"password_manager"`
}

// LoginRequest changes a principal's login.
type LoginRequest struct {
	Login string `json:"login"`
}

// PasswordRequest changes a principal's password.
type PasswordRequest struct {
	Password        string `json:"password"`
	PasswordManager string `json:"password_manager"`
}

// MountAdminHandlers mounts the directory management endpoints on r.
func MountAdminHandlers(r chi.Router, dir *directory.Service, log logr.Logger) {
	h := &adminHandlers{dir: dir, log: log}

	r.Get("/cycles", h.auditCycles)

	r.Post("/groups/{folder}", h.addGroup)
	r.Delete("/groups/{folder}/{name}", h.removeGroup)
	r.Put("/groups/{folder}/{name}/members", h.setMembers)

	r.Post("/principals/{folder}", h.addPrincipal)
	r.Delete("/principals/{folder}/{name}", h.removePrincipal)
	r.Put("/principals/{folder}/{name}/login", h.changeLogin)
	r.Put("/principals/{folder}/{name}/password", h.setPassword)
}

type adminHandlers struct {
	dir *directory.Service
	log logr.Logger
}

func (h *adminHandlers) auditCycles(w http.ResponseWriter, _ *http.Request) {
	cycles, err := h.dir.AuditCycles()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if cycles == nil {
		cycles = [][]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": cycles})
}

func (h *adminHandlers) addGroup(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")
	var req GroupRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	f, err := h.dir.GroupFolder(folder)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	name, err := idpicker.New(f).ChooseName(req.Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.dir.AddGroup(r.Context(), folder, name, req.Title, req.Description, req.Members); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name, "id": f.Prefix() + name})
}

func (h *adminHandlers) removeGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.RemoveGroup(r.Context(), chi.URLParam(r, "folder"), chi.URLParam(r, "name")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandlers) setMembers(w http.ResponseWriter, r *http.Request) {
	var req MembersRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := h.dir.SetGroupMembers(r.Context(), chi.URLParam(r, "folder"), chi.URLParam(r, "name"), req.Members)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandlers) addPrincipal(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")
	var req PrincipalRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Login == "" {
		http.Error(w, "login is required", http.StatusBadRequest)
		return
	}
	f, err := h.dir.PrincipalFolder(folder)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	name, err := idpicker.New(f).ChooseName(req.Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	err = h.dir.AddPrincipal(r.Context(), folder, name, req.Login, req.Password, req.Title, req.Description, req.PasswordManager)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name, "id": f.Prefix() + name})
}

func (h *adminHandlers) removePrincipal(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.RemovePrincipal(r.Context(), chi.URLParam(r, "folder"), chi.URLParam(r, "name")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandlers) changeLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := readJSON(r, &req); err != nil || req.Login == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.dir.ChangeLogin(r.Context(), chi.URLParam(r, "folder"), chi.URLParam(r, "name"), req.Login); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandlers) setPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := h.dir.SetPassword(r.Context(), chi.URLParam(r, "folder"), chi.URLParam(r, "name"), req.Password, req.PasswordManager)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
