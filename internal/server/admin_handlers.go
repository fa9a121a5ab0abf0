package server

import (
	"encoding/json"
	"net/http"

	"polaris/internal/auth"
	"polaris/internal/config"
	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// handleGetSettings returns the current configuration document, admin-only.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	settings, _ := s.cfg.Current()
	writeJSON(w, http.StatusOK, settings)
}

// handlePutSettings replaces the configuration document and triggers a
// rescan via the orchestrator.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	var settings config.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, perr.NewBadRequest("malformed settings document"))
		return
	}
	if err := s.cfg.Set(settings); err != nil {
		writeError(w, perr.NewBadRequest(err.Error()))
		return
	}
	if err := s.store.SaveSettings(settings); err != nil {
		s.logger.WithError(err).Warn("could not persist settings mirror")
	}
	s.orch.Trigger()
	writeJSON(w, http.StatusNoContent, nil)
}

// handleListMountDirs returns the current mount table.
func (s *Server) handleListMountDirs(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	settings, _ := s.cfg.Current()
	writeJSON(w, http.StatusOK, settings.MountDirs)
}

// handlePutMountDirs replaces the mount table and triggers a rescan.
func (s *Server) handlePutMountDirs(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	var mounts []config.MountDir
	if err := json.NewDecoder(r.Body).Decode(&mounts); err != nil {
		writeError(w, perr.NewBadRequest("malformed mount_dirs body"))
		return
	}
	settings, _ := s.cfg.Current()
	settings.MountDirs = mounts
	if err := s.cfg.Set(settings); err != nil {
		writeError(w, perr.NewConflict(err.Error()))
		return
	}
	if err := s.store.SaveSettings(settings); err != nil {
		s.logger.WithError(err).Warn("could not persist settings mirror")
	}
	s.orch.Trigger()
	writeJSON(w, http.StatusNoContent, nil)
}

// handleListUsers returns every persisted user, admin-only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	users, err := s.store.ListUsers()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// handleCreateUser creates a user record, admin-only; a name that
// already exists is a Conflict.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Password == "" {
		writeError(w, perr.NewBadRequest("name and password are required"))
		return
	}
	if _, err := s.store.GetUser(req.Name); err == nil {
		writeError(w, perr.NewConflict("user already exists: "+req.Name))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, perr.WrapInternal("hashing password", err))
		return
	}
	user := &polaris.User{Name: req.Name, PasswordHash: hash, Admin: req.Admin}
	if err := s.store.PutUser(user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleDeleteUser removes a user record and their playlists, admin-only.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	name := r.PathValue("name")
	if err := s.store.DeleteUser(name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
