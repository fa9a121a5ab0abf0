package server

import (
	"encoding/json"
	"net/http"

	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// handleListPlaylists returns the caller's own playlists, per the
// admin-ops CRUD entry for /playlists in 6 (playlists are scoped to
// their owner, not admin-only, unlike settings/mount_dirs/users).
func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request, user *polaris.User) {
	playlists, err := s.store.ListPlaylists(user.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

type savePlaylistRequest struct {
	Songs []string `json:"songs"`
}

// handleSavePlaylist creates or replaces a playlist owned by the caller.
func (s *Server) handleSavePlaylist(w http.ResponseWriter, r *http.Request, user *polaris.User) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, perr.NewBadRequest("playlist name is required"))
		return
	}
	var req savePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, perr.NewBadRequest("malformed playlist body"))
		return
	}

	id, err := s.store.PlaylistID(user.Name, name)
	if err != nil {
		if perr.KindOf(err) != perr.NotFound {
			writeError(w, err)
			return
		}
		id, err = s.store.CreatePlaylist(user.Name, name)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	if err := s.store.SavePlaylistSongs(id, req.Songs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleDeletePlaylist removes a playlist owned by the caller.
func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request, user *polaris.User) {
	name := r.PathValue("name")
	if err := s.store.DeletePlaylist(user.Name, name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
