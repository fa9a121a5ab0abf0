package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"polaris/internal/collection"
	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// snapshot returns the currently published collection snapshot, or an
// Unsupported error if the first scan has not completed yet.
func (s *Server) snapshot() (*collection.Snapshot, error) {
	snap := s.index.Load()
	if snap == nil {
		return nil, perr.NewUnsupported("collection index not ready, no scan has completed")
	}
	return snap, nil
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := snap.Browse(r.PathValue("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFlatten(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	offset, limit := queryPagination(r)
	songs, err := snap.Flatten(r.PathValue("path"), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (s *Server) handleGetSongs(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	var paths []string
	if err := json.NewDecoder(r.Body).Decode(&paths); err != nil {
		writeError(w, perr.NewBadRequest("malformed request body: expected a JSON array of virtual paths"))
		return
	}
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.GetSongs(paths))
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	offset, limit := queryPagination(r)
	writeJSON(w, http.StatusOK, snap.Albums(offset, limit))
}

func (s *Server) handleAlbumsRandom(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	offset, limit := queryPagination(r)
	seed, err := strconv.ParseUint(r.URL.Query().Get("seed"), 10, 64)
	if err != nil {
		writeError(w, perr.NewBadRequest("seed must be an unsigned integer"))
		return
	}
	writeJSON(w, http.StatusOK, snap.AlbumsRandom(seed, offset, limit))
}

func (s *Server) handleAlbumsRecent(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	offset, limit := queryPagination(r)
	writeJSON(w, http.StatusOK, snap.AlbumsRecent(offset, limit))
}

func (s *Server) handleArtists(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Artists())
}

func (s *Server) handleArtist(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	artist, err := snap.Artist(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artist)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Genres())
}

func (s *Server) handleGenre(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	genre, err := snap.Genre(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, genre)
}

// handleSearch evaluates the structured query grammar (4.4), caching
// matched paths briefly so a paginated client re-querying the same
// string doesn't re-walk the postings on every page.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	query := r.PathValue("query")
	offset, limit := queryPagination(r)

	cacheKey := strconv.FormatInt(snap.Version, 10) + "\x00" + query
	paths, hit := s.search.GetResults(cacheKey)
	if !hit {
		var err error
		paths, err = snap.SearchPaths(query)
		if err != nil {
			writeError(w, err)
			return
		}
		s.search.SetResults(cacheKey, paths)
	}

	writeJSON(w, http.StatusOK, snap.SongsAt(paths, offset, limit))
}
