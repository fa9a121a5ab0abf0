package collection

import (
	"encoding/json"
	"sort"
	"strings"

	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// Browse returns the ordered children of virtualPath: directories
// before songs, each group locale-folded by name. Browsing the root
// auto-descends into a single top-level directory, matching the
// "redundant top level" behavior carried over from the original
// implementation (see SPEC_FULL.md's SUPPLEMENTED FEATURES).
func (s *Snapshot) Browse(virtualPath string) ([]Entry, error) {
	virtualPath = strings.Trim(virtualPath, "/")

	if virtualPath != "" {
		if _, ok := s.Directories[virtualPath]; !ok {
			return nil, perr.NewNotFound("directory not found: " + virtualPath)
		}
	}

	// s.children only has an entry for parents with at least one child
	// (builder.go's buildChildren only appends, never pre-seeds empty
	// slices), so a known directory with no children is a legitimate
	// miss here, not a NotFound: an empty mount's browse result is [],
	// per S1.
	entries := s.children[virtualPath]

	if virtualPath == "" {
		dirsOnly := true
		for _, e := range entries {
			if !e.IsDirectory() {
				dirsOnly = false
				break
			}
		}
		if dirsOnly && len(entries) == 1 {
			return s.Browse(entries[0].VirtualPath)
		}
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// Flatten returns every song under virtualPath's subtree, ordered by
// (disc, track, virtual_path), bounded by (offset, limit).
func (s *Snapshot) Flatten(virtualPath string, offset, limit int) ([]*polaris.Song, error) {
	virtualPath = strings.Trim(virtualPath, "/")

	if virtualPath != "" {
		if _, ok := s.Directories[virtualPath]; !ok {
			if _, ok := s.Songs[virtualPath]; !ok {
				return nil, perr.NewNotFound("path not found: " + virtualPath)
			}
		}
	}

	var matches []string
	for _, path := range s.allSongPaths {
		if virtualPath == "" || path == virtualPath || strings.HasPrefix(path, virtualPath+"/") {
			matches = append(matches, path)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		si, sj := s.Songs[matches[i]], s.Songs[matches[j]]
		di, dj := discOf(si), discOf(sj)
		if di != dj {
			return di < dj
		}
		ti, tj := trackOf(si), trackOf(sj)
		if ti != tj {
			return ti < tj
		}
		return matches[i] < matches[j]
	})

	return paginateSongs(s, matches, offset, limit), nil
}

// SongResult is one entry in a GetSongs response.
type SongResult struct {
	VirtualPath string
	Song        *polaris.Song // nil if NotFound is true
	NotFound    bool
}

// MarshalJSON flattens a found SongResult to its Song's fields and a
// not-found result to {virtual_path, not_found: true}.
func (r SongResult) MarshalJSON() ([]byte, error) {
	if r.NotFound {
		return json.Marshal(struct {
			VirtualPath string `json:"virtual_path"`
			NotFound    bool   `json:"not_found"`
		}{VirtualPath: r.VirtualPath, NotFound: true})
	}
	return json.Marshal(r.Song)
}

// GetSongs echoes metadata for each requested path in request order.
func (s *Snapshot) GetSongs(paths []string) []SongResult {
	out := make([]SongResult, len(paths))
	for i, path := range paths {
		if song, ok := s.Songs[path]; ok {
			out[i] = SongResult{VirtualPath: path, Song: song}
		} else {
			out[i] = SongResult{VirtualPath: path, NotFound: true}
		}
	}
	return out
}
