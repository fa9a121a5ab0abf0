// Package collection implements C3 (index builder) and C4 (collection
// index): it consumes the scanner's event stream into a mutable staging
// structure, freezes it into an immutable Snapshot, and answers browse,
// flatten, search, album/artist/genre and random/recent queries against
// whichever snapshot a reader captured.
package collection

import (
	"encoding/json"
	"sort"

	"polaris/pkg/polaris"
)

// entryKind distinguishes a browse entry's two possible shapes.
type entryKind int

const (
	entryDirectory entryKind = iota
	entrySong
)

// Entry is one child returned by Browse.
type Entry struct {
	Kind        entryKind
	VirtualPath string
}

func (e Entry) IsDirectory() bool { return e.Kind == entryDirectory }

// MarshalJSON renders an Entry the way the browse endpoint's clients
// expect: a directory flag alongside the virtual path, rather than the
// internal entryKind int.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		IsDirectory bool   `json:"is_directory"`
		VirtualPath string `json:"virtual_path"`
	}{IsDirectory: e.IsDirectory(), VirtualPath: e.VirtualPath})
}

// Snapshot is the immutable, fully consistent view every query reads.
// It is never mutated after Build returns it; concurrent readers share
// it safely.
type Snapshot struct {
	Version int64

	Songs       map[string]*polaris.Song
	Directories map[string]*polaris.Directory

	// children maps a parent virtual path to its sorted entries
	// (directories first, then songs, each locale-folded on name).
	children map[string][]Entry

	// allSongPaths is every song's virtual path, sorted by the
	// spec's component-wise comparator, used by Flatten. No trie
	// library is present in the dependency pool (see DESIGN.md), so
	// Flatten is a prefix scan over this precomputed sorted list.
	allSongPaths []string

	albums     map[polaris.AlbumKey]*polaris.Album
	albumOrder []polaris.AlbumKey // stable order by normalized key, for seeded shuffles
	recentAlbumOrder []polaris.AlbumKey // date_added desc, tie by key

	artists map[string]*polaris.Artist // keyed by normalized name
	genres  map[string]*polaris.Genre  // keyed by normalized name

	postings postings
}

// rootChildren returns the root's entries as built, without the "skip
// redundant top level" descent that Browse applies when the root
// contains exactly one directory and nothing else.
func (s *Snapshot) rootChildren() []Entry {
	return s.children[""]
}

func sortEntries(entries []Entry, nameOf func(virtualPath string) string) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Kind != b.Kind {
			return a.Kind == entryDirectory
		}
		return normalizeSortKey(nameOf(a.VirtualPath)) < normalizeSortKey(nameOf(b.VirtualPath))
	})
}
