package collection

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"polaris/internal/scan"
	"polaris/pkg/polaris"
)

// Builder is C3's mutable staging structure: it consumes the scanner's
// event stream and freezes into an immutable Snapshot on Build.
type Builder struct {
	logger *logrus.Logger

	prevByRealPath map[string]*polaris.Song

	songs             map[string]*polaris.Song
	directories       map[string]*polaris.Directory
	observedRealPaths map[string]struct{}
}

// NewBuilder starts a fresh staging structure. prev, if non-nil, is the
// currently published snapshot: its songs are consulted to carry
// forward date_added across a re-scan (4.3's upsert rule).
func NewBuilder(prev *Snapshot, logger *logrus.Logger) *Builder {
	b := &Builder{
		logger:            logger,
		prevByRealPath:    map[string]*polaris.Song{},
		songs:             map[string]*polaris.Song{},
		directories:       map[string]*polaris.Directory{},
		observedRealPaths: map[string]struct{}{},
	}
	if prev != nil {
		for _, song := range prev.Songs {
			b.prevByRealPath[song.RealPath] = song
		}
	}
	return b
}

// Consume drains a scanner event channel into the staging structure
// until it's closed. Cancellation is left to the caller, which discards
// the Builder entirely rather than calling Build, matching the
// all-or-nothing publish rule in 4.3.
func (b *Builder) Consume(events <-chan scan.Event) {
	for ev := range events {
		switch {
		case ev.Song != nil:
			b.AddSong(ev.Song)
		case ev.Directory != nil:
			b.AddDirectory(ev.Directory)
		}
	}
}

// AddSong upserts a song by real_path, carrying forward date_added from
// the previous snapshot when the real_path was already indexed.
func (b *Builder) AddSong(song *polaris.Song) {
	if prev, ok := b.prevByRealPath[song.RealPath]; ok {
		song.DateAdded = prev.DateAdded
	}
	song.Artists = dedupOrdered(song.Artists)
	song.AlbumArtists = dedupOrdered(song.AlbumArtists)
	song.Composers = dedupOrdered(song.Composers)
	song.Lyricists = dedupOrdered(song.Lyricists)
	song.Genres = dedupOrdered(song.Genres)
	song.Labels = dedupOrdered(song.Labels)

	b.songs[song.VirtualPath] = song
	b.observedRealPaths[song.RealPath] = struct{}{}
}

// AddDirectory registers a directory traversed during the scan; its
// aggregates are computed from its children in Build.
func (b *Builder) AddDirectory(dir *polaris.Directory) {
	b.directories[dir.VirtualPath] = dir
}

// dedupOrdered removes case-sensitive duplicates while preserving the
// first occurrence's position, per 3's "deduplicated case-sensitively".
func dedupOrdered(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Build freezes the staging structure into an immutable Snapshot.
// version identifies the snapshot; each build should carry a higher
// version than the snapshot it replaces.
func (b *Builder) Build(version int64) *Snapshot {
	s := &Snapshot{
		Version:     version,
		Songs:       b.songs,
		Directories: b.directories,
		children:    map[string][]Entry{},
		albums:      map[polaris.AlbumKey]*polaris.Album{},
		artists:     map[string]*polaris.Artist{},
		genres:      map[string]*polaris.Genre{},
	}

	b.computeDirectoryAggregates(s)
	b.buildChildren(s)
	b.buildAlbums(s)
	b.buildArtists(s)
	b.buildGenres(s)
	b.buildFlattenList(s)
	s.postings = buildPostings(s.Songs)

	return s
}

// computeDirectoryAggregates fills each directory's artists/album/year/
// artwork from its direct song children, per 4.3.
func (b *Builder) computeDirectoryAggregates(s *Snapshot) {
	childSongs := map[string][]*polaris.Song{}
	for _, song := range s.Songs {
		childSongs[song.ParentVirtualPath] = append(childSongs[song.ParentVirtualPath], song)
	}

	for virtualPath, dir := range s.Directories {
		children := childSongs[virtualPath]
		if len(children) == 0 {
			continue
		}

		artistSet := map[string]struct{}{}
		albumCounts := map[string]int{}
		yearCounts := map[int]int{}
		artworkCounts := map[string]int{}

		for _, song := range children {
			for _, a := range song.Artists {
				artistSet[a] = struct{}{}
			}
			if song.Album != nil {
				albumCounts[*song.Album]++
			}
			if song.Year != nil {
				yearCounts[*song.Year]++
			}
			if song.Artwork != nil {
				artworkCounts[*song.Artwork]++
			}
		}

		dir.Artists = sortedKeys(artistSet)
		if album := majorityString(albumCounts); album != "" {
			dir.Album = &album
		}
		if year := majorityInt(yearCounts); year != 0 {
			dir.Year = &year
		}
		if artwork := majorityString(artworkCounts); artwork != "" {
			dir.Artwork = &artwork
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func majorityString(counts map[string]int) string {
	best := ""
	bestCount := 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}

func majorityInt(counts map[int]int) int {
	best := 0
	bestCount := 0
	first := true
	for v, c := range counts {
		if first || c > bestCount || (c == bestCount && v < best) {
			best, bestCount, first = v, c, false
		}
	}
	return best
}

// buildChildren groups songs and directories by parent virtual path and
// sorts each group: directories first, then songs, locale-folded by
// the last path segment.
func (b *Builder) buildChildren(s *Snapshot) {
	for virtualPath, dir := range s.Directories {
		if virtualPath == dir.ParentVirtualPath {
			continue
		}
		s.children[dir.ParentVirtualPath] = append(s.children[dir.ParentVirtualPath], Entry{Kind: entryDirectory, VirtualPath: virtualPath})
	}
	for virtualPath, song := range s.Songs {
		s.children[song.ParentVirtualPath] = append(s.children[song.ParentVirtualPath], Entry{Kind: entrySong, VirtualPath: virtualPath})
	}
	for parent, entries := range s.children {
		_ = parent
		sortEntries(entries, func(virtualPath string) string {
			return lastSegment(virtualPath)
		})
	}
}

func lastSegment(virtualPath string) string {
	idx := strings.LastIndex(virtualPath, "/")
	if idx < 0 {
		return virtualPath
	}
	return virtualPath[idx+1:]
}

// buildFlattenList precomputes the sorted, component-wise-ordered list
// of every song's virtual path used by Flatten's prefix scan.
func (b *Builder) buildFlattenList(s *Snapshot) {
	paths := make([]string, 0, len(s.Songs))
	for p := range s.Songs {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		return compareVirtualPaths(paths[i], paths[j])
	})
	s.allSongPaths = paths
}

func compareVirtualPaths(a, b string) bool {
	pa := strings.Split(a, "/")
	pb := strings.Split(b, "/")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, nb := normalizeSortKey(pa[i]), normalizeSortKey(pb[i])
		if na != nb {
			return na < nb
		}
	}
	return len(pa) < len(pb)
}
