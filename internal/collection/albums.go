package collection

import (
	"math/rand/v2"
	"sort"

	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// Albums returns a (offset, limit)-bounded page of every album, stably
// ordered by normalized (title, album_artists) — the same order used as
// the base permutation for AlbumsRandom.
func (s *Snapshot) Albums(offset, limit int) []*polaris.Album {
	return paginateAlbums(s, s.albumOrder, offset, limit)
}

// AlbumsRandom returns a deterministic Fisher-Yates permutation of every
// album id, seeded by (seed), sliced to (offset, limit). The same seed
// against the same snapshot version always yields the same ordering
// (invariant 5); different seeds permute the same underlying set.
func (s *Snapshot) AlbumsRandom(seed uint64, offset, limit int) []*polaris.Album {
	shuffled := make([]polaris.AlbumKey, len(s.albumOrder))
	copy(shuffled, s.albumOrder)

	rng := rand.New(rand.NewPCG(seed, seed))
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return paginateAlbums(s, shuffled, offset, limit)
}

// AlbumsRecent returns albums ordered by date_added descending, ties
// broken by album key, bounded by (offset, limit).
func (s *Snapshot) AlbumsRecent(offset, limit int) []*polaris.Album {
	return paginateAlbums(s, s.recentAlbumOrder, offset, limit)
}

func paginateAlbums(s *Snapshot, keys []polaris.AlbumKey, offset, limit int) []*polaris.Album {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(keys) {
		return nil
	}
	end := len(keys)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*polaris.Album, 0, end-offset)
	for _, k := range keys[offset:end] {
		if album, ok := s.albums[k]; ok {
			out = append(out, album)
		}
	}
	return out
}

// Artists returns every artist, excluding the synthetic "Various
// Artists"/"VA" pseudo-artist, sorted case-insensitively by name.
func (s *Snapshot) Artists() []*polaris.Artist {
	out := make([]*polaris.Artist, 0, len(s.artists))
	for _, a := range s.artists {
		if isVariousArtists(a.Header.Name) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return normalizeSortKey(out[i].Header.Name) < normalizeSortKey(out[j].Header.Name)
	})
	return out
}

// Artist looks up one artist by name (normalized for matching).
func (s *Snapshot) Artist(name string) (*polaris.Artist, error) {
	a, ok := s.artists[normalizeIdentity(name)]
	if !ok {
		return nil, perr.NewNotFound("artist not found: " + name)
	}
	return a, nil
}

func isVariousArtists(name string) bool {
	n := normalizeIdentity(name)
	return n == "various artists" || n == "va"
}

// Genres returns every genre, sorted by name.
func (s *Snapshot) Genres() []*polaris.Genre {
	out := make([]*polaris.Genre, 0, len(s.genres))
	for _, g := range s.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return normalizeSortKey(out[i].Header.Name) < normalizeSortKey(out[j].Header.Name)
	})
	return out
}

// Genre looks up one genre by name (normalized for matching).
func (s *Snapshot) Genre(name string) (*polaris.Genre, error) {
	g, ok := s.genres[normalizeIdentity(name)]
	if !ok {
		return nil, perr.NewNotFound("genre not found: " + name)
	}
	return g, nil
}
