package collection

import (
	"sort"
	"strings"

	"polaris/pkg/polaris"
)

func makeAlbumKey(title string, albumArtists []string) polaris.AlbumKey {
	sorted := append([]string(nil), albumArtists...)
	sort.Strings(sorted)
	normalizedArtists := make([]string, len(sorted))
	for i, a := range sorted {
		normalizedArtists[i] = normalizeIdentity(a)
	}
	return polaris.AlbumKey{
		NormalizedTitle:        normalizeIdentity(title),
		NormalizedAlbumArtists: strings.Join(normalizedArtists, "\x1f"),
	}
}

// buildAlbums groups songs by (normalized_title, normalized_album_artists)
// per 3 and 4.3, ordering each album's songs by (disc, track, path).
func (b *Builder) buildAlbums(s *Snapshot) {
	type staging struct {
		header polaris.AlbumHeader
		songs  []string
	}
	byKey := map[polaris.AlbumKey]*staging{}

	for virtualPath, song := range b.songs {
		if song.Album == nil {
			continue
		}
		albumArtists := song.AlbumArtists
		if len(albumArtists) == 0 {
			albumArtists = song.Artists
		}
		key := makeAlbumKey(*song.Album, albumArtists)

		st, ok := byKey[key]
		if !ok {
			st = &staging{header: polaris.AlbumHeader{
				Key:          key,
				Title:        *song.Album,
				AlbumArtists: albumArtists,
				Year:         song.Year,
				Artwork:      song.Artwork,
				DateAdded:    song.DateAdded,
			}}
			byKey[key] = st
		}
		st.header.DateAdded = minInt64(st.header.DateAdded, song.DateAdded)
		if st.header.Artwork == nil {
			st.header.Artwork = song.Artwork
		}
		st.songs = append(st.songs, virtualPath)
	}

	for key, st := range byKey {
		sort.Slice(st.songs, func(i, j int) bool {
			si, sj := s.Songs[st.songs[i]], s.Songs[st.songs[j]]
			di, dj := discOf(si), discOf(sj)
			if di != dj {
				return di < dj
			}
			ti, tj := trackOf(si), trackOf(sj)
			if ti != tj {
				return ti < tj
			}
			return st.songs[i] < st.songs[j]
		})
		s.albums[key] = &polaris.Album{Header: st.header, Songs: st.songs}
	}

	s.albumOrder = make([]polaris.AlbumKey, 0, len(s.albums))
	for key := range s.albums {
		s.albumOrder = append(s.albumOrder, key)
	}
	sort.Slice(s.albumOrder, func(i, j int) bool {
		a, b := s.albumOrder[i], s.albumOrder[j]
		if a.NormalizedTitle != b.NormalizedTitle {
			return a.NormalizedTitle < b.NormalizedTitle
		}
		return a.NormalizedAlbumArtists < b.NormalizedAlbumArtists
	})

	s.recentAlbumOrder = append([]polaris.AlbumKey(nil), s.albumOrder...)
	sort.Slice(s.recentAlbumOrder, func(i, j int) bool {
		a, b := s.albums[s.recentAlbumOrder[i]], s.albums[s.recentAlbumOrder[j]]
		if a.Header.DateAdded != b.Header.DateAdded {
			return a.Header.DateAdded > b.Header.DateAdded
		}
		if a.Header.Key.NormalizedTitle != b.Header.Key.NormalizedTitle {
			return a.Header.Key.NormalizedTitle < b.Header.Key.NormalizedTitle
		}
		return a.Header.Key.NormalizedAlbumArtists < b.Header.Key.NormalizedAlbumArtists
	})
}

func minInt64(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// buildArtists derives one Artist per normalized name, tracking role
// flags/counts and per-genre song counts (SUPPLEMENTED FEATURES).
func (b *Builder) buildArtists(s *Snapshot) {
	type staging struct {
		header       *polaris.ArtistHeader
		albumSet     map[polaris.AlbumKey]struct{}
		performer    map[polaris.AlbumKey]struct{}
		addPerformer map[polaris.AlbumKey]struct{}
		composer     map[polaris.AlbumKey]struct{}
		lyricist     map[polaris.AlbumKey]struct{}
	}
	byName := map[string]*staging{}

	get := func(name string) *staging {
		key := normalizeIdentity(name)
		st, ok := byName[key]
		if !ok {
			st = &staging{
				header: &polaris.ArtistHeader{
					Name:            name,
					NormalizedName:  key,
					SongsByGenre:    map[string]int{},
				},
				albumSet:     map[polaris.AlbumKey]struct{}{},
				performer:    map[polaris.AlbumKey]struct{}{},
				addPerformer: map[polaris.AlbumKey]struct{}{},
				composer:     map[polaris.AlbumKey]struct{}{},
				lyricist:     map[polaris.AlbumKey]struct{}{},
			}
			byName[key] = st
		}
		return st
	}

	for _, song := range b.songs {
		var albumKey polaris.AlbumKey
		hasAlbum := song.Album != nil
		if hasAlbum {
			albumArtists := song.AlbumArtists
			if len(albumArtists) == 0 {
				albumArtists = song.Artists
			}
			albumKey = makeAlbumKey(*song.Album, albumArtists)
		}

		for _, name := range song.Artists {
			st := get(name)
			st.header.AppearsAsMain = true
			st.header.NumSongs++
			for _, genre := range song.Genres {
				st.header.SongsByGenre[genre]++
			}
			if hasAlbum {
				st.albumSet[albumKey] = struct{}{}
				if containsStr(song.AlbumArtists, name) {
					st.performer[albumKey] = struct{}{}
				} else {
					st.addPerformer[albumKey] = struct{}{}
				}
			}
		}
		for _, name := range song.AlbumArtists {
			st := get(name)
			st.header.AppearsAsAlbumArtist = true
			if hasAlbum {
				st.albumSet[albumKey] = struct{}{}
				st.performer[albumKey] = struct{}{}
			}
		}
		for _, name := range song.Composers {
			st := get(name)
			st.header.AppearsAsComposer = true
			if hasAlbum {
				st.albumSet[albumKey] = struct{}{}
				st.composer[albumKey] = struct{}{}
			}
		}
		for _, name := range song.Lyricists {
			st := get(name)
			st.header.AppearsAsLyricist = true
			if hasAlbum {
				st.albumSet[albumKey] = struct{}{}
				st.lyricist[albumKey] = struct{}{}
			}
		}
	}

	for key, st := range byName {
		st.header.AlbumsAsPerformer = len(st.performer)
		st.header.AlbumsAsAdditionalPerformer = len(st.addPerformer)
		st.header.AlbumsAsComposer = len(st.composer)
		st.header.AlbumsAsLyricist = len(st.lyricist)

		albums := make([]polaris.AlbumKey, 0, len(st.albumSet))
		for a := range st.albumSet {
			albums = append(albums, a)
		}
		sort.Slice(albums, func(i, j int) bool {
			if albums[i].NormalizedTitle != albums[j].NormalizedTitle {
				return albums[i].NormalizedTitle < albums[j].NormalizedTitle
			}
			return albums[i].NormalizedAlbumArtists < albums[j].NormalizedAlbumArtists
		})

		s.artists[key] = &polaris.Artist{Header: *st.header, Albums: albums}
	}
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// buildGenres derives one Genre per normalized name, tracking related
// genre co-occurrence (SUPPLEMENTED FEATURES).
func (b *Builder) buildGenres(s *Snapshot) {
	type staging struct {
		header  polaris.GenreHeader
		albums  map[polaris.AlbumKey]struct{}
		artists map[string]struct{}
		songs   []string
		related map[string]int
	}
	byName := map[string]*staging{}

	get := func(name string) *staging {
		key := normalizeIdentity(name)
		st, ok := byName[key]
		if !ok {
			st = &staging{
				header:  polaris.GenreHeader{Name: name},
				albums:  map[polaris.AlbumKey]struct{}{},
				artists: map[string]struct{}{},
				related: map[string]int{},
			}
			byName[key] = st
		}
		return st
	}

	for virtualPath, song := range b.songs {
		var albumKey polaris.AlbumKey
		hasAlbum := song.Album != nil
		if hasAlbum {
			albumArtists := song.AlbumArtists
			if len(albumArtists) == 0 {
				albumArtists = song.Artists
			}
			albumKey = makeAlbumKey(*song.Album, albumArtists)
		}

		for _, genre := range song.Genres {
			st := get(genre)
			st.songs = append(st.songs, virtualPath)
			if hasAlbum {
				st.albums[albumKey] = struct{}{}
			}
			for _, a := range song.Artists {
				st.artists[normalizeIdentity(a)] = struct{}{}
			}
			for _, other := range song.Genres {
				if normalizeIdentity(other) != normalizeIdentity(genre) {
					st.related[other]++
				}
			}
		}
	}

	for key, st := range byName {
		albums := make([]polaris.AlbumKey, 0, len(st.albums))
		for a := range st.albums {
			albums = append(albums, a)
		}
		artists := sortedKeys(st.artists)
		sort.Strings(st.songs)

		s.genres[key] = &polaris.Genre{
			Header:        st.header,
			Albums:        albums,
			Artists:       artists,
			Songs:         st.songs,
			RelatedGenres: st.related,
		}
	}
}
