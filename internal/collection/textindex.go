package collection

import (
	"sort"
	"strings"

	"polaris/pkg/polaris"
)

// textKey identifies one (field, token) postings list, per 4.3's "build
// a postings map from (field, token) -> sorted song-id list".
type textKey struct {
	Field string
	Token string
}

// postings is the inverted text index: exact-token lookups plus a
// sorted token list per field to support substring ("contains") queries,
// since no trie library is present in the dependency pool.
type postings struct {
	exact         map[textKey][]string // sorted song virtual paths
	tokensByField map[string][]string  // sorted, deduplicated tokens per field, for substring scans
	yearIndex     map[int][]string     // year -> sorted song virtual paths
	years         []int                // sorted, deduplicated, for range scans
}

// searchFields lists the field names the grammar recognizes, matching
// spec.md 4.4 verbatim plus "any" as the implicit default.
var searchFields = map[string]bool{
	"title": true, "album": true, "artist": true, "album_artist": true,
	"composer": true, "lyricist": true, "genre": true, "label": true,
	"path": true, "year": true,
}

func buildPostings(songs map[string]*polaris.Song) postings {
	p := postings{
		exact:         map[textKey][]string{},
		tokensByField: map[string][]string{},
		yearIndex:     map[int][]string{},
	}

	add := func(field, value, virtualPath string) {
		for _, token := range tokenize(value) {
			key := textKey{Field: field, Token: token}
			p.exact[key] = append(p.exact[key], virtualPath)
		}
	}

	for virtualPath, song := range songs {
		if song.Title != nil {
			add("title", *song.Title, virtualPath)
			add("any", *song.Title, virtualPath)
		}
		if song.Album != nil {
			add("album", *song.Album, virtualPath)
			add("any", *song.Album, virtualPath)
		}
		add("path", virtualPath, virtualPath)
		add("any", virtualPath, virtualPath)
		for _, v := range song.Artists {
			add("artist", v, virtualPath)
			add("any", v, virtualPath)
		}
		for _, v := range song.AlbumArtists {
			add("album_artist", v, virtualPath)
			add("any", v, virtualPath)
		}
		for _, v := range song.Composers {
			add("composer", v, virtualPath)
			add("any", v, virtualPath)
		}
		for _, v := range song.Lyricists {
			add("lyricist", v, virtualPath)
			add("any", v, virtualPath)
		}
		for _, v := range song.Genres {
			add("genre", v, virtualPath)
			add("any", v, virtualPath)
		}
		for _, v := range song.Labels {
			add("label", v, virtualPath)
			add("any", v, virtualPath)
		}
		if song.Year != nil {
			p.yearIndex[*song.Year] = append(p.yearIndex[*song.Year], virtualPath)
		}
	}

	for key := range p.exact {
		sort.Strings(p.exact[key])
		p.exact[key] = dedupStrings(p.exact[key])
		if !contains(p.tokensByField[key.Field], key.Token) {
			p.tokensByField[key.Field] = append(p.tokensByField[key.Field], key.Token)
		}
	}
	for field := range p.tokensByField {
		sort.Strings(p.tokensByField[field])
	}
	for year, paths := range p.yearIndex {
		sort.Strings(paths)
		p.yearIndex[year] = paths
		p.years = append(p.years, year)
	}
	sort.Ints(p.years)

	return p
}

// matchYear resolves a year predicate (=, <, >, <=, >=, or an inclusive
// range lo..hi) to the union of song paths across every matching year.
func (p postings) matchYear(op string, lo, hi int) []string {
	seen := map[string]bool{}
	var out []string
	addYear := func(y int) {
		for _, path := range p.yearIndex[y] {
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	for _, y := range p.years {
		match := false
		switch op {
		case "=":
			match = y == lo
		case "<":
			match = y < lo
		case ">":
			match = y > lo
		case "<=":
			match = y <= lo
		case ">=":
			match = y >= lo
		case "..":
			match = y >= lo && y <= hi
		}
		if match {
			addYear(y)
		}
	}
	sort.Strings(out)
	return out
}

// matchContains resolves a query token to the union of song paths for
// every vocabulary token in field that contains it as a substring, per
// spec.md 4.3/4.4's "contains" matching (a bare value "matches substring
// across … text fields"). tokensByField is sorted but substrings can
// appear anywhere in a token, so this is a linear scan rather than a
// binary-searchable prefix lookup — the same limitation the package
// comment on postings already documents for the lack of a trie library.
func (p postings) matchContains(field, token string) []string {
	seen := map[string]bool{}
	var out []string
	for _, vocab := range p.tokensByField[field] {
		if !strings.Contains(vocab, token) {
			continue
		}
		for _, path := range p.exact[textKey{Field: field, Token: vocab}] {
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	sort.Strings(out)
	return out
}

func dedupStrings(sorted []string) []string {
	out := sorted[:0]
	var prev string
	first := true
	for _, s := range sorted {
		if first || s != prev {
			out = append(out, s)
			prev = s
			first = false
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

