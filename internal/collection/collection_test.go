package collection

import (
	"testing"

	"polaris/pkg/polaris"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

// buildSnapshot runs songs and dirs through a fresh Builder, mirroring
// what the orchestrator does with a scanner's event stream, without
// needing real files on disk.
func buildSnapshot(t *testing.T, prev *Snapshot, version int64, dirs []*polaris.Directory, songs []*polaris.Song) *Snapshot {
	t.Helper()
	b := NewBuilder(prev, nil)
	for _, d := range dirs {
		b.AddDirectory(d)
	}
	for _, s := range songs {
		b.AddSong(s)
	}
	return b.Build(version)
}

func sampleLibrary() ([]*polaris.Directory, []*polaris.Song) {
	dirs := []*polaris.Directory{
		{VirtualPath: "Electric Mountain", ParentVirtualPath: ""},
	}
	songs := []*polaris.Song{
		{
			VirtualPath:       "Electric Mountain/01 Voltage.mp3",
			RealPath:          "/music/Electric Mountain/01 Voltage.mp3",
			ParentVirtualPath: "Electric Mountain",
			TrackNumber:       intp(1),
			DiscNumber:        intp(1),
			Title:             strp("Voltage"),
			Album:             strp("Electric Mountain"),
			Artists:           []string{"The Relays"},
			AlbumArtists:      []string{"The Relays"},
			Genres:            []string{"Rock", "Electronic"},
			Year:              intp(2011),
			DateAdded:         1000,
		},
		{
			VirtualPath:       "Electric Mountain/02 Capacitor.mp3",
			RealPath:          "/music/Electric Mountain/02 Capacitor.mp3",
			ParentVirtualPath: "Electric Mountain",
			TrackNumber:       intp(2),
			DiscNumber:        intp(1),
			Title:             strp("Capacitor"),
			Album:             strp("Electric Mountain"),
			Artists:           []string{"The Relays"},
			AlbumArtists:      []string{"The Relays"},
			Genres:            []string{"Rock"},
			Year:              intp(2011),
			DateAdded:         2000,
		},
	}
	return dirs, songs
}

func TestBrowseAutoDescendsSingleRootDirectory(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	entries, err := snap.Browse("")
	if err != nil {
		t.Fatalf("Browse root: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected root to auto-descend into 2 songs, got %d entries", len(entries))
	}
	if entries[0].VirtualPath != "Electric Mountain/01 Voltage.mp3" {
		t.Errorf("expected track order by name, got %q first", entries[0].VirtualPath)
	}
}

func TestBrowseUnknownDirectory(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	if _, err := snap.Browse("Nonexistent"); err == nil {
		t.Error("expected NotFound for unknown directory")
	}
}

func TestFlattenOrdersByDiscTrackThenPath(t *testing.T) {
	dirs, songs := sampleLibrary()
	songs = append(songs, &polaris.Song{
		VirtualPath:       "Electric Mountain/00 Intro.mp3",
		RealPath:          "/music/Electric Mountain/00 Intro.mp3",
		ParentVirtualPath: "Electric Mountain",
		DiscNumber:        intp(1),
		TrackNumber:       intp(0),
		DateAdded:         500,
	})
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	out, err := snap.Flatten("Electric Mountain", 0, 0)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 songs, got %d", len(out))
	}
	if out[0].VirtualPath != "Electric Mountain/00 Intro.mp3" {
		t.Errorf("expected track 0 first, got %q", out[0].VirtualPath)
	}
	if out[2].VirtualPath != "Electric Mountain/02 Capacitor.mp3" {
		t.Errorf("expected track 2 last, got %q", out[2].VirtualPath)
	}
}

func TestFlattenPagination(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	page, err := snap.Flatten("Electric Mountain", 1, 1)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(page) != 1 || page[0].VirtualPath != "Electric Mountain/02 Capacitor.mp3" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestGetSongsEchoesRequestOrderAndNotFound(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	results := snap.GetSongs([]string{
		"Electric Mountain/02 Capacitor.mp3",
		"Electric Mountain/missing.mp3",
		"Electric Mountain/01 Voltage.mp3",
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Song == nil || results[0].Song.VirtualPath != "Electric Mountain/02 Capacitor.mp3" {
		t.Errorf("result 0 should resolve Capacitor, got %+v", results[0])
	}
	if !results[1].NotFound {
		t.Errorf("result 1 should be not_found")
	}
	if results[2].Song == nil || results[2].Song.VirtualPath != "Electric Mountain/01 Voltage.mp3" {
		t.Errorf("result 2 should resolve Voltage, got %+v", results[2])
	}
}

// date_added must carry forward across a rebuild when real_path repeats,
// per the upsert rule that prevents "recently added" from resetting on
// every rescan.
func TestDateAddedCarriesForwardAcrossRebuild(t *testing.T) {
	dirs, songs := sampleLibrary()
	first := buildSnapshot(t, nil, 0, dirs, songs)

	rebuiltDirs, rebuiltSongs := sampleLibrary()
	for _, s := range rebuiltSongs {
		s.DateAdded = 999999 // scanner would re-stamp this; builder should override it
	}
	second := buildSnapshot(t, first, 1, rebuiltDirs, rebuiltSongs)

	got := second.Songs["Electric Mountain/01 Voltage.mp3"].DateAdded
	if got != 1000 {
		t.Errorf("expected date_added to carry forward as 1000, got %d", got)
	}
}

func TestAlbumsGroupByNormalizedTitleAndArtists(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	albums := snap.Albums(0, 0)
	if len(albums) != 1 {
		t.Fatalf("expected 1 album, got %d", len(albums))
	}
	album := albums[0]
	if len(album.Songs) != 2 {
		t.Fatalf("expected 2 songs in album, got %d", len(album.Songs))
	}
	if album.Header.DateAdded != 1000 {
		t.Errorf("expected album date_added to be the earliest song's, got %d", album.Header.DateAdded)
	}
}

func TestAlbumsRandomIsDeterministicForASeed(t *testing.T) {
	dirs, songs := sampleLibrary()
	songs = append(songs,
		&polaris.Song{VirtualPath: "Other/a.mp3", ParentVirtualPath: "Other", Album: strp("Another Album"), Artists: []string{"Someone Else"}, AlbumArtists: []string{"Someone Else"}},
	)
	dirs = append(dirs, &polaris.Directory{VirtualPath: "Other", ParentVirtualPath: ""})
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	first := snap.AlbumsRandom(42, 0, 0)
	second := snap.AlbumsRandom(42, 0, 0)
	if len(first) != len(second) {
		t.Fatalf("expected same length across calls, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Header.Key != second[i].Header.Key {
			t.Fatalf("same seed produced different order at index %d", i)
		}
	}
}

func TestArtistsExcludesVariousArtistsPseudoArtist(t *testing.T) {
	dirs, songs := sampleLibrary()
	songs = append(songs, &polaris.Song{
		VirtualPath:       "Electric Mountain/99 Compilation Bonus.mp3",
		ParentVirtualPath: "Electric Mountain",
		Artists:           []string{"Various Artists"},
		Album:             strp("Electric Mountain"),
		AlbumArtists:      []string{"Various Artists"},
	})
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	for _, a := range snap.Artists() {
		if a.Header.Name == "Various Artists" {
			t.Errorf("expected Various Artists to be excluded from listings")
		}
	}

	if _, err := snap.Artist("The Relays"); err != nil {
		t.Errorf("expected to find The Relays: %v", err)
	}
}

func TestGenresTrackRelatedCooccurrence(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	rock, err := snap.Genre("Rock")
	if err != nil {
		t.Fatalf("Genre: %v", err)
	}
	if rock.RelatedGenres["Electronic"] != 1 {
		t.Errorf("expected Rock/Electronic to co-occur once, got %d", rock.RelatedGenres["Electronic"])
	}
	if len(rock.Songs) != 2 {
		t.Errorf("expected Rock to cover both songs, got %d", len(rock.Songs))
	}
}

func TestSearchMatchesFieldedAndFreeTextTerms(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	results, err := snap.Search("artist:relays", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both Relays songs, got %d", len(results))
	}

	results, err = snap.Search("capacitor", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].VirtualPath != "Electric Mountain/02 Capacitor.mp3" {
		t.Fatalf("unexpected free-text match: %+v", results)
	}
}

func TestSearchYearRangePredicate(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	results, err := snap.Search("year:2000..2020", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both 2011 songs to match year range, got %d", len(results))
	}
}

func TestSearchNegatedTerm(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	results, err := snap.Search("!capacitor", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].VirtualPath != "Electric Mountain/01 Voltage.mp3" {
		t.Fatalf("unexpected negated match: %+v", results)
	}
}

func TestSearchPathsAndSongsAtSplitMatchesSearchPagination(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	paths, err := snap.SearchPaths("artist:relays")
	if err != nil {
		t.Fatalf("SearchPaths: %v", err)
	}
	page := snap.SongsAt(paths, 1, 1)
	all, err := snap.Search("artist:relays", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page) != 1 || page[0].VirtualPath != all[1].VirtualPath {
		t.Fatalf("SongsAt page did not match Search's own pagination: %+v vs %+v", page, all)
	}
}

func TestSearchEmptyQueryIsBadQuery(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	if _, err := snap.Search("", 0, 0); err == nil {
		t.Error("expected empty query to be rejected")
	}
}

// TestSearchMatchesSubstringWithinToken exercises the "contains"
// semantics spec.md 4.3/4.4 require: a bare value matches any token
// that contains it, not just an exact token, so a fragment like "pacit"
// finds a song titled "Capacitor".
func TestSearchMatchesSubstringWithinToken(t *testing.T) {
	dirs, songs := sampleLibrary()
	snap := buildSnapshot(t, nil, 0, dirs, songs)

	results, err := snap.Search("pacit", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].VirtualPath != "Electric Mountain/02 Capacitor.mp3" {
		t.Fatalf("expected substring match on 'pacit' to find Capacitor, got %+v", results)
	}

	results, err = snap.Search("artist:rela", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected substring match on a fielded term too, got %d", len(results))
	}
}
