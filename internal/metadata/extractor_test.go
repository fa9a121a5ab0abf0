package metadata

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestIsSupported(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"song.mp3", true},
		{"song.FLAC", true},
		{"song.m4a", true},
		{"song.opus", true},
		{"song.txt", false},
		{"song", false},
		{"cover.jpg", false},
	}
	for _, c := range cases {
		if got := IsSupported(c.path); got != c.want {
			t.Errorf("IsSupported(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestCompileArtPatternIsCaseInsensitive(t *testing.T) {
	pattern, err := CompileArtPattern("folder|cover")
	if err != nil {
		t.Fatalf("CompileArtPattern: %v", err)
	}
	if !pattern.MatchString("Folder.jpg") {
		t.Error("expected Folder.jpg to match")
	}
	if !pattern.MatchString("COVER.PNG") {
		t.Error("expected COVER.PNG to match")
	}
	if pattern.MatchString("album.txt") {
		t.Error("expected album.txt not to match")
	}
}

func TestResolveAdjacentArtPicksFirstLexicographicMatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zzz-cover.jpg", "aaa-folder.png", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	pattern, err := CompileArtPattern("cover|folder")
	if err != nil {
		t.Fatalf("CompileArtPattern: %v", err)
	}

	path, ok := ResolveAdjacentArt(dir, pattern)
	if !ok {
		t.Fatal("expected a match")
	}
	if filepath.Base(path) != "aaa-folder.png" {
		t.Errorf("expected the lexicographically first match, got %s", filepath.Base(path))
	}
}

func TestResolveAdjacentArtNoMatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pattern, _ := CompileArtPattern("cover|folder")
	if _, ok := ResolveAdjacentArt(dir, pattern); ok {
		t.Error("expected no match")
	}
}

func TestExtractFromFileRejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("not audio"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e := NewExtractor(quietLogger())
	if _, err := e.ExtractFromFile(path); err == nil {
		t.Error("expected unsupported extension to be rejected")
	}
}

func TestExtractFromFileToleratesUnreadableTags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.mp3")
	if err := os.WriteFile(path, []byte("this is not a real mp3 file, just bytes"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e := NewExtractor(quietLogger())
	extracted, err := e.ExtractFromFile(path)
	if err != nil {
		t.Fatalf("expected per-file tag errors to be tolerated, got %v", err)
	}
	if extracted.Title != nil {
		t.Errorf("expected no title from unreadable tags, got %v", *extracted.Title)
	}
}

func TestReadEmbeddedPictureErrorsWithoutTags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.mp3")
	if err := os.WriteFile(path, []byte("not a real audio file"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := ReadEmbeddedPicture(path); err == nil {
		t.Error("expected a file with no readable tags to error")
	}
}
