package scan

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"polaris/internal/metadata"
	"polaris/pkg/polaris"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", path, err)
	}
}

func mustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func TestRunWalksMountAndEmitsSongsAndDirectories(t *testing.T) {
	mountDir := t.TempDir()
	albumDir := filepath.Join(mountDir, "Artist", "Album")
	mustMkdirAll(t, albumDir)
	mustWriteFile(t, filepath.Join(albumDir, "01 track.mp3"), []byte("not real audio, just bytes"))
	mustWriteFile(t, filepath.Join(albumDir, "readme.txt"), []byte("ignored, unsupported extension"))
	mustMkdirAll(t, filepath.Join(mountDir, "Artist", "Empty"))

	extractor := metadata.NewExtractor(quietLogger())
	scanner := New(extractor, quietLogger(), "folder|cover")

	events := make(chan Event, 64)
	var stats Stats
	done := make(chan struct{})
	go func() {
		stats = scanner.Run(context.Background(), map[string]string{"music": mountDir}, events)
		close(done)
	}()

	var songs []*polaris.Song
	var dirs []*polaris.Directory
	for ev := range events {
		if ev.Song != nil {
			songs = append(songs, ev.Song)
		}
		if ev.Directory != nil {
			dirs = append(dirs, ev.Directory)
		}
	}
	<-done

	if stats.FilesSeen != 1 {
		t.Errorf("expected 1 supported file seen, got %d", stats.FilesSeen)
	}
	if len(songs) != 1 {
		t.Fatalf("expected 1 song event, got %d", len(songs))
	}

	song := songs[0]
	if song.VirtualPath != "music/Artist/Album/01 track.mp3" {
		t.Errorf("unexpected virtual path: %s", song.VirtualPath)
	}
	if song.ParentVirtualPath != "music/Artist/Album" {
		t.Errorf("unexpected parent virtual path: %s", song.ParentVirtualPath)
	}
	if song.DateAdded == 0 {
		t.Error("expected date_added to be stamped")
	}

	wantDirs := map[string]bool{
		"music":              false,
		"music/Artist":       false,
		"music/Artist/Album": false,
		"music/Artist/Empty": false,
	}
	for _, d := range dirs {
		if _, ok := wantDirs[d.VirtualPath]; ok {
			wantDirs[d.VirtualPath] = true
		}
	}
	for path, seen := range wantDirs {
		if !seen {
			t.Errorf("expected a directory event for %q", path)
		}
	}
}

func TestRunSkipsUnsupportedExtensions(t *testing.T) {
	mountDir := t.TempDir()
	mustWriteFile(t, filepath.Join(mountDir, "notes.txt"), []byte("text"))
	mustWriteFile(t, filepath.Join(mountDir, "cover.jpg"), []byte("image"))

	extractor := metadata.NewExtractor(quietLogger())
	scanner := New(extractor, quietLogger(), "folder|cover")

	events := make(chan Event, 64)
	var stats Stats
	done := make(chan struct{})
	go func() {
		stats = scanner.Run(context.Background(), map[string]string{"music": mountDir}, events)
		close(done)
	}()
	for range events {
	}
	<-done

	if stats.FilesSeen != 0 {
		t.Errorf("expected no supported files seen, got %d", stats.FilesSeen)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	mountDir := t.TempDir()
	for i := 0; i < 20; i++ {
		mustWriteFile(t, filepath.Join(mountDir, "track"+string(rune('a'+i))+".mp3"), []byte("bytes"))
	}

	extractor := metadata.NewExtractor(quietLogger())
	scanner := New(extractor, quietLogger(), "folder|cover")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event, 64)
	done := make(chan struct{})
	go func() {
		scanner.Run(ctx, map[string]string{"music": mountDir}, events)
		close(done)
	}()
	for range events {
	}
	<-done // Run must still close its output channel and return promptly.
}
