// Package scan implements Polaris's scanner (C2): it walks every mount
// point breadth-first, dispatches supported files to a worker pool sized
// to the CPU count, and emits a stream of SongRecord/DirectoryRecord
// events on a bounded channel for the index builder to consume.
package scan

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"polaris/internal/metadata"
	"polaris/pkg/polaris"
)

// Event is one record emitted by the scanner.
type Event struct {
	Song      *polaris.Song
	Directory *polaris.Directory
	Err       error // per-file error; never aborts the scan
}

// Stats accumulates counters the orchestrator surfaces via /index_status.
type Stats struct {
	FilesSeen int
	Errors    int
}

// Scanner walks mount points and reads each file's metadata via C1.
type Scanner struct {
	extractor *metadata.Extractor
	logger    *logrus.Logger
	artRegex  string
}

// New creates a Scanner. artRegexSource is the configured album-art
// pattern (unanchored, matched case-insensitively against file names).
func New(extractor *metadata.Extractor, logger *logrus.Logger, artRegexSource string) *Scanner {
	return &Scanner{extractor: extractor, logger: logger, artRegex: artRegexSource}
}

type job struct {
	mount    polaris.Mount
	realPath string
}

// Run walks mounts, a name->source map, and sends events to out until
// every file is processed or ctx is cancelled. It closes out and
// returns the final Stats when done. Workers finish their current file
// before observing cancellation, per 4.2's cooperative cancellation.
func (s *Scanner) Run(ctx context.Context, mounts map[string]string, out chan<- Event) Stats {
	defer close(out)

	pattern, err := metadata.CompileArtPattern(s.artRegex)
	if err != nil {
		out <- Event{Err: err}
		return Stats{Errors: 1}
	}

	jobs := make(chan job, runtime.NumCPU()*4)
	var stats Stats
	var statsMu sync.Mutex
	var wg sync.WaitGroup

	numWorkers := runtime.NumCPU()
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				s.processFile(j.mount, j.realPath, pattern, out, &stats, &statsMu)
			}
		}()
	}

	directoriesSeen := map[string]polaris.Mount{}
	var dirMu sync.Mutex

	for name, source := range mounts {
		s.walkMount(ctx, polaris.Mount{Name: name, Source: source}, jobs, directoriesSeen, &dirMu)
	}
	close(jobs)
	wg.Wait()

	s.emitDirectories(directoriesSeen, &dirMu, out)

	return stats
}

// walkMount performs the breadth-first walk of one mount's source tree,
// enqueuing supported files as jobs and recording every directory seen
// (including empty ones) so C3 can build DirectoryRecords for them.
func (s *Scanner) walkMount(ctx context.Context, mount polaris.Mount, jobs chan<- job, dirs map[string]polaris.Mount, dirMu *sync.Mutex) {
	visited := map[string]struct{}{} // per-scan real-path cycle guard

	queue := []string{mount.Source}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dir := queue[0]
		queue = queue[1:]

		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			real = dir
		}
		if _, seen := visited[real]; seen {
			continue
		}
		visited[real] = struct{}{}

		dirMu.Lock()
		dirs[dir] = mount
		dirMu.Unlock()

		entries, err := os.ReadDir(dir)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"dir": dir, "error": err}).Warn("could not read directory")
			continue
		}

		names := make([]string, len(entries))
		byName := map[string]os.DirEntry{}
		for i, entry := range entries {
			names[i] = entry.Name()
			byName[entry.Name()] = entry
		}
		sort.Strings(names)

		for _, name := range names {
			entry := byName[name]
			full := filepath.Join(dir, name)
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.IsDir() {
				queue = append(queue, full)
				continue
			}
			if entry.Type()&os.ModeSymlink != 0 {
				resolved, err := filepath.EvalSymlinks(full)
				if err != nil {
					continue
				}
				fi, err := os.Stat(resolved)
				if err != nil {
					continue
				}
				if fi.IsDir() {
					queue = append(queue, resolved)
					continue
				}
				full = resolved
			}
			if metadata.IsSupported(full) {
				select {
				case jobs <- job{mount: mount, realPath: full}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Scanner) processFile(mount polaris.Mount, realPath string, pattern *regexp.Regexp, out chan<- Event, stats *Stats, mu *sync.Mutex) {
	extracted, err := s.extractor.ExtractFromFile(realPath)

	mu.Lock()
	stats.FilesSeen++
	if err != nil {
		stats.Errors++
	}
	mu.Unlock()

	if err != nil {
		s.logger.WithFields(logrus.Fields{"file": realPath, "error": err}).Warn("could not read tags")
		out <- Event{Err: err}
		return
	}

	virtualPath := toVirtualPath(mount, realPath)
	song := &polaris.Song{
		VirtualPath:       virtualPath,
		RealPath:          realPath,
		ParentVirtualPath: parentVirtualPath(virtualPath),
		TrackNumber:       extracted.TrackNumber,
		DiscNumber:        extracted.DiscNumber,
		Year:              extracted.Year,
		Duration:          extracted.Duration,
		Title:             extracted.Title,
		Album:             extracted.Album,
		Artists:           extracted.Artists,
		AlbumArtists:      extracted.AlbumArtists,
		Composers:         extracted.Composers,
		Lyricists:         extracted.Lyricists,
		Genres:            extracted.Genres,
		Labels:            extracted.Labels,
		DateAdded:         time.Now().Unix(),
	}

	if artworkPath, ok := metadata.ResolveAdjacentArt(filepath.Dir(realPath), pattern); ok {
		virtual := toVirtualPath(mount, artworkPath)
		song.Artwork = &virtual
	} else if extracted.EmbeddedPicture != nil {
		embedded := "embedded:" + virtualPath
		song.Artwork = &embedded
	}

	out <- Event{Song: song}
}

func (s *Scanner) emitDirectories(dirs map[string]polaris.Mount, mu *sync.Mutex, out chan<- Event) {
	mu.Lock()
	defer mu.Unlock()
	for realPath, mount := range dirs {
		virtual := toVirtualPath(mount, realPath)
		out <- Event{Directory: &polaris.Directory{
			VirtualPath:       virtual,
			RealPath:          realPath,
			ParentVirtualPath: parentVirtualPath(virtual),
			DateAdded:         time.Now().Unix(),
		}}
	}
}

func toVirtualPath(mount polaris.Mount, realPath string) string {
	rel, err := filepath.Rel(mount.Source, realPath)
	if err != nil || rel == "." {
		return mount.Name
	}
	return filepath.ToSlash(filepath.Join(mount.Name, rel))
}

func parentVirtualPath(virtualPath string) string {
	dir := filepath.ToSlash(filepath.Dir(virtualPath))
	if dir == "." {
		return ""
	}
	return dir
}
