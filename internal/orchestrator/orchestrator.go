// Package orchestrator implements Polaris's scan orchestrator (C7): a
// single goroutine that owns when a scan runs, coalesces concurrent
// triggers into at most one extra scan, and publishes the scanner's
// output to the collection index only when a scan runs to completion.
// Trigger sources are adapted from the teacher's fsnotify-based file
// watcher (internal/server/watcher.go): a dirty mount tree schedules a
// scan instead of patching the database incrementally.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"polaris/internal/collection"
	"polaris/internal/scan"
	"polaris/pkg/polaris"
)

// State is the orchestrator's externally visible status, reported by
// /index_status.
type State string

const (
	Idle     State = "Idle"
	Scanning State = "Scanning"
)

// Status is a snapshot of the orchestrator's current state and the
// most recent scan's counters.
type Status struct {
	State      State
	LastStats  scan.Stats
	LastScanAt int64
}

// MountSource maps a mount's virtual name to its real source path.
type MountSource map[string]string

// Orchestrator drives repeated scans of a set of mount points into an
// in-memory collection.Index, coalescing triggers that arrive while a
// scan is already running into a single follow-up scan.
type Orchestrator struct {
	scanner *scan.Scanner
	index   *collection.Index
	logger  *logrus.Logger

	mountsFn func() MountSource
	interval time.Duration

	wake    chan struct{} // capacity-1, coalesces triggers
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	status  Status
	version int64

	watcher *fsnotify.Watcher
}

// New creates an Orchestrator. mountsFn is consulted at the start of
// every scan, so mount changes made through the config admin API take
// effect on the next run without restarting the orchestrator.
func New(scanner *scan.Scanner, index *collection.Index, logger *logrus.Logger, mountsFn func() MountSource, interval time.Duration) *Orchestrator {
	return &Orchestrator{
		scanner:  scanner,
		index:    index,
		logger:   logger,
		mountsFn: mountsFn,
		interval: interval,
		wake:     make(chan struct{}, 1),
		status:   Status{State: Idle},
	}
}

// Start launches the orchestrator's driving goroutine and, if the
// mounts support it, an fsnotify watcher that triggers a rescan when
// the underlying filesystem changes. It returns immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})

	if w, err := fsnotify.NewWatcher(); err == nil {
		o.watcher = w
		go o.watchFilesystem()
	} else {
		o.logger.WithError(err).Warn("filesystem watcher unavailable, falling back to periodic scans only")
	}

	go o.run(runCtx)
}

// Stop cancels any in-flight scan and waits for the driving goroutine
// to exit. Partial results from a cancelled scan are discarded, never
// published.
func (o *Orchestrator) Stop() {
	if o.watcher != nil {
		o.watcher.Close()
	}
	if o.cancel != nil {
		o.cancel()
	}
	if o.done != nil {
		<-o.done
	}
}

// Trigger marks the collection dirty, scheduling a scan. Concurrent
// triggers while a scan is in flight coalesce into a single follow-up
// scan, per 4.7.
func (o *Orchestrator) Trigger() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Status returns the orchestrator's current state and last scan's stats.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.status.State = state
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.done)

	o.Trigger() // always scan once at startup
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Trigger()
		case <-o.wake:
			o.scanOnce(ctx)
		}
	}
}

func (o *Orchestrator) scanOnce(ctx context.Context) {
	o.setState(Scanning)
	defer o.setState(Idle)

	mounts := o.mountsFn()
	events := make(chan scan.Event, 256)

	prev := o.index.Load()
	builder := collection.NewBuilder(prev, o.logger)

	var stats scan.Stats
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		stats = o.scanner.Run(ctx, map[string]string(mounts), events)
	}()

	builder.Consume(events)
	wg.Wait()

	select {
	case <-ctx.Done():
		// Cancelled mid-scan: discard the partial builder, per 4.7.
		o.logger.Warn("scan cancelled, discarding partial results")
		return
	default:
	}

	o.mu.Lock()
	o.version++
	version := o.version
	o.mu.Unlock()

	snapshot := builder.Build(version)

	o.mu.Lock()
	o.status.State = Idle
	o.status.LastStats = stats
	o.status.LastScanAt = polaris.Now().Unix()
	o.mu.Unlock()

	o.index.Publish(snapshot)

	o.logger.WithFields(logrus.Fields{
		"version":    version,
		"files_seen": stats.FilesSeen,
		"errors":     stats.Errors,
	}).Info("scan complete")
}

// watchFilesystem adds every mount's real path (recursively) to the
// fsnotify watcher and triggers a rescan on any change, coalescing
// bursts the same way the teacher's watcher debounced creation events.
func (o *Orchestrator) watchFilesystem() {
	defer o.watcher.Close()

	for name, source := range o.mountsFn() {
		if err := o.addTree(source); err != nil {
			o.logger.WithFields(logrus.Fields{"mount": name, "source": source, "error": err}).Warn("could not watch mount")
		}
	}

	debounce := time.NewTimer(0)
	debounce.Stop()
	pending := false

	for {
		select {
		case event, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			if shouldIgnore(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					o.watcher.Add(event.Name)
				}
			}
			if !pending {
				pending = true
				debounce.Reset(500 * time.Millisecond)
			}
		case <-debounce.C:
			pending = false
			o.Trigger()
		case err, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
			o.logger.WithError(err).Warn("filesystem watcher error")
		}
	}
}

func (o *Orchestrator) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return o.watcher.Add(path)
		}
		return nil
	})
}

func shouldIgnore(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp")
}
