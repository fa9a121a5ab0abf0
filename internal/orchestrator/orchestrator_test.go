package orchestrator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"polaris/internal/collection"
	"polaris/internal/metadata"
	"polaris/internal/scan"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestOrchestrator(t *testing.T, interval time.Duration) (*Orchestrator, *collection.Index) {
	t.Helper()
	logger := quietLogger()
	extractor := metadata.NewExtractor(logger)
	scanner := scan.New(extractor, logger, "")
	index := collection.NewIndex()

	mountDir := t.TempDir()
	mountsFn := func() MountSource { return MountSource{"music": mountDir} }

	return New(scanner, index, logger, mountsFn, interval), index
}

func TestOrchestratorScansOnStartAndPublishesASnapshot(t *testing.T) {
	orch, index := newTestOrchestrator(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	defer orch.Stop()

	deadline := time.After(2 * time.Second)
	for index.Load() == nil {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the startup scan to publish a snapshot")
		case <-time.After(10 * time.Millisecond):
		}
	}

	status := orch.Status()
	if status.State != Idle {
		t.Errorf("expected Idle after the scan completes, got %s", status.State)
	}
	if status.LastScanAt == 0 {
		t.Error("expected LastScanAt to be set after a completed scan")
	}
}

func TestOrchestratorTriggerCoalescesBursts(t *testing.T) {
	orch, _ := newTestOrchestrator(t, time.Hour)

	// Triggering repeatedly before the orchestrator's goroutine drains the
	// wake channel must not block or panic: Trigger's capacity-1 channel
	// with a non-blocking send coalesces a burst into one pending scan.
	for i := 0; i < 10; i++ {
		orch.Trigger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	defer orch.Stop()

	time.Sleep(50 * time.Millisecond)
	status := orch.Status()
	if status.State != Idle && status.State != Scanning {
		t.Errorf("unexpected state: %s", status.State)
	}
}

func TestOrchestratorStopWaitsForDrivingGoroutine(t *testing.T) {
	orch, _ := newTestOrchestrator(t, time.Hour)

	ctx := context.Background()
	orch.Start(ctx)

	done := make(chan struct{})
	go func() {
		orch.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}
