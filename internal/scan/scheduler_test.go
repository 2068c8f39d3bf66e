package scan

import (
	"context"
	"testing"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
)

func TestSchedulerSingleFlight(t *testing.T) {
	store := newTestStore(t)
	release := make(chan struct{})
	prober := &stubProber{method: "nmap", block: release}
	orchestrator, _ := newTestOrchestrator(t, store, prober)
	scheduler := NewScheduler(orchestrator, time.Hour, logger.NewNop())

	firstDone := make(chan *domain.ScanSession, 1)
	go func() {
		firstDone <- scheduler.Trigger(context.Background())
	}()

	// Wait until the session row exists, then trigger again while the
	// probe is still blocked.
	var running *domain.ScanSession
	deadline := time.After(2 * time.Second)
	for running == nil {
		select {
		case <-deadline:
			t.Fatal("session never started")
		case <-time.After(time.Millisecond):
			running = scheduler.Running()
		}
	}

	coalesced := scheduler.Trigger(context.Background())
	if coalesced == nil || coalesced.ID != running.ID {
		t.Fatalf("coalesced trigger returned %+v, want in-flight session %d", coalesced, running.ID)
	}

	close(release)
	first := <-firstDone
	if first.ID != running.ID {
		t.Errorf("first trigger session %d != running %d", first.ID, running.ID)
	}

	// Exactly one session row despite two triggers.
	sessions, err := store.GetRecentSessions(context.Background(), 10)
	assertNoError(t, err)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session row, got %d", len(sessions))
	}
}

func TestSchedulerSequentialTriggers(t *testing.T) {
	store := newTestStore(t)
	prober := &stubProber{method: "nmap"}
	orchestrator, _ := newTestOrchestrator(t, store, prober)
	scheduler := NewScheduler(orchestrator, time.Hour, logger.NewNop())

	first := scheduler.Trigger(context.Background())
	second := scheduler.Trigger(context.Background())
	if first == nil || second == nil {
		t.Fatal("triggers returned nil sessions")
	}
	if first.ID == second.ID {
		t.Error("sequential triggers must run separate sessions")
	}

	sessions, err := store.GetRecentSessions(context.Background(), 10)
	assertNoError(t, err)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 session rows, got %d", len(sessions))
	}
}

func TestSchedulerStartStop(t *testing.T) {
	store := newTestStore(t)
	prober := &stubProber{method: "nmap"}
	orchestrator, _ := newTestOrchestrator(t, store, prober)
	scheduler := NewScheduler(orchestrator, time.Hour, logger.NewNop())

	scheduler.Start(context.Background())

	// The first scheduled session runs immediately.
	deadline := time.After(2 * time.Second)
	for {
		sessions, err := store.GetRecentSessions(context.Background(), 1)
		assertNoError(t, err)
		if len(sessions) == 1 && sessions[0].Finished() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduled session never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	scheduler.Stop()

	// Stop is idempotent enough to call twice.
	scheduler.Stop()
}
