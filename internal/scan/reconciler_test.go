package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
	"github.com/FlorentB974/lanmon/internal/repository"
	"github.com/FlorentB974/lanmon/internal/repository/sqlite"
)

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func countByType(events []*domain.ScanEvent, et domain.EventType) int {
	n := 0
	for _, event := range events {
		if event.Type == et {
			n++
		}
	}
	return n
}

func TestReconcileEmptyRegistryTwoDevices(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, logger.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	observations := []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10", Strategy: "nmap"},
		{MAC: "AA:BB:CC:DD:EE:02", IP: "192.168.1.11", Strategy: "nmap"},
	}

	result, err := reconciler.Reconcile(ctx, observations, "nmap", now)
	assertNoError(t, err)

	if result.NewCount != 2 {
		t.Errorf("devices_new = %d, want 2", result.NewCount)
	}
	if result.OnlineCount != 2 {
		t.Errorf("devices_online = %d, want 2", result.OnlineCount)
	}
	if countByType(result.Events, domain.EventConnected) != 2 {
		t.Errorf("expected 2 connected events, got %+v", result.Events)
	}

	devices, err := store.GetAllDevices(ctx)
	assertNoError(t, err)
	if len(devices) != 2 {
		t.Fatalf("expected 2 device rows, got %d", len(devices))
	}
	for _, device := range devices {
		if !device.IsOnline {
			t.Errorf("device %s should be online", device.MAC)
		}
		if device.IsKnown {
			t.Errorf("new device %s should not be marked known", device.MAC)
		}
		if !device.FirstSeen.Equal(device.LastSeen) {
			t.Errorf("first_seen and last_seen must match on creation")
		}
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, logger.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	observations := []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10"},
	}

	first, err := reconciler.Reconcile(ctx, observations, "nmap", now)
	assertNoError(t, err)
	if len(first.Events) != 1 {
		t.Fatalf("expected 1 event on first pass, got %d", len(first.Events))
	}

	second, err := reconciler.Reconcile(ctx, observations, "nmap", now)
	assertNoError(t, err)
	if len(second.Events) != 0 {
		t.Errorf("second identical pass must emit no events, got %+v", second.Events)
	}
	if second.NewCount != 0 {
		t.Errorf("second pass new count = %d, want 0", second.NewCount)
	}
	if second.OnlineCount != 1 {
		t.Errorf("second pass online count = %d, want 1", second.OnlineCount)
	}
}

func TestReconcileIPChanged(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, logger.NewNop())
	ctx := context.Background()

	_, err := reconciler.Reconcile(ctx, []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10"},
	}, "nmap", time.Now().UTC())
	assertNoError(t, err)

	result, err := reconciler.Reconcile(ctx, []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.20"},
	}, "nmap", time.Now().UTC())
	assertNoError(t, err)

	if len(result.Events) != 1 {
		t.Fatalf("expected exactly 1 event, got %+v", result.Events)
	}
	event := result.Events[0]
	if event.Type != domain.EventIPChanged {
		t.Fatalf("expected ip_changed, got %s", event.Type)
	}
	if event.OldIP != "192.168.1.10" || event.IP != "192.168.1.20" {
		t.Errorf("address transition wrong: old=%q new=%q", event.OldIP, event.IP)
	}

	device, err := store.GetDeviceByMAC(ctx, "AA:BB:CC:DD:EE:01")
	assertNoError(t, err)
	if device.IP != "192.168.1.20" {
		t.Errorf("device IP = %q, want 192.168.1.20", device.IP)
	}
	if !device.IsOnline {
		t.Error("device must stay online through an address change")
	}
}

func TestReconcileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, logger.NewNop())
	ctx := context.Background()

	observation := []domain.Observation{{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10"}}
	base := time.Now().UTC()

	// Session N: observed.
	_, err := reconciler.Reconcile(ctx, observation, "nmap", base)
	assertNoError(t, err)

	// Session N+1: absent.
	gone, err := reconciler.Reconcile(ctx, nil, "nmap", base.Add(time.Minute))
	assertNoError(t, err)
	if countByType(gone.Events, domain.EventDisconnected) != 1 {
		t.Fatalf("expected disconnected event, got %+v", gone.Events)
	}
	if gone.OnlineCount != 0 {
		t.Errorf("online count = %d, want 0", gone.OnlineCount)
	}

	// Session N+2: observed again.
	back, err := reconciler.Reconcile(ctx, observation, "nmap", base.Add(2*time.Minute))
	assertNoError(t, err)
	if countByType(back.Events, domain.EventConnected) != 1 {
		t.Fatalf("expected connected event, got %+v", back.Events)
	}
	if _, isNew := back.NewMACs["AA:BB:CC:DD:EE:01"]; isNew {
		t.Error("reconnect must not be classified as new")
	}

	device, err := store.GetDeviceByMAC(ctx, "AA:BB:CC:DD:EE:01")
	assertNoError(t, err)
	if !device.IsOnline {
		t.Error("device must be online after round trip")
	}

	// Full history: connected, disconnected, connected, with no two
	// consecutive connected events.
	history, err := store.GetDeviceEvents(ctx, device.ID, 10)
	assertNoError(t, err)
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d", len(history))
	}
	// Newest first.
	want := []domain.EventType{domain.EventConnected, domain.EventDisconnected, domain.EventConnected}
	for i, et := range want {
		if history[i].Type != et {
			t.Errorf("history[%d] = %s, want %s", i, history[i].Type, et)
		}
	}
}

func TestReconcileMalformedObservationDropped(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, logger.NewNop())
	ctx := context.Background()

	observations := []domain.Observation{
		{MAC: "", IP: "192.168.1.50"},
		{MAC: "garbage", IP: "192.168.1.51"},
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10"},
	}

	result, err := reconciler.Reconcile(ctx, observations, "nmap", time.Now().UTC())
	assertNoError(t, err)

	if result.FoundCount != 1 || result.NewCount != 1 {
		t.Errorf("malformed observations counted: found=%d new=%d", result.FoundCount, result.NewCount)
	}
}

func TestReconcileDuplicateKeepsFirstSeen(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, logger.NewNop())
	ctx := context.Background()

	// Same endpoint twice with conflicting addresses; precedence order
	// means the first entry wins.
	observations := []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10"},
		{MAC: "aa:bb:cc:dd:ee:01", IP: "192.168.1.99"},
	}

	result, err := reconciler.Reconcile(ctx, observations, "nmap", time.Now().UTC())
	assertNoError(t, err)
	if result.FoundCount != 1 {
		t.Fatalf("found = %d, want 1", result.FoundCount)
	}

	device, err := store.GetDeviceByMAC(ctx, "AA:BB:CC:DD:EE:01")
	assertNoError(t, err)
	if device.IP != "192.168.1.10" {
		t.Errorf("device IP = %q, want first-seen 192.168.1.10", device.IP)
	}
}

func TestReconcileLastNonNullWins(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, logger.NewNop())
	ctx := context.Background()

	_, err := reconciler.Reconcile(ctx, []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10", Hostname: "printer.local"},
	}, "nmap", time.Now().UTC())
	assertNoError(t, err)

	// Next session supplies vendor but no hostname; hostname survives.
	_, err = reconciler.Reconcile(ctx, []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10", Vendor: "HP Inc."},
	}, "arpscan", time.Now().UTC())
	assertNoError(t, err)

	device, err := store.GetDeviceByMAC(ctx, "AA:BB:CC:DD:EE:01")
	assertNoError(t, err)
	if device.Hostname != "printer.local" {
		t.Errorf("hostname cleared: %q", device.Hostname)
	}
	if device.Vendor != "HP Inc." {
		t.Errorf("vendor not updated: %q", device.Vendor)
	}
}

// failingStore wraps a real store and rejects the batch write.
type failingStore struct {
	repository.Store
}

func (f *failingStore) ApplyReconciliation(ctx context.Context, devices []*domain.Device, events []*domain.ScanEvent) error {
	return errors.New("disk full")
}

func TestReconcileAtomicOnWriteFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Seed a device through a working reconciler.
	working := NewReconciler(store, logger.NewNop())
	_, err := working.Reconcile(ctx, []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.10"},
	}, "nmap", time.Now().UTC())
	assertNoError(t, err)

	broken := NewReconciler(&failingStore{Store: store}, logger.NewNop())
	_, err = broken.Reconcile(ctx, []domain.Observation{
		{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.20"},
		{MAC: "AA:BB:CC:DD:EE:02", IP: "192.168.1.30"},
	}, "nmap", time.Now().UTC())
	if err == nil {
		t.Fatal("expected reconciliation error")
	}

	// Prior state retained: no partial writes.
	devices, err := store.GetAllDevices(ctx)
	assertNoError(t, err)
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	if devices[0].IP != "192.168.1.10" {
		t.Errorf("device IP mutated despite failed session: %q", devices[0].IP)
	}
	if !devices[0].IsOnline {
		t.Error("device state mutated despite failed session")
	}
}
