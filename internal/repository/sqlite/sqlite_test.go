package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/repository"
)

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func testDevice(mac string) *domain.Device {
	now := time.Now().UTC()
	return &domain.Device{
		MAC:       mac,
		IP:        "192.168.1.10",
		Hostname:  "host.local",
		Vendor:    "Espressif",
		IsOnline:  true,
		FirstSeen: now,
		LastSeen:  now,
	}
}

func TestUpsertDeviceInsertAndUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := testDevice("AA:BB:CC:DD:EE:01")
	assertNoError(t, store.UpsertDevice(ctx, device))
	if device.ID == 0 {
		t.Fatal("expected device id to be filled in")
	}

	// Update via same MAC must not create a second row
	device.IP = "192.168.1.20"
	device.IsOnline = false
	assertNoError(t, store.UpsertDevice(ctx, device))

	all, err := store.GetAllDevices(ctx)
	assertNoError(t, err)
	if len(all) != 1 {
		t.Fatalf("expected 1 device, got %d", len(all))
	}
	if all[0].IP != "192.168.1.20" {
		t.Errorf("expected updated IP, got %q", all[0].IP)
	}
	if all[0].IsOnline {
		t.Error("expected device offline after update")
	}
}

func TestUpsertDevicePreservesFirstSeen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := testDevice("AA:BB:CC:DD:EE:02")
	firstSeen := device.FirstSeen
	assertNoError(t, store.UpsertDevice(ctx, device))

	device.FirstSeen = firstSeen.Add(time.Hour)
	assertNoError(t, store.UpsertDevice(ctx, device))

	got, err := store.GetDeviceByMAC(ctx, "AA:BB:CC:DD:EE:02")
	assertNoError(t, err)
	if !got.FirstSeen.Equal(firstSeen) {
		t.Errorf("first_seen changed on upsert: want %v, got %v", firstSeen, got.FirstSeen)
	}
}

func TestGetDeviceByMACNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetDeviceByMAC(context.Background(), "FF:FF:FF:FF:FF:FF")
	if err != repository.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDevicesFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	online := testDevice("AA:BB:CC:DD:EE:01")
	online.Hostname = "printer.local"
	assertNoError(t, store.UpsertDevice(ctx, online))

	offline := testDevice("AA:BB:CC:DD:EE:02")
	offline.Hostname = "laptop.local"
	offline.IsOnline = false
	assertNoError(t, store.UpsertDevice(ctx, offline))

	devices, total, err := store.ListDevices(ctx, repository.DeviceFilter{OnlineOnly: true})
	assertNoError(t, err)
	if total != 1 || len(devices) != 1 {
		t.Fatalf("expected 1 online device, got total=%d len=%d", total, len(devices))
	}
	if devices[0].MAC != "AA:BB:CC:DD:EE:01" {
		t.Errorf("unexpected device %s", devices[0].MAC)
	}

	devices, total, err = store.ListDevices(ctx, repository.DeviceFilter{Search: "laptop"})
	assertNoError(t, err)
	if total != 1 || devices[0].Hostname != "laptop.local" {
		t.Fatalf("search failed: total=%d devices=%+v", total, devices)
	}

	_, total, err = store.ListDevices(ctx, repository.DeviceFilter{})
	assertNoError(t, err)
	if total != 2 {
		t.Fatalf("expected 2 devices, got %d", total)
	}
}

func TestUpdateDeviceUserFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := testDevice("AA:BB:CC:DD:EE:03")
	assertNoError(t, store.UpsertDevice(ctx, device))

	name := "Living room TV"
	fav := true
	updated, err := store.UpdateDeviceUserFields(ctx, device.ID, domain.DeviceUpdate{
		CustomName: &name,
		IsFavorite: &fav,
	})
	assertNoError(t, err)

	if updated.CustomName != name || !updated.IsFavorite {
		t.Errorf("user fields not applied: %+v", updated)
	}
	// Identity and state fields untouched
	if updated.MAC != device.MAC || !updated.IsOnline {
		t.Errorf("non-user fields changed: %+v", updated)
	}
}

func TestDeleteDeviceCascadesEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := testDevice("AA:BB:CC:DD:EE:04")
	assertNoError(t, store.UpsertDevice(ctx, device))
	assertNoError(t, store.AppendEvent(ctx, &domain.ScanEvent{
		DeviceID:  device.ID,
		MAC:       device.MAC,
		Type:      domain.EventConnected,
		Timestamp: time.Now().UTC(),
	}))

	assertNoError(t, store.DeleteDevice(ctx, device.ID))

	events, err := store.GetDeviceEvents(ctx, device.ID, 10)
	assertNoError(t, err)
	if len(events) != 0 {
		t.Fatalf("expected events cascade-deleted, got %d", len(events))
	}

	if err := store.DeleteDevice(ctx, device.ID); err != repository.ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestEventOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := testDevice("AA:BB:CC:DD:EE:05")
	assertNoError(t, store.UpsertDevice(ctx, device))

	base := time.Now().UTC()
	for i, et := range []domain.EventType{domain.EventConnected, domain.EventDisconnected, domain.EventConnected} {
		assertNoError(t, store.AppendEvent(ctx, &domain.ScanEvent{
			DeviceID:  device.ID,
			MAC:       device.MAC,
			Type:      et,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := store.GetDeviceEvents(ctx, device.ID, 10)
	assertNoError(t, err)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// Newest first
	if events[0].Type != domain.EventConnected || events[1].Type != domain.EventDisconnected {
		t.Errorf("unexpected order: %v, %v, %v", events[0].Type, events[1].Type, events[2].Type)
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &domain.ScanSession{
		StartedAt:  time.Now().UTC(),
		Status:     domain.SessionRunning,
		Subnet:     "192.168.1.0/24",
		ScanMethod: "nmap",
	}
	assertNoError(t, store.CreateSession(ctx, session))
	if session.ID == 0 {
		t.Fatal("expected session id to be filled in")
	}

	done := time.Now().UTC()
	session.Status = domain.SessionCompleted
	session.CompletedAt = &done
	session.DevicesFound = 5
	session.DevicesOnline = 5
	session.DevicesNew = 2
	assertNoError(t, store.UpdateSession(ctx, session))

	sessions, err := store.GetRecentSessions(ctx, 10)
	assertNoError(t, err)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.Status != domain.SessionCompleted || got.DevicesFound != 5 || got.DevicesNew != 2 {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at set")
	}
}

func TestGetRecentSessionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		assertNoError(t, store.CreateSession(ctx, &domain.ScanSession{
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    domain.SessionCompleted,
		}))
	}

	sessions, err := store.GetRecentSessions(ctx, 2)
	assertNoError(t, err)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if !sessions[0].StartedAt.After(sessions[1].StartedAt) {
		t.Error("expected newest-first ordering")
	}
}

func TestApplyReconciliationAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	devices := []*domain.Device{
		testDevice("AA:BB:CC:DD:EE:01"),
		testDevice("AA:BB:CC:DD:EE:02"),
	}
	events := []*domain.ScanEvent{
		{MAC: "AA:BB:CC:DD:EE:01", Type: domain.EventConnected, Timestamp: now},
		{MAC: "AA:BB:CC:DD:EE:02", Type: domain.EventConnected, Timestamp: now},
	}

	assertNoError(t, store.ApplyReconciliation(ctx, devices, events))

	all, err := store.GetAllDevices(ctx)
	assertNoError(t, err)
	if len(all) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(all))
	}

	// Events picked up generated device ids
	for _, device := range all {
		evs, err := store.GetDeviceEvents(ctx, device.ID, 10)
		assertNoError(t, err)
		if len(evs) != 1 {
			t.Fatalf("expected 1 event for %s, got %d", device.MAC, len(evs))
		}
		if evs[0].DeviceID != device.ID {
			t.Errorf("event device_id %d does not match device %d", evs[0].DeviceID, device.ID)
		}
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	online := testDevice("AA:BB:CC:DD:EE:01")
	online.IsKnown = true
	assertNoError(t, store.UpsertDevice(ctx, online))

	offline := testDevice("AA:BB:CC:DD:EE:02")
	offline.IsOnline = false
	assertNoError(t, store.UpsertDevice(ctx, offline))

	done := time.Now().UTC()
	session := &domain.ScanSession{StartedAt: done.Add(-time.Minute), Status: domain.SessionCompleted, CompletedAt: &done}
	assertNoError(t, store.CreateSession(ctx, session))

	stats, err := store.Stats(ctx)
	assertNoError(t, err)

	if stats.TotalDevices != 2 || stats.OnlineDevices != 1 || stats.OfflineDevices != 1 {
		t.Errorf("unexpected device counts: %+v", stats)
	}
	if stats.NewDevices != 1 {
		t.Errorf("expected 1 unknown device, got %d", stats.NewDevices)
	}
	if stats.LastScanTime == nil {
		t.Error("expected last scan time set")
	}
}
