package repository

import (
	"context"
	"errors"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// DeviceFilter narrows ListDevices results.
type DeviceFilter struct {
	OnlineOnly bool
	// Search matches hostname, custom name, IP, MAC or vendor,
	// case-insensitively.
	Search string
	Offset int
	Limit  int
}

// Stats summarizes the registry for the dashboard.
type Stats struct {
	TotalDevices   int        `json:"total_devices"`
	OnlineDevices  int        `json:"online_devices"`
	OfflineDevices int        `json:"offline_devices"`
	NewDevices     int        `json:"new_devices"`
	ActiveLast24h  int        `json:"active_last_24h"`
	EventsLast24h  int        `json:"events_last_24h"`
	LastScanTime   *time.Time `json:"last_scan_time,omitempty"`
}

// Store defines data access for devices, scan events and scan sessions.
// Each call is individually atomic; ApplyReconciliation is atomic across
// all writes it carries.
type Store interface {
	// Devices
	GetAllDevices(ctx context.Context) ([]*domain.Device, error)
	ListDevices(ctx context.Context, filter DeviceFilter) ([]*domain.Device, int, error)
	GetDevice(ctx context.Context, id int64) (*domain.Device, error)
	GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error)
	UpsertDevice(ctx context.Context, device *domain.Device) error
	UpdateDeviceUserFields(ctx context.Context, id int64, update domain.DeviceUpdate) (*domain.Device, error)
	DeleteDevice(ctx context.Context, id int64) error

	// Events
	AppendEvent(ctx context.Context, event *domain.ScanEvent) error
	GetDeviceEvents(ctx context.Context, deviceID int64, limit int) ([]*domain.ScanEvent, error)
	GetRecentEvents(ctx context.Context, limit int) ([]*domain.ScanEvent, error)

	// Sessions
	CreateSession(ctx context.Context, session *domain.ScanSession) error
	UpdateSession(ctx context.Context, session *domain.ScanSession) error
	GetRecentSessions(ctx context.Context, limit int) ([]*domain.ScanSession, error)

	// ApplyReconciliation upserts the given devices and appends the
	// given events in a single transaction. Either every write applies
	// or none do.
	ApplyReconciliation(ctx context.Context, devices []*domain.Device, events []*domain.ScanEvent) error

	// Stats computes dashboard statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases resources.
	Close() error
}
