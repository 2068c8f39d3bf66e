package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/repository"

	_ "modernc.org/sqlite"
)

// Store implements repository.Store using SQLite.
type Store struct {
	db *sql.DB
}

// compile-time interface check
var _ repository.Store = (*Store)(nil)

// New creates a new SQLite store at the given path (":memory:" for tests).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; a one-connection pool also keeps
	// :memory: databases coherent across calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mac_address TEXT NOT NULL UNIQUE,
		ip_address TEXT,
		hostname TEXT,
		vendor TEXT,
		manufacturer TEXT,
		model TEXT,
		device_type TEXT,
		friendly_name TEXT,
		custom_name TEXT,
		notes TEXT,
		is_online INTEGER NOT NULL DEFAULT 0,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		is_known INTEGER NOT NULL DEFAULT 0,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		open_ports TEXT,
		services TEXT
	);

	CREATE TABLE IF NOT EXISTS scan_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		mac_address TEXT NOT NULL,
		event_type TEXT NOT NULL,
		ip_address TEXT,
		old_ip_address TEXT,
		timestamp DATETIME NOT NULL,
		response_time_ms REAL,
		scan_method TEXT,
		FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS scan_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL DEFAULT 'running',
		devices_found INTEGER NOT NULL DEFAULT 0,
		devices_online INTEGER NOT NULL DEFAULT 0,
		devices_new INTEGER NOT NULL DEFAULT 0,
		subnet TEXT,
		scan_method TEXT,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_devices_mac ON devices(mac_address);
	CREATE INDEX IF NOT EXISTS idx_devices_online ON devices(is_online);
	CREATE INDEX IF NOT EXISTS idx_events_device ON scan_events(device_id);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON scan_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON scan_sessions(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================================================
// Devices
// ============================================================================

// GetAllDevices returns every device in the registry.
func (s *Store) GetAllDevices(ctx context.Context) ([]*domain.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// ListDevices returns devices matching the filter plus the total match count.
func (s *Store) ListDevices(ctx context.Context, filter repository.DeviceFilter) ([]*domain.Device, int, error) {
	var conds []string
	var args []interface{}

	if filter.OnlineOnly {
		conds = append(conds, "is_online = 1")
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		conds = append(conds, `(hostname LIKE ? OR custom_name LIKE ? OR ip_address LIKE ?
			OR mac_address LIKE ? OR vendor LIKE ?)`)
		args = append(args, term, term, term, term, term)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + deviceColumns + ` FROM devices` + where +
		` ORDER BY is_online DESC, last_seen DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices, err := scanDevices(rows)
	if err != nil {
		return nil, 0, err
	}
	return devices, total, nil
}

// GetDevice returns one device by id.
func (s *Store) GetDevice(ctx context.Context, id int64) (*domain.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	return scanDevice(row)
}

// GetDeviceByMAC returns one device by its canonical MAC address.
func (s *Store) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE mac_address = ?`, mac)
	return scanDevice(row)
}

// UpsertDevice inserts or updates a device keyed by MAC address and
// fills in the device's ID.
func (s *Store) UpsertDevice(ctx context.Context, device *domain.Device) error {
	return s.upsertDevice(ctx, s.db, device)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) upsertDevice(ctx context.Context, ex execer, device *domain.Device) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	_, err := ex.ExecContext(ctx, `
		INSERT INTO devices (
			mac_address, ip_address, hostname, vendor, manufacturer, model,
			device_type, friendly_name, custom_name, notes,
			is_online, is_favorite, is_known,
			first_seen, last_seen, created_at, updated_at, open_ports, services
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET
			ip_address = excluded.ip_address,
			hostname = excluded.hostname,
			vendor = excluded.vendor,
			manufacturer = excluded.manufacturer,
			model = excluded.model,
			device_type = excluded.device_type,
			friendly_name = excluded.friendly_name,
			custom_name = excluded.custom_name,
			notes = excluded.notes,
			is_online = excluded.is_online,
			is_favorite = excluded.is_favorite,
			is_known = excluded.is_known,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at,
			open_ports = excluded.open_ports,
			services = excluded.services`,
		device.MAC,
		stringToNull(device.IP),
		stringToNull(device.Hostname),
		stringToNull(device.Vendor),
		stringToNull(device.Manufacturer),
		stringToNull(device.Model),
		stringToNull(device.DeviceType),
		stringToNull(device.FriendlyName),
		stringToNull(device.CustomName),
		stringToNull(device.Notes),
		device.IsOnline,
		device.IsFavorite,
		device.IsKnown,
		device.FirstSeen,
		device.LastSeen,
		device.CreatedAt,
		device.UpdatedAt,
		stringToNull(device.OpenPorts),
		stringToNull(device.Services),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", device.MAC, err)
	}

	if device.ID == 0 {
		row := ex.QueryRowContext(ctx, `SELECT id FROM devices WHERE mac_address = ?`, device.MAC)
		if err := row.Scan(&device.ID); err != nil {
			return fmt.Errorf("failed to read device id for %s: %w", device.MAC, err)
		}
	}

	return nil
}

// UpdateDeviceUserFields applies only the user-editable fields and
// returns the refreshed device. Identity, online-state and timestamp
// fields are never touched here.
func (s *Store) UpdateDeviceUserFields(ctx context.Context, id int64, update domain.DeviceUpdate) (*domain.Device, error) {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(device)

	_, err = s.db.ExecContext(ctx, `
		UPDATE devices SET custom_name = ?, notes = ?, is_favorite = ?, is_known = ?, updated_at = ?
		WHERE id = ?`,
		stringToNull(device.CustomName),
		stringToNull(device.Notes),
		device.IsFavorite,
		device.IsKnown,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update device %d: %w", id, err)
	}

	return s.GetDevice(ctx, id)
}

// DeleteDevice removes a device and, via cascade, its event history.
func (s *Store) DeleteDevice(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ============================================================================
// Events
// ============================================================================

// AppendEvent stores one lifecycle event.
func (s *Store) AppendEvent(ctx context.Context, event *domain.ScanEvent) error {
	return s.appendEvent(ctx, s.db, event)
}

func (s *Store) appendEvent(ctx context.Context, ex execer, event *domain.ScanEvent) error {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO scan_events (
			device_id, mac_address, event_type, ip_address, old_ip_address,
			timestamp, response_time_ms, scan_method
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.DeviceID,
		event.MAC,
		string(event.Type),
		stringToNull(event.IP),
		stringToNull(event.OldIP),
		event.Timestamp,
		floatPtrToNull(event.ResponseTimeMs),
		stringToNull(event.ScanMethod),
	)
	if err != nil {
		return fmt.Errorf("failed to append event for %s: %w", event.MAC, err)
	}

	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}
	return nil
}

// GetDeviceEvents returns a device's events, newest first.
func (s *Store) GetDeviceEvents(ctx context.Context, deviceID int64, limit int) ([]*domain.ScanEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM scan_events
		WHERE device_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetRecentEvents returns the newest events across all devices.
func (s *Store) GetRecentEvents(ctx context.Context, limit int) ([]*domain.ScanEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM scan_events
		ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ============================================================================
// Sessions
// ============================================================================

// CreateSession stores a new scan session and fills in its ID.
func (s *Store) CreateSession(ctx context.Context, session *domain.ScanSession) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_sessions (
			started_at, completed_at, status, devices_found, devices_online,
			devices_new, subnet, scan_method, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.StartedAt,
		timePtrToNull(session.CompletedAt),
		string(session.Status),
		session.DevicesFound,
		session.DevicesOnline,
		session.DevicesNew,
		stringToNull(session.Subnet),
		stringToNull(session.ScanMethod),
		stringToNull(session.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read session id: %w", err)
	}
	session.ID = id
	return nil
}

// UpdateSession persists a session's current state.
func (s *Store) UpdateSession(ctx context.Context, session *domain.ScanSession) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scan_sessions SET
			completed_at = ?, status = ?, devices_found = ?, devices_online = ?,
			devices_new = ?, subnet = ?, scan_method = ?, error_message = ?
		WHERE id = ?`,
		timePtrToNull(session.CompletedAt),
		string(session.Status),
		session.DevicesFound,
		session.DevicesOnline,
		session.DevicesNew,
		stringToNull(session.Subnet),
		stringToNull(session.ScanMethod),
		stringToNull(session.ErrorMessage),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %d: %w", session.ID, err)
	}
	return nil
}

// GetRecentSessions returns sessions ordered newest-first.
func (s *Store) GetRecentSessions(ctx context.Context, limit int) ([]*domain.ScanSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM scan_sessions
		ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.ScanSession
	for rows.Next() {
		var r sessionRow
		if err := rows.Scan(r.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, r.toDomain())
	}
	return sessions, rows.Err()
}

// ============================================================================
// Reconciliation
// ============================================================================

// ApplyReconciliation upserts devices and appends events in a single
// transaction. Events reference devices by MAC; their DeviceID is
// resolved after the device writes so events for brand-new devices pick
// up the generated id.
func (s *Store) ApplyReconciliation(ctx context.Context, devices []*domain.Device, events []*domain.ScanEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	idByMAC := make(map[string]int64, len(devices))
	for _, device := range devices {
		if err := s.upsertDevice(ctx, tx, device); err != nil {
			return err
		}
		idByMAC[device.MAC] = device.ID
	}

	for _, event := range events {
		if event.DeviceID == 0 {
			event.DeviceID = idByMAC[event.MAC]
		}
		if err := s.appendEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return nil
}

// ============================================================================
// Stats
// ============================================================================

// Stats computes dashboard statistics.
func (s *Store) Stats(ctx context.Context) (*repository.Stats, error) {
	stats := &repository.Stats{}
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	queries := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&stats.TotalDevices, `SELECT COUNT(*) FROM devices`, nil},
		{&stats.OnlineDevices, `SELECT COUNT(*) FROM devices WHERE is_online = 1`, nil},
		{&stats.NewDevices, `SELECT COUNT(*) FROM devices WHERE is_known = 0`, nil},
		{&stats.ActiveLast24h, `SELECT COUNT(*) FROM devices WHERE last_seen >= ?`, []interface{}{cutoff}},
		{&stats.EventsLast24h, `SELECT COUNT(*) FROM scan_events WHERE timestamp >= ?`, []interface{}{cutoff}},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}
	stats.OfflineDevices = stats.TotalDevices - stats.OnlineDevices

	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT completed_at FROM scan_sessions
		WHERE status = 'completed' ORDER BY completed_at DESC LIMIT 1`).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read last scan time: %w", err)
	}
	stats.LastScanTime = nullToTimePtr(last)

	return stats, nil
}

// ============================================================================
// Scan helpers
// ============================================================================

func scanDevice(row *sql.Row) (*domain.Device, error) {
	var r deviceRow
	if err := row.Scan(r.scanArgs()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}
	return r.toDomain(), nil
}

func scanDevices(rows *sql.Rows) ([]*domain.Device, error) {
	var devices []*domain.Device
	for rows.Next() {
		var r deviceRow
		if err := rows.Scan(r.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, r.toDomain())
	}
	return devices, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]*domain.ScanEvent, error) {
	var events []*domain.ScanEvent
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(r.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, r.toDomain())
	}
	return events, rows.Err()
}
