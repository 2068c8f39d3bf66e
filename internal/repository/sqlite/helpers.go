package sqlite

import (
	"database/sql"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
)

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullToTimePtr safely converts sql.NullTime to *time.Time
func nullToTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// nullToFloatPtr safely converts sql.NullFloat64 to *float64
func nullToFloatPtr(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		return &nf.Float64
	}
	return nil
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timePtrToNull safely converts *time.Time to sql.NullTime
func timePtrToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// floatPtrToNull safely converts *float64 to sql.NullFloat64
func floatPtrToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// ============================================================================
// Device Row Scanner
// ============================================================================

// deviceRow holds all columns from a device query for scanning
type deviceRow struct {
	ID           int64
	MAC          string
	IP           sql.NullString
	Hostname     sql.NullString
	Vendor       sql.NullString
	Manufacturer sql.NullString
	Model        sql.NullString
	DeviceType   sql.NullString
	FriendlyName sql.NullString
	CustomName   sql.NullString
	Notes        sql.NullString
	IsOnline     bool
	IsFavorite   bool
	IsKnown      bool
	FirstSeen    time.Time
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	OpenPorts    sql.NullString
	Services     sql.NullString
}

// deviceColumns is the SELECT column list for device queries.
// MUST match deviceRow.scanArgs() order exactly.
const deviceColumns = `id, mac_address, ip_address, hostname, vendor, manufacturer,
	model, device_type, friendly_name, custom_name, notes,
	is_online, is_favorite, is_known,
	first_seen, last_seen, created_at, updated_at, open_ports, services`

// scanArgs returns pointers to all fields for sql.Scan()
func (r *deviceRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.MAC,
		&r.IP,
		&r.Hostname,
		&r.Vendor,
		&r.Manufacturer,
		&r.Model,
		&r.DeviceType,
		&r.FriendlyName,
		&r.CustomName,
		&r.Notes,
		&r.IsOnline,
		&r.IsFavorite,
		&r.IsKnown,
		&r.FirstSeen,
		&r.LastSeen,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.OpenPorts,
		&r.Services,
	}
}

// toDomain converts the scanned row to a domain.Device
func (r *deviceRow) toDomain() *domain.Device {
	return &domain.Device{
		ID:           r.ID,
		MAC:          r.MAC,
		IP:           nullToString(r.IP),
		Hostname:     nullToString(r.Hostname),
		Vendor:       nullToString(r.Vendor),
		Manufacturer: nullToString(r.Manufacturer),
		Model:        nullToString(r.Model),
		DeviceType:   nullToString(r.DeviceType),
		FriendlyName: nullToString(r.FriendlyName),
		CustomName:   nullToString(r.CustomName),
		Notes:        nullToString(r.Notes),
		IsOnline:     r.IsOnline,
		IsFavorite:   r.IsFavorite,
		IsKnown:      r.IsKnown,
		FirstSeen:    r.FirstSeen,
		LastSeen:     r.LastSeen,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		OpenPorts:    nullToString(r.OpenPorts),
		Services:     nullToString(r.Services),
	}
}

// ============================================================================
// Event Row Scanner
// ============================================================================

// eventRow holds all columns from a scan_events query for scanning
type eventRow struct {
	ID           int64
	DeviceID     int64
	MAC          string
	Type         string
	IP           sql.NullString
	OldIP        sql.NullString
	Timestamp    time.Time
	ResponseTime sql.NullFloat64
	ScanMethod   sql.NullString
}

// eventColumns is the SELECT column list for event queries.
// MUST match eventRow.scanArgs() order exactly.
const eventColumns = `id, device_id, mac_address, event_type, ip_address,
	old_ip_address, timestamp, response_time_ms, scan_method`

func (r *eventRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.DeviceID,
		&r.MAC,
		&r.Type,
		&r.IP,
		&r.OldIP,
		&r.Timestamp,
		&r.ResponseTime,
		&r.ScanMethod,
	}
}

func (r *eventRow) toDomain() *domain.ScanEvent {
	return &domain.ScanEvent{
		ID:             r.ID,
		DeviceID:       r.DeviceID,
		MAC:            r.MAC,
		Type:           domain.EventType(r.Type),
		IP:             nullToString(r.IP),
		OldIP:          nullToString(r.OldIP),
		Timestamp:      r.Timestamp,
		ResponseTimeMs: nullToFloatPtr(r.ResponseTime),
		ScanMethod:     nullToString(r.ScanMethod),
	}
}

// ============================================================================
// Session Row Scanner
// ============================================================================

// sessionRow holds all columns from a scan_sessions query for scanning
type sessionRow struct {
	ID            int64
	StartedAt     time.Time
	CompletedAt   sql.NullTime
	Status        string
	DevicesFound  int
	DevicesOnline int
	DevicesNew    int
	Subnet        sql.NullString
	ScanMethod    sql.NullString
	ErrorMessage  sql.NullString
}

// sessionColumns is the SELECT column list for session queries.
// MUST match sessionRow.scanArgs() order exactly.
const sessionColumns = `id, started_at, completed_at, status, devices_found,
	devices_online, devices_new, subnet, scan_method, error_message`

func (r *sessionRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.StartedAt,
		&r.CompletedAt,
		&r.Status,
		&r.DevicesFound,
		&r.DevicesOnline,
		&r.DevicesNew,
		&r.Subnet,
		&r.ScanMethod,
		&r.ErrorMessage,
	}
}

func (r *sessionRow) toDomain() *domain.ScanSession {
	return &domain.ScanSession{
		ID:            r.ID,
		StartedAt:     r.StartedAt,
		CompletedAt:   nullToTimePtr(r.CompletedAt),
		Status:        domain.SessionStatus(r.Status),
		DevicesFound:  r.DevicesFound,
		DevicesOnline: r.DevicesOnline,
		DevicesNew:    r.DevicesNew,
		Subnet:        nullToString(r.Subnet),
		ScanMethod:    nullToString(r.ScanMethod),
		ErrorMessage:  nullToString(r.ErrorMessage),
	}
}
