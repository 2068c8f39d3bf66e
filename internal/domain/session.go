package domain

import "time"

// SessionStatus is the lifecycle state of a scan session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Trigger identifies what started a scan session.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// ScanSession records one end-to-end execution of the discovery
// pipeline. A session is created in the running state and transitions
// exactly once to completed or failed, after which it is immutable.
type ScanSession struct {
	ID            int64         `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Status        SessionStatus `json:"status"`
	DevicesFound  int           `json:"devices_found"`
	DevicesOnline int           `json:"devices_online"`
	DevicesNew    int           `json:"devices_new"`
	Subnet        string        `json:"subnet,omitempty"`
	ScanMethod    string        `json:"scan_method,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// Finished reports whether the session has reached a terminal state.
func (s *ScanSession) Finished() bool {
	return s.Status == SessionCompleted || s.Status == SessionFailed
}
