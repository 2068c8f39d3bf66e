package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
	"github.com/FlorentB974/lanmon/internal/repository"
)

// Result summarizes one reconciliation pass.
type Result struct {
	// Events derived this session, in emit order.
	Events []*domain.ScanEvent
	// Devices written this session (created or updated).
	Devices []*domain.Device
	// NewMACs marks which connected events belong to first-time
	// devices, so the publisher can tell device_new from a reconnect.
	NewMACs map[string]struct{}

	FoundCount  int
	NewCount    int
	OnlineCount int
}

// Reconciler compares a session's observations against the device
// registry, classifies every device and derives lifecycle events. It
// is the only writer of is_online and last_seen.
type Reconciler struct {
	store repository.Store
	log   logger.Logger

	// mu serializes the registry read-modify-write per session.
	mu sync.Mutex
}

// NewReconciler creates a Reconciler over the given store.
func NewReconciler(store repository.Store, log logger.Logger) *Reconciler {
	return &Reconciler{
		store: store,
		log:   log.Named("reconciler"),
	}
}

// Reconcile applies one session's observation set. Each device lands
// in exactly one category: new, reconnected, still-online, address
// changed or newly offline. All derived writes apply in a single
// transaction; on storage failure nothing is persisted.
//
// Malformed observations (no usable link address) are dropped
// silently. Duplicate observations for one endpoint keep the first
// seen value, which is the highest-precedence one since the chain
// emits in precedence order.
func (r *Reconciler) Reconcile(ctx context.Context, observations []domain.Observation, scanMethod string, now time.Time) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registry, err := r.store.GetAllDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device registry: %w", err)
	}

	byMAC := make(map[string]*domain.Device, len(registry))
	for _, device := range registry {
		byMAC[device.MAC] = device
	}

	result := &Result{NewMACs: make(map[string]struct{})}
	seen := make(map[string]struct{}, len(observations))

	for _, obs := range observations {
		mac, err := domain.CanonicalMAC(obs.MAC)
		if err != nil {
			r.log.Debug("dropping malformed observation",
				logger.String("mac", obs.MAC),
				logger.String("ip", obs.IP))
			continue
		}
		if _, dup := seen[mac]; dup {
			continue
		}
		seen[mac] = struct{}{}

		device, known := byMAC[mac]
		if !known {
			device = &domain.Device{
				MAC:       mac,
				IP:        obs.IP,
				IsOnline:  true,
				FirstSeen: now,
				LastSeen:  now,
			}
			device.ApplyObservation(obs)
			byMAC[mac] = device
			result.Devices = append(result.Devices, device)
			result.Events = append(result.Events, &domain.ScanEvent{
				MAC:            mac,
				Type:           domain.EventConnected,
				IP:             obs.IP,
				Timestamp:      now,
				ResponseTimeMs: obs.ResponseTimeMs,
				ScanMethod:     scanMethod,
			})
			result.NewMACs[mac] = struct{}{}
			result.NewCount++
			continue
		}

		if obs.IP != "" && device.IP != "" && obs.IP != device.IP {
			result.Events = append(result.Events, &domain.ScanEvent{
				DeviceID:       device.ID,
				MAC:            mac,
				Type:           domain.EventIPChanged,
				IP:             obs.IP,
				OldIP:          device.IP,
				Timestamp:      now,
				ResponseTimeMs: obs.ResponseTimeMs,
				ScanMethod:     scanMethod,
			})
			device.IP = obs.IP
		} else if obs.IP != "" && device.IP == "" {
			device.IP = obs.IP
		}

		if !device.IsOnline {
			device.IsOnline = true
			result.Events = append(result.Events, &domain.ScanEvent{
				DeviceID:       device.ID,
				MAC:            mac,
				Type:           domain.EventConnected,
				IP:             device.IP,
				Timestamp:      now,
				ResponseTimeMs: obs.ResponseTimeMs,
				ScanMethod:     scanMethod,
			})
		}

		device.LastSeen = now
		device.ApplyObservation(obs)
		result.Devices = append(result.Devices, device)
	}

	// Devices absent from this session go offline.
	for _, device := range registry {
		if _, observed := seen[device.MAC]; observed {
			continue
		}
		if !device.IsOnline {
			continue
		}
		device.IsOnline = false
		result.Devices = append(result.Devices, device)
		result.Events = append(result.Events, &domain.ScanEvent{
			DeviceID:   device.ID,
			MAC:        device.MAC,
			Type:       domain.EventDisconnected,
			IP:         device.IP,
			Timestamp:  now,
			ScanMethod: scanMethod,
		})
	}

	if err := r.store.ApplyReconciliation(ctx, result.Devices, result.Events); err != nil {
		return nil, fmt.Errorf("failed to apply reconciliation: %w", err)
	}

	result.FoundCount = len(seen)
	for _, device := range byMAC {
		if device.IsOnline {
			result.OnlineCount++
		}
	}
	return result, nil
}
