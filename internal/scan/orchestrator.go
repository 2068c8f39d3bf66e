package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/events"
	"github.com/FlorentB974/lanmon/internal/logger"
	"github.com/FlorentB974/lanmon/internal/repository"
)

// Prober runs the discovery fallback chain for one session and
// reports which strategy produced the observations.
type Prober interface {
	Run(ctx context.Context, subnet string) ([]domain.Observation, string, error)
}

// ObservationEnricher adds descriptive attributes after discovery.
type ObservationEnricher interface {
	Apply(ctx context.Context, observations []domain.Observation) []domain.Observation
}

// Orchestrator runs one scan session end to end: session row, probe
// chain, enrichment, reconciliation, finalization and event fan-out.
type Orchestrator struct {
	store      repository.Store
	prober     Prober
	enricher   ObservationEnricher
	reconciler *Reconciler
	publisher  *events.Publisher
	subnet     string
	log        logger.Logger
}

// NewOrchestrator wires the session pipeline. enricher may be nil.
func NewOrchestrator(store repository.Store, prober Prober, enricher ObservationEnricher, reconciler *Reconciler, publisher *events.Publisher, subnet string, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		prober:     prober,
		enricher:   enricher,
		reconciler: reconciler,
		publisher:  publisher,
		subnet:     subnet,
		log:        log.Named("orchestrator"),
	}
}

// RunSession executes one scan session. onStart, when non-nil, is
// invoked with the created session row before probing begins, which
// lets the scheduler expose the in-flight session to coalesced
// triggers. The returned session is always finalized; a non-nil error
// means it finalized as failed.
func (o *Orchestrator) RunSession(ctx context.Context, trigger domain.Trigger, onStart func(*domain.ScanSession)) (*domain.ScanSession, error) {
	session := &domain.ScanSession{
		StartedAt: time.Now().UTC(),
		Status:    domain.SessionRunning,
		Subnet:    o.subnet,
	}
	if err := o.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create scan session: %w", err)
	}
	if onStart != nil {
		onStart(session)
	}

	o.log.Info("scan session started",
		logger.Int64("session_id", session.ID),
		logger.String("trigger", string(trigger)),
		logger.String("subnet", o.subnet))

	o.publisher.Publish(events.Message{
		Type: events.TypeScanStarted,
		Data: map[string]any{
			"session_id": session.ID,
			"subnet":     o.subnet,
			"trigger":    string(trigger),
			"started_at": session.StartedAt.Format(time.RFC3339),
		},
	})

	observations, scanMethod, err := o.prober.Run(ctx, o.subnet)
	if err != nil {
		return o.fail(ctx, session, fmt.Errorf("discovery failed: %w", err))
	}
	session.ScanMethod = scanMethod

	if o.enricher != nil {
		observations = o.enricher.Apply(ctx, observations)
	}

	result, err := o.reconciler.Reconcile(ctx, observations, scanMethod, time.Now().UTC())
	if err != nil {
		return o.fail(ctx, session, err)
	}

	now := time.Now().UTC()
	session.CompletedAt = &now
	session.Status = domain.SessionCompleted
	session.DevicesFound = result.FoundCount
	session.DevicesOnline = result.OnlineCount
	session.DevicesNew = result.NewCount
	if err := o.finalizeSession(ctx, session); err != nil {
		// The registry writes already applied, so the lifecycle
		// messages still go out, but the session must not be reported
		// as completed when its row could not leave the running state.
		session.Status = domain.SessionFailed
		session.ErrorMessage = err.Error()
		o.publishLifecycle(result)
		o.publisher.Publish(events.Message{
			Type: events.TypeScanFailed,
			Data: map[string]any{
				"session_id": session.ID,
				"error":      err.Error(),
			},
		})
		o.log.Error("scan session finalization failed",
			logger.Int64("session_id", session.ID),
			logger.Error(err))
		return session, err
	}

	o.publishLifecycle(result)
	o.publisher.Publish(events.Message{
		Type: events.TypeScanCompleted,
		Data: map[string]any{
			"session_id":     session.ID,
			"scan_method":    scanMethod,
			"devices_found":  result.FoundCount,
			"devices_online": result.OnlineCount,
			"devices_new":    result.NewCount,
			"completed_at":   now.Format(time.RFC3339),
		},
	})

	o.log.Info("scan session completed",
		logger.Int64("session_id", session.ID),
		logger.String("scan_method", scanMethod),
		logger.Int("found", result.FoundCount),
		logger.Int("online", result.OnlineCount),
		logger.Int("new", result.NewCount),
		logger.Duration("elapsed", now.Sub(session.StartedAt)))
	return session, nil
}

// finalizeSession persists the terminal session state. The write is
// retried once: losing it leaves a permanently running row in session
// history.
func (o *Orchestrator) finalizeSession(ctx context.Context, session *domain.ScanSession) error {
	err := o.store.UpdateSession(ctx, session)
	if err == nil {
		return nil
	}
	o.log.Warn("session update failed, retrying",
		logger.Int64("session_id", session.ID),
		logger.Error(err))
	if err := o.store.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}
	return nil
}

// fail finalizes the session as failed and emits scan_failed. The
// original error is returned for the caller to log.
func (o *Orchestrator) fail(ctx context.Context, session *domain.ScanSession, cause error) (*domain.ScanSession, error) {
	now := time.Now().UTC()
	session.CompletedAt = &now
	session.Status = domain.SessionFailed
	session.ErrorMessage = cause.Error()
	if err := o.finalizeSession(ctx, session); err != nil {
		o.log.Error("failed to finalize failed session",
			logger.Int64("session_id", session.ID),
			logger.Error(err))
	}

	o.publisher.Publish(events.Message{
		Type: events.TypeScanFailed,
		Data: map[string]any{
			"session_id": session.ID,
			"error":      cause.Error(),
		},
	})

	o.log.Warn("scan session failed",
		logger.Int64("session_id", session.ID),
		logger.Error(cause))
	return session, cause
}

// publishLifecycle fans out one message per derived event.
func (o *Orchestrator) publishLifecycle(result *Result) {
	for _, event := range result.Events {
		o.publisher.Publish(events.Message{
			Type: messageType(event, result.NewMACs),
			Data: eventData(event),
		})
	}
}

func messageType(event *domain.ScanEvent, newMACs map[string]struct{}) string {
	switch event.Type {
	case domain.EventConnected:
		if _, isNew := newMACs[event.MAC]; isNew {
			return events.TypeDeviceNew
		}
		return events.TypeDeviceConnected
	case domain.EventDisconnected:
		return events.TypeDeviceDisconnected
	case domain.EventIPChanged:
		return events.TypeDeviceIPChanged
	}
	return string(event.Type)
}

func eventData(event *domain.ScanEvent) map[string]any {
	data := map[string]any{
		"mac_address": event.MAC,
		"ip_address":  event.IP,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
		"scan_method": event.ScanMethod,
	}
	if event.DeviceID != 0 {
		data["device_id"] = event.DeviceID
	}
	if event.OldIP != "" {
		data["old_ip_address"] = event.OldIP
	}
	if event.ResponseTimeMs != nil {
		data["response_time_ms"] = *event.ResponseTimeMs
	}
	return data
}
