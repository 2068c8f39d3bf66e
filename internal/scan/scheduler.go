package scan

import (
	"context"
	"sync"
	"time"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
)

// inflight tracks the session currently being run so coalesced
// triggers can report it even before the session row exists.
type inflight struct {
	once    sync.Once
	created chan struct{}
	session *domain.ScanSession
}

func newInflight() *inflight {
	return &inflight{created: make(chan struct{})}
}

// publish records the session row. A snapshot is stored because the
// orchestrator keeps mutating the original until the session ends.
func (fl *inflight) publish(session *domain.ScanSession) {
	fl.once.Do(func() {
		if session != nil {
			snapshot := *session
			fl.session = &snapshot
		}
		close(fl.created)
	})
}

// await blocks until the session row is known (or creation failed, in
// which case the session is nil).
func (fl *inflight) await() *domain.ScanSession {
	<-fl.created
	return fl.session
}

// Scheduler fires scan sessions on a fixed interval and accepts manual
// triggers. At most one session runs at a time: a trigger arriving
// while a session is in flight is coalesced and reports that session.
// The interval is measured from the end of the previous session, not
// from wall-clock ticks, so slow probes never cause overlapping runs.
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration
	log          logger.Logger

	mu      sync.Mutex
	current *inflight

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler over the orchestrator.
func NewScheduler(orchestrator *Orchestrator, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		interval:     interval,
		log:          log.Named("scheduler"),
	}
}

// Start launches the scheduling loop. The first session runs
// immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.log.Info("scheduler started", logger.Duration("interval", s.interval))
		for {
			// The in-flight session is not cancellable mid-strategy;
			// shutdown waits for it instead of aborting it.
			s.runOnce(context.WithoutCancel(ctx), domain.TriggerScheduled)

			select {
			case <-ctx.Done():
				return
			case <-time.After(s.interval):
			}
		}
	}()
}

// Stop halts the loop and waits for any in-flight session to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("scheduler stopped")
}

// Trigger requests an on-demand session and waits for it to finish.
// If a session is already running it is returned instead of starting a
// second one.
func (s *Scheduler) Trigger(ctx context.Context) *domain.ScanSession {
	return s.runOnce(ctx, domain.TriggerManual)
}

// TriggerAsync requests an on-demand session and returns as soon as
// the session row exists, leaving the session running in the
// background. A trigger arriving while a session is in flight returns
// that session.
func (s *Scheduler) TriggerAsync(ctx context.Context) *domain.ScanSession {
	s.mu.Lock()
	if fl := s.current; fl != nil {
		s.mu.Unlock()
		return fl.await()
	}
	fl := newInflight()
	s.current = fl
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), fl, domain.TriggerManual)
	return fl.await()
}

// Running reports the in-flight session, or nil when idle.
func (s *Scheduler) Running() *domain.ScanSession {
	s.mu.Lock()
	fl := s.current
	s.mu.Unlock()
	if fl == nil {
		return nil
	}
	return fl.await()
}

func (s *Scheduler) runOnce(ctx context.Context, trigger domain.Trigger) *domain.ScanSession {
	s.mu.Lock()
	if fl := s.current; fl != nil {
		s.mu.Unlock()
		session := fl.await()
		s.log.Debug("trigger coalesced into running session",
			logger.String("trigger", string(trigger)))
		return session
	}
	fl := newInflight()
	s.current = fl
	s.mu.Unlock()

	return s.run(ctx, fl, trigger)
}

func (s *Scheduler) run(ctx context.Context, fl *inflight, trigger domain.Trigger) *domain.ScanSession {
	session, err := s.orchestrator.RunSession(ctx, trigger, fl.publish)
	if err != nil {
		s.log.Warn("scan session ended with error", logger.Error(err))
	}
	// Creation may have failed before onStart ran.
	fl.publish(session)

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return session
}
