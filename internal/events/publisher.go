// Package events fans lifecycle and session notifications out to
// subscribers. Delivery is best-effort: each subscriber owns a bounded
// FIFO queue and when it overflows the oldest undelivered message is
// dropped, so a slow consumer can never stall the discovery pipeline.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/FlorentB974/lanmon/internal/logger"
)

// Message types carried on the stream.
const (
	TypeScanStarted        = "scan_started"
	TypeScanCompleted      = "scan_completed"
	TypeScanFailed         = "scan_failed"
	TypeDeviceNew          = "device_new"
	TypeDeviceConnected    = "device_connected"
	TypeDeviceDisconnected = "device_disconnected"
	TypeDeviceIPChanged    = "device_ip_changed"
)

// Message is the wire shape delivered to subscribers: one JSON object
// per event, no batching.
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// DefaultQueueSize is the per-subscriber queue depth.
const DefaultQueueSize = 64

// Subscriber is one registered consumer. Read messages from C; the
// channel closes on Unsubscribe or publisher Close.
type Subscriber struct {
	ch      chan Message
	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

// C returns the subscriber's message channel.
func (s *Subscriber) C() <-chan Message {
	return s.ch
}

// Dropped reports how many messages were discarded due to overflow.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// offer enqueues without blocking. On a full queue the oldest pending
// message is evicted to make room for the new one.
func (s *Subscriber) offer(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Publisher registers subscribers and fans messages out to them.
type Publisher struct {
	mu        sync.RWMutex
	subs      map[*Subscriber]struct{}
	queueSize int
	log       logger.Logger
}

// NewPublisher creates a publisher. queueSize <= 0 selects the default.
func NewPublisher(log logger.Logger, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Publisher{
		subs:      make(map[*Subscriber]struct{}),
		queueSize: queueSize,
		log:       log.Named("events"),
	}
}

// Subscribe registers a new consumer.
func (p *Publisher) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Message, p.queueSize)}
	p.mu.Lock()
	p.subs[sub] = struct{}{}
	count := len(p.subs)
	p.mu.Unlock()

	p.log.Debug("subscriber added", logger.Int("subscribers", count))
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
func (p *Publisher) Unsubscribe(sub *Subscriber) {
	p.mu.Lock()
	_, ok := p.subs[sub]
	delete(p.subs, sub)
	count := len(p.subs)
	p.mu.Unlock()

	if ok {
		sub.close()
		p.log.Debug("subscriber removed", logger.Int("subscribers", count))
	}
}

// Publish delivers the message to every subscriber without blocking.
// FIFO order is preserved per subscriber; there is no ordering
// guarantee across subscribers.
func (p *Publisher) Publish(msg Message) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for sub := range p.subs {
		sub.offer(msg)
	}
}

// SubscriberCount reports the number of registered consumers.
func (p *Publisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Close removes and closes every subscriber.
func (p *Publisher) Close() {
	p.mu.Lock()
	subs := p.subs
	p.subs = make(map[*Subscriber]struct{})
	p.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}
