// Package events provides the in-process pub/sub channel that decouples
// pipeline units from the controller and from observers such as metrics
// and persistence listeners.
package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

// Pipeline lifecycle event types.
const (
	EventStageStarted   EventType = "stage.started"
	EventStageCompleted EventType = "stage.completed"
	EventStageFailed    EventType = "stage.failed"

	EventDebateResolved EventType = "debate.resolved"
	EventVerdictReached EventType = "verdict.reached"
	EventMetaEvaluated  EventType = "meta.evaluated"

	EventCorrectionRequested EventType = "correction.requested"
	EventFeedbackApplied     EventType = "feedback.applied"

	EventCacheHit  EventType = "cache.hit"
	EventCacheMiss EventType = "cache.miss"
)

// Event is one bus message.
type Event struct {
	ID        string
	Type      EventType
	Source    string
	RunID     string
	Payload   interface{}
	Timestamp time.Time
}

// NewEvent creates an event with the given type, source and payload.
func NewEvent(eventType EventType, source string, payload interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// WithRun tags the event with the pipeline run that produced it.
func (e *Event) WithRun(runID string) *Event {
	e.RunID = runID
	return e
}

// subscriber is one registered listener.
type subscriber struct {
	ch     chan *Event
	filter func(*Event) bool
	mu     sync.RWMutex
	closed bool
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// trySend delivers the event unless the subscriber is closed or its buffer
// stays full past the timeout.
func (s *subscriber) trySend(event *Event, timeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.ch <- event:
		return true
	case <-timer.C:
		return false
	}
}

// BusConfig holds configuration for the event bus.
type BusConfig struct {
	BufferSize     int           // buffer size for subscriber channels
	PublishTimeout time.Duration // per-subscriber delivery timeout
}

// DefaultBusConfig returns the default bus configuration.
func DefaultBusConfig() *BusConfig {
	return &BusConfig{
		BufferSize:     256,
		PublishTimeout: 10 * time.Millisecond,
	}
}

// BusMetrics tracks event bus statistics.
type BusMetrics struct {
	Published int64
	Delivered int64
	Dropped   int64
}

// Bus is the in-process publish/subscribe channel. Delivery is best-effort:
// a slow subscriber drops events rather than blocking the pipeline.
type Bus struct {
	subs    map[EventType][]*subscriber
	allSubs []*subscriber
	mu      sync.RWMutex
	config  *BusConfig
	metrics BusMetrics
	closed  bool
}

// NewBus creates a new event bus.
func NewBus(config *BusConfig) *Bus {
	if config == nil {
		config = DefaultBusConfig()
	}
	return &Bus{
		subs:   make(map[EventType][]*subscriber),
		config: config,
	}
}

// Publish delivers the event to all matching subscribers.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := b.subs[event.Type]
	allSubs := b.allSubs
	b.mu.RUnlock()

	atomic.AddInt64(&b.metrics.Published, 1)

	for _, sub := range subs {
		b.deliver(sub, event)
	}
	for _, sub := range allSubs {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub *subscriber, event *Event) {
	if sub.filter != nil && !sub.filter(event) {
		return
	}
	if sub.trySend(event, b.config.PublishTimeout) {
		atomic.AddInt64(&b.metrics.Delivered, 1)
	} else {
		atomic.AddInt64(&b.metrics.Dropped, 1)
	}
}

// Subscribe subscribes to events of a specific type.
func (b *Bus) Subscribe(eventType EventType) <-chan *Event {
	return b.SubscribeWithFilter(eventType, nil)
}

// SubscribeWithFilter subscribes with a custom filter function.
func (b *Bus) SubscribeWithFilter(eventType EventType, filter func(*Event) bool) <-chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan *Event)
		close(ch)
		return ch
	}

	sub := &subscriber{
		ch:     make(chan *Event, b.config.BufferSize),
		filter: filter,
	}
	b.subs[eventType] = append(b.subs[eventType], sub)
	return sub.ch
}

// SubscribeAll subscribes to every event type.
func (b *Bus) SubscribeAll() <-chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan *Event)
		close(ch)
		return ch
	}

	sub := &subscriber{ch: make(chan *Event, b.config.BufferSize)}
	b.allSubs = append(b.allSubs, sub)
	return sub.ch
}

// Unsubscribe removes a subscriber by channel. The remaining subscribers
// go into a fresh slice so a Publish iterating a snapshot of the old one
// is never disturbed.
func (b *Bus) Unsubscribe(ch <-chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		if next, ok := without(subs, ch); ok {
			b.subs[eventType] = next
			return
		}
	}
	if next, ok := without(b.allSubs, ch); ok {
		b.allSubs = next
	}
}

func without(subs []*subscriber, ch <-chan *Event) ([]*subscriber, bool) {
	for i, sub := range subs {
		if sub.ch == ch {
			sub.close()
			next := make([]*subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			return next, true
		}
	}
	return subs, false
}

// Metrics returns a snapshot of bus statistics.
func (b *Bus) Metrics() BusMetrics {
	return BusMetrics{
		Published: atomic.LoadInt64(&b.metrics.Published),
		Delivered: atomic.LoadInt64(&b.metrics.Delivered),
		Dropped:   atomic.LoadInt64(&b.metrics.Dropped),
	}
}

// Wait blocks until an event of the given type arrives or the context ends.
func (b *Bus) Wait(ctx context.Context, eventType EventType) (*Event, error) {
	ch := b.Subscribe(eventType)
	defer b.Unsubscribe(ch)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case event, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("event bus closed")
		}
		return event, nil
	}
}

// Close shuts down the bus and all subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.close()
		}
	}
	for _, sub := range b.allSubs {
		sub.close()
	}
	return nil
}
