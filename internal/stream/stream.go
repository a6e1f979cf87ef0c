// Package stream fan-outs security events to live subscribers (the
// dashboard's SSE banner). Delivery is best effort; the audit log is
// the durable record, the stream only surfaces incidents as they happen.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event kinds published by the subsystem.
const (
	KindLockout             = "account_lockout"
	KindFingerprintMismatch = "fingerprint_mismatch"
	KindAuditWriteFailure   = "audit_write_failure"
)

// SecurityEvent is one incident pushed to subscribers.
type SecurityEvent struct {
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Stream fan-outs security events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan SecurityEvent
	next int
	now  func() time.Time
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{
		subs: make(map[int]chan SecurityEvent),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber and returns a channel which will
// receive events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan SecurityEvent {
	ch := make(chan SecurityEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish stamps the event and fan-outs it to all subscribers.
func (s *Stream) Publish(kind, detail string) {
	evt := SecurityEvent{Kind: kind, Detail: detail, OccurredAt: s.now().UTC()}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
