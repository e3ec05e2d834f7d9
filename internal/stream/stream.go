package stream

import (
	"context"
	"sync"
	"time"
)

// SessionEvent describes a session state change for one browser profile.
type SessionEvent struct {
	Profile       string    `json:"profile"`
	Kind          string    `json:"kind"`
	Authenticated bool      `json:"authenticated"`
	Role          string    `json:"role,omitempty"`
	Generation    uint64    `json:"generation"`
	Timestamp     time.Time `json:"timestamp"`
}

// Stream fan-outs session events to subscribers (SSE clients) of each profile.
type Stream struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan SessionEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[string]map[int]chan SessionEvent)}
}

// Subscribe registers a subscriber for profile and returns a channel which will
// receive its events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context, profile string) <-chan SessionEvent {
	ch := make(chan SessionEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	if s.subs[profile] == nil {
		s.subs[profile] = make(map[int]chan SessionEvent)
	}
	s.subs[profile][id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs[profile], id)
		if len(s.subs[profile]) == 0 {
			delete(s.subs, profile)
		}
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to every subscriber of evt.Profile.
func (s *Stream) Publish(evt SessionEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs[evt.Profile] {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports how many listeners profile currently has.
func (s *Stream) Subscribers(profile string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[profile])
}
