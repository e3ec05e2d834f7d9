package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesOnlyProfileSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine := s.Subscribe(ctx, "p1")
	other := s.Subscribe(ctx, "p2")

	s.Publish(SessionEvent{Profile: "p1", Kind: "login", Authenticated: true, Role: "admin", Generation: 1})

	select {
	case evt := <-mine:
		if evt.Kind != "login" || evt.Role != "admin" || evt.Timestamp.IsZero() {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event for p1")
	}
	select {
	case evt := <-other:
		t.Fatalf("p2 must not see p1 events, got %+v", evt)
	default:
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, "p1")
	if s.Subscribers("p1") != 1 {
		t.Fatalf("expected one subscriber, got %d", s.Subscribers("p1"))
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if s.Subscribers("p1") != 0 {
		t.Fatalf("expected subscriber removed, got %d", s.Subscribers("p1"))
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx, "p1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(SessionEvent{Profile: "p1", Kind: "login"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}
