package streaming

import (
	"context"
	"testing"
	"time"
)

func drainN(t *testing.T, ch <-chan StreamEvent, n int, timeout time.Duration) []StreamEvent {
	t.Helper()
	events := make([]StreamEvent, 0, n)
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case e := <-ch:
			events = append(events, e)
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(events))
		}
	}
	return events
}

func TestHub_PublishDeliversToSubscriber(t *testing.T) {
	hub := NewHub(Config{BufferSize: 4})
	pub, _, err := hub.OpenTurn(context.Background(), "t1")
	if err != nil {
		t.Fatalf("OpenTurn() error = %v", err)
	}

	sub, unsubscribe, err := hub.Subscribe("t1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsubscribe()

	pub.Thinking("considering options")
	pub.TextDelta("hello")

	events := drainN(t, sub, 2, time.Second)
	if events[0].Type != EventThinking || events[0].Thinking != "considering options" {
		t.Errorf("event[0] = %+v, want thinking", events[0])
	}
	if events[1].Type != EventTextDelta || events[1].Delta != "hello" {
		t.Errorf("event[1] = %+v, want text_delta", events[1])
	}
	if events[1].Sequence <= events[0].Sequence {
		t.Error("expected strictly increasing sequence numbers")
	}
}

func TestHub_DoneEmitsTerminalEvent(t *testing.T) {
	hub := NewHub(Config{BufferSize: 4})
	pub, _, _ := hub.OpenTurn(context.Background(), "t1")
	sub, unsubscribe, _ := hub.Subscribe("t1")
	defer unsubscribe()

	pub.TextDelta("partial")
	hub.Done("t1")

	events := drainN(t, sub, 2, time.Second)
	if events[1].Type != EventDone {
		t.Errorf("last event type = %v, want done", events[1].Type)
	}
}

func TestHub_DisconnectCancelsContextAndEmitsDisconnect(t *testing.T) {
	hub := NewHub(Config{BufferSize: 4})
	_, turnCtx, _ := hub.OpenTurn(context.Background(), "t1")
	sub, unsubscribe, _ := hub.Subscribe("t1")
	defer unsubscribe()

	hub.Disconnect("t1")

	select {
	case <-turnCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected turn context to be cancelled")
	}

	events := drainN(t, sub, 1, time.Second)
	if events[0].Type != EventDisconnect {
		t.Errorf("event type = %v, want disconnect", events[0].Type)
	}
}

func TestHub_SubscribeUnknownTurnErrors(t *testing.T) {
	hub := NewHub(Config{BufferSize: 4})
	if _, _, err := hub.Subscribe("nope"); err == nil {
		t.Error("Subscribe() on unknown turn, want error")
	}
}

func TestHub_PublishBlocksUntilCancelledOnFullBuffer(t *testing.T) {
	hub := NewHub(Config{BufferSize: 1})
	pub, turnCtx, _ := hub.OpenTurn(context.Background(), "t1")

	// A subscriber that never drains eventually stalls fanout and the
	// bounded ingestion channel behind it, so a producer that keeps
	// publishing must eventually block rather than drop events.
	_, unsubscribe, _ := hub.Subscribe("t1")
	defer unsubscribe()

	stopped := make(chan struct{})
	go func() {
		for {
			pub.TextDelta("x")
			if turnCtx.Err() != nil {
				close(stopped)
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-stopped:
		t.Fatal("producer loop exited before the turn was cancelled")
	default:
	}

	hub.Disconnect("t1")

	// The stalled subscriber means Disconnect's own terminal-event delivery
	// attempt also has to wait out its bounded safety timeout before
	// cancelling, so this allows a generous margin past it.
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("producer did not observe turn cancellation and stop")
	}
}

func TestHub_HeartbeatEmittedOnSilence(t *testing.T) {
	hub := NewHub(Config{BufferSize: 4, HeartbeatInterval: 20 * time.Millisecond})
	_, _, _ = hub.OpenTurn(context.Background(), "t1")
	sub, unsubscribe, _ := hub.Subscribe("t1")
	defer unsubscribe()

	events := drainN(t, sub, 1, time.Second)
	if events[0].Type != EventHeartbeat {
		t.Errorf("event type = %v, want heartbeat", events[0].Type)
	}
}

func TestHub_LateSubscriberDoesNotReceiveEarlierEvents(t *testing.T) {
	hub := NewHub(Config{BufferSize: 4})
	pub, _, _ := hub.OpenTurn(context.Background(), "t1")

	early, unsubEarly, _ := hub.Subscribe("t1")
	defer unsubEarly()
	pub.TextDelta("before")
	drainN(t, early, 1, time.Second)

	late, unsubLate, _ := hub.Subscribe("t1")
	defer unsubLate()
	pub.TextDelta("after")

	events := drainN(t, late, 1, time.Second)
	if events[0].Delta != "after" {
		t.Errorf("late subscriber got %q, want only the post-subscription event", events[0].Delta)
	}
}
