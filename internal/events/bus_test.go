package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan StreamStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e StreamStateChangedEvent) {
		received <- e
	})
	defer unsub()

	ev := StreamStateChangedEvent{
		StreamID:  "stream-1",
		OldState:  "connecting",
		NewState:  "connected",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	got := <-received
	if got.StreamID != ev.StreamID {
		t.Errorf("Expected stream_id %s, got %s", ev.StreamID, got.StreamID)
	}
	if got.NewState != "connected" {
		t.Errorf("Expected new_state connected, got %s", got.NewState)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan StreamMetricsEvent, 1)
	received2 := make(chan StreamMetricsEvent, 1)

	unsub1 := bus.Subscribe(func(e StreamMetricsEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e StreamMetricsEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(StreamMetricsEvent{StreamID: "stream-1", FPS: 25})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ForwardProgressEvent, 1)

	unsub := bus.Subscribe(func(e ForwardProgressEvent) {
		received <- e
	})

	bus.Publish(ForwardProgressEvent{TaskID: "task-1"})
	<-received

	unsub()
	bus.Publish(ForwardProgressEvent{TaskID: "task-2"})

	select {
	case e := <-received:
		t.Errorf("received event after unsubscribe: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeToChannel_DropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)

	unsub := SubscribeToChannel[StreamStateChangedEvent](bus, ch)
	defer unsub()

	// Second publish must not block even though nobody drains the channel.
	done := make(chan struct{})
	go func() {
		bus.Publish(StreamStateChangedEvent{StreamID: "a"})
		bus.Publish(StreamStateChangedEvent{StreamID: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber channel")
	}
}
