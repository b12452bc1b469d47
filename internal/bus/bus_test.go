package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("fetch.", 10)
	defer unsub()

	b.Emit(KindFetchStarted, "home")

	select {
	case evt := <-ch:
		if evt.Kind != KindFetchStarted {
			t.Errorf("got kind %q, want %s", evt.Kind, KindFetchStarted)
		}
		if evt.Timestamp.IsZero() {
			t.Error("event timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("home.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindFetchFinished})
	b.Publish(Event{Kind: KindHomeLoaded})

	select {
	case evt := <-ch:
		if evt.Kind != KindHomeLoaded {
			t.Errorf("got kind %q, want %s", evt.Kind, KindHomeLoaded)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("fetch.", 10)
	unsub()
	unsub() // second call is a no-op

	b.Emit(KindFetchFailed, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("fetch.", 1)
	defer unsub()

	b.Emit(KindFetchStarted, 1)
	b.Emit(KindFetchFinished, 2)

	evt := <-ch
	if evt.Kind != KindFetchStarted {
		t.Errorf("got %q, want %s", evt.Kind, KindFetchStarted)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}
