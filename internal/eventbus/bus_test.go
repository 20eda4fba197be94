package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeEntryFired, Data: "x"})

	select {
	case ev := <-ch:
		if ev.Type != TypeEntryFired {
			t.Errorf("Type = %q, want %q", ev.Type, TypeEntryFired)
		}
		if ev.Data != "x" {
			t.Errorf("Data = %v, want %q", ev.Data, "x")
		}
		if ev.Time.IsZero() {
			t.Error("Time is zero, want publish timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeEntryFired})
	// Buffer is full; this must not block.
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: TypeSunInstalled})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	ev := <-ch
	if ev.Type != TypeEntryFired {
		t.Errorf("Type = %q, want first event %q", ev.Type, TypeEntryFired)
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	// Publishing after unsubscribe must not panic even though the
	// subscriber channel is gone.
	b.Publish(Event{Type: TypeActionDispatched})
}
