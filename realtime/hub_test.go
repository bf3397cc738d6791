package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch1, cancel1 := h.Subscribe()
	defer cancel1()
	ch2, cancel2 := h.Subscribe()
	defer cancel2()

	h.Publish(ReactionEvent{PostID: 1, Reactions: map[string]int{"heart": 2}})

	for _, ch := range []<-chan ReactionEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, uint(1), ev.PostID)
			assert.Equal(t, 2, ev.Reactions["heart"])
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestHubLateSubscriberSeesOnlyLaterEvents(t *testing.T) {
	h := NewHub()
	defer h.Close()

	h.Publish(ReactionEvent{PostID: 1, Reactions: map[string]int{"heart": 1}})

	ch, cancel := h.Subscribe()
	defer cancel()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected replayed event: %+v", ev)
	default:
	}

	h.Publish(ReactionEvent{PostID: 2, Reactions: map[string]int{"clap": 1}})
	select {
	case ev := <-ch:
		assert.Equal(t, uint(2), ev.PostID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive later event")
	}
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub()
	defer h.Close()

	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Overflow the subscriber buffer; publishes must drop, not stall.
		for i := 0; i < 100; i++ {
			h.Publish(ReactionEvent{PostID: uint(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHubCancelIsIdempotent(t *testing.T) {
	h := NewHub()
	defer h.Close()

	_, cancel := h.Subscribe()
	require.Equal(t, 1, h.SubscriberCount())

	cancel()
	cancel()
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestHubCloseEndsSubscribers(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe()
	defer cancel()

	h.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publishing and subscribing after close are safe no-ops.
	h.Publish(ReactionEvent{PostID: 1})
	ch2, cancel2 := h.Subscribe()
	defer cancel2()
	_, open = <-ch2
	assert.False(t, open)
}
