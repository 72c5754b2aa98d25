package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	sid := "s1"
	ch := b.Subscribe(sid)

	evt := SSEEvent{Type: "exploration.progress", Data: map[string]any{"port": "INCOK"}}
	b.Publish(sid, evt)
	b.Publish("other", SSEEvent{Type: "ignored"})

	select {
	case got := <-ch:
		assert.Equal(t, evt.Type, got.Type)
		assert.Equal(t, "INCOK", got.Data.(map[string]any)["port"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(sid, ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// A second unsubscribe is a no-op.
	require.NotPanics(t, func() { b.Unsubscribe(sid, ch) })
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s")
	defer b.Unsubscribe("s", ch)

	for i := 0; i < 100; i++ {
		b.Publish("s", SSEEvent{Type: "tick"})
	}
	assert.Equal(t, cap(ch), len(ch))
}
