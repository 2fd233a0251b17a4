package api

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrptw/internal/model"
)

func recvEvent(t *testing.T, ch chan model.RunEvent) model.RunEvent {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "channel closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return model.RunEvent{}
}

func requireClosed(t *testing.T, ch chan model.RunEvent) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after unsubscribe")
		}
	}
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r1")
	other := b.Subscribe("r2")

	b.Publish("r1", model.RunEvent{Type: model.EventProgress, RunID: "r1", Cost: 7})
	got := recvEvent(t, ch)
	assert.Equal(t, model.EventProgress, got.Type)
	assert.Equal(t, 7, got.Cost)
	assert.Empty(t, other)

	b.Unsubscribe("r1", ch)
	requireClosed(t, ch)
	// a second unsubscribe is a no-op
	b.Unsubscribe("r1", ch)
	b.Unsubscribe("r2", other)
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r1")
	defer b.Unsubscribe("r1", ch)
	for i := 0; i < cap(ch)+5; i++ {
		b.Publish("r1", model.RunEvent{Iteration: i})
	}
	assert.Len(t, ch, cap(ch))
}

func TestRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Ping(context.Background()))

	ch := b.Subscribe("r1")
	b.Publish("r2", model.RunEvent{Type: model.EventProgress, RunID: "r2"})
	b.Publish("r1", model.RunEvent{Type: model.EventCompleted, RunID: "r1", Status: model.RunDone, Cost: 42})

	got := recvEvent(t, ch)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, model.RunDone, got.Status)
	assert.Equal(t, 42, got.Cost)

	b.Unsubscribe("r1", ch)
	requireClosed(t, ch)
}
