package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.PublishDraftRefreshed("node-1", "slot-a", "img://v2")

	select {
	case evt := <-ch:
		assert.Equal(t, models.EventTypeDraftRefreshed, evt.EventType)
		data, ok := evt.Data.(models.DraftRefreshedEvent)
		require.True(t, ok)
		assert.Equal(t, "node-1", data.NodeID)
		assert.Equal(t, "slot-a", data.SlotID)
		assert.Equal(t, "img://v2", data.PreviewRef)
		assert.False(t, data.Billable)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_PublishIsAsynchronous(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	// A subscriber with no buffer headroom must not make Publish block.
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(models.EventTypeDraftRefreshed, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked")
	}
	// Drain whatever was delivered.
	for {
		select {
		case <-ch:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ch, cancel := bus.Subscribe(1)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	assert.NotPanics(t, func() {
		bus.Publish(models.EventTypeSlotError, nil)
	})
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(nil)
	ch, _ := bus.Subscribe(1)

	bus.Close()
	assert.NotPanics(t, bus.Close)

	_, open := <-ch
	assert.False(t, open)
}
