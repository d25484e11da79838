// Package events provides an asynchronous broadcast bus for slot lifecycle
// notifications. Publishing enqueues onto a dispatcher goroutine, so a
// listener can never run synchronously inside the reconciliation call that
// produced the event.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

const queueDepth = 256

// Bus fans slot events out to subscribers. Delivery is best-effort: a
// subscriber that falls behind has events dropped rather than blocking the
// dispatcher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan models.SlotEvent
	nextID int

	queue  chan models.SlotEvent
	done   chan struct{}
	closed sync.Once
	logger *zap.Logger
}

// NewBus creates a bus and starts its dispatcher.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		subs:   make(map[int]chan models.SlotEvent),
		queue:  make(chan models.SlotEvent, queueDepth),
		done:   make(chan struct{}),
		logger: logger,
	}
	go b.dispatch()
	return b
}

// Publish enqueues an event for asynchronous delivery. It never blocks; if
// the queue is full the event is dropped and counted against the log.
func (b *Bus) Publish(eventType string, data interface{}) {
	evt := models.SlotEvent{EventType: eventType, Data: data}
	select {
	case b.queue <- evt:
	case <-b.done:
	default:
		b.logger.Warn("event queue full, dropping event", zap.String("event_type", eventType))
	}
}

// PublishDraftRefreshed is the cosmetic preview-change notification. It is
// explicitly non-billable.
func (b *Bus) PublishDraftRefreshed(nodeID, slotID, previewRef string) {
	b.Publish(models.EventTypeDraftRefreshed, models.DraftRefreshedEvent{
		NodeID:     nodeID,
		SlotID:     slotID,
		PreviewRef: previewRef,
		Billable:   false,
		Timestamp:  time.Now().UTC(),
	})
}

// Subscribe registers a listener channel. The returned cancel func removes
// the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan models.SlotEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan models.SlotEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the dispatcher and closes all subscriber channels.
func (b *Bus) Close() {
	b.closed.Do(func() {
		close(b.done)
		b.mu.Lock()
		for id, ch := range b.subs {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	})
}

func (b *Bus) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case evt := <-b.queue:
			b.mu.RLock()
			for _, ch := range b.subs {
				select {
				case ch <- evt:
				default:
					// Slow subscriber; drop rather than stall the bus.
				}
			}
			b.mu.RUnlock()
		}
	}
}
