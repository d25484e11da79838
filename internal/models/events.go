package models

import (
	"time"
)

// DraftRefreshedEvent is the broadcast notification emitted after a
// reconciliation changes a slot's preview while status and generation
// requirements stay the same. It is cosmetic, never billable, and is
// dispatched asynchronously after the registry has committed the new state.
type DraftRefreshedEvent struct {
	NodeID     string    `json:"node_id"`
	SlotID     string    `json:"slot_id"`
	PreviewRef string    `json:"preview_ref"`
	Billable   bool      `json:"billable"`
	Timestamp  time.Time `json:"timestamp"`
}

// SlotEvent is the wire envelope for slot lifecycle events pushed over the
// websocket stream.
type SlotEvent struct {
	EventType string      `json:"event_type"`
	Data      interface{} `json:"data"`
}

// Event types
const (
	EventTypeDraftRefreshed  = "slot.draft_refreshed"
	EventTypeSlotConfirmed   = "slot.confirmed"
	EventTypeSlotError       = "slot.error"
	EventTypeSlotSynthesized = "slot.synthesized"
)
