package reconcile

import (
	"fmt"
	"sync"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/events"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

// SlotKey identifies one slot in the registry.
type SlotKey struct {
	NodeID string
	SlotID string
}

func (k SlotKey) String() string {
	return k.NodeID + "/" + k.SlotID
}

// ErrSlotNotFound is returned for operations against a slot that was never
// reconciled or has been torn down.
var ErrSlotNotFound = fmt.Errorf("slot not found")

// Registry is the per-(node, slot) payload store. Every write goes through
// Merge under one mutex, so an update is a single atomic turn and no reader
// can observe a half-merged payload. A committed write that changed the
// preview without changing status or generation requirements emits a
// draft-refreshed notification through the bus, which dispatches on its own
// goroutine, never inside the caller's update.
type Registry struct {
	mu    sync.Mutex
	slots map[SlotKey]models.SlotPayload

	bus    *events.Bus
	logger *zap.Logger
}

// NewRegistry creates an empty registry publishing to bus.
func NewRegistry(bus *events.Bus, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		slots:  make(map[SlotKey]models.SlotPayload),
		bus:    bus,
		logger: logger,
	}
}

// Get returns the stored payload for key.
func (r *Registry) Get(key SlotKey) (models.SlotPayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.slots[key]
	return p, ok
}

// Keys returns a snapshot of all registered slot keys.
func (r *Registry) Keys() []SlotKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]SlotKey, 0, len(r.slots))
	for k := range r.slots {
		keys = append(keys, k)
	}
	return keys
}

// Apply merges in against the stored payload and commits the result. A
// structurally identical result is not committed, so a no-op update cannot
// re-trigger downstream recomputation or notifications.
func (r *Registry) Apply(key SlotKey, in models.Candidate) models.SlotPayload {
	r.mu.Lock()

	var cur *models.SlotPayload
	if stored, ok := r.slots[key]; ok {
		cur = &stored
	}
	merged := Merge(in, cur)

	if cur != nil && cmp.Equal(*cur, merged) {
		r.mu.Unlock()
		return merged
	}
	r.slots[key] = merged
	prev := models.SlotPayload{}
	if cur != nil {
		prev = *cur
	}
	r.mu.Unlock()

	r.logger.Debug("slot payload committed",
		zap.String("slot", key.String()),
		zap.String("status", string(merged.Status)),
		zap.Int64("generation_id", merged.GenerationID),
	)

	if draftRefreshOnly(prev, merged) {
		r.bus.PublishDraftRefreshed(key.NodeID, key.SlotID, merged.PreviewURL)
	}
	return merged
}

// Seek moves the history cursor for key and returns the resulting view.
func (r *Registry) Seek(key SlotKey, direction int) (models.SlotView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.slots[key]
	if !ok {
		return models.SlotView{}, ErrSlotNotFound
	}
	p = Seek(p, direction)
	r.slots[key] = p
	return p.View(), nil
}

// Promote commits imageRef as the canonical confirmed content for key,
// anchors the next refinement on it, and stamps generationID. The previous
// preview is pushed into history when it differs.
func (r *Registry) Promote(key SlotKey, imageRef string, generationID int64) (models.SlotPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.slots[key]
	if !ok {
		return models.SlotPayload{}, ErrSlotNotFound
	}
	if p.PreviewURL != "" && p.PreviewURL != imageRef {
		p.History = appendBounded(p.History, p.PreviewURL)
	}
	p.PreviewURL = imageRef
	p.Confirmed = true
	p.Transient = false
	p.LatestDraftURL = ""
	p.SourceReference = imageRef
	p.GenerationID = generationID
	p.ActiveHistoryIndex = len(p.History)
	p.Status = models.StatusSuccess
	p.ErrorMessage = ""
	r.slots[key] = p
	return p, nil
}

// SetStatus overwrites the lifecycle status for key without touching any
// other field. Used by the orchestrator for transitions that carry no
// content, like entering AWAITING_CONFIRMATION.
func (r *Registry) SetStatus(key SlotKey, status models.SlotStatus) (models.SlotPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.slots[key]
	if !ok {
		return models.SlotPayload{}, ErrSlotNotFound
	}
	p.Status = status
	r.slots[key] = p
	return p, nil
}

// Revoke clears the stored confirmation without discarding history. Used
// when the resolved prompt changes after a confirmation.
func (r *Registry) Revoke(key SlotKey) (models.SlotPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.slots[key]
	if !ok {
		return models.SlotPayload{}, ErrSlotNotFound
	}
	p.Confirmed = false
	r.slots[key] = p
	return p, nil
}

// SetGenerationAllowed flips the per-slot gate. Closing the gate strips all
// generative state through the kill-switch rule; reopening leaves the slot
// empty of generative content until the next reconciliation.
func (r *Registry) SetGenerationAllowed(key SlotKey, allowed bool) (models.SlotPayload, error) {
	r.mu.Lock()
	p, ok := r.slots[key]
	r.mu.Unlock()
	if !ok {
		return models.SlotPayload{}, ErrSlotNotFound
	}

	return r.Apply(key, models.Candidate{
		Status:            p.Status,
		Layers:            p.Layers,
		ScaleFactor:       p.ScaleFactor,
		PreviewURL:        p.PreviewURL,
		GenerationID:      p.GenerationID,
		GenerationAllowed: allowed,
		SourceReference:   p.SourceReference,
	}), nil
}

// RemoveNode tears down every slot owned by nodeID and reports how many
// entries were removed.
func (r *Registry) RemoveNode(nodeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for k := range r.slots {
		if k.NodeID == nodeID {
			delete(r.slots, k)
			removed++
		}
	}
	return removed
}

// draftRefreshOnly reports whether the commit changed the preview while
// status and generation requirements stayed the same: the cosmetic refresh
// the presentation layer may want to distinguish from structural change.
func draftRefreshOnly(prev, next models.SlotPayload) bool {
	if next.PreviewURL == "" || prev.PreviewURL == next.PreviewURL {
		return false
	}
	if prev.Status != next.Status {
		return false
	}
	return requiresGeneration(prev) == requiresGeneration(next)
}

func requiresGeneration(p models.SlotPayload) bool {
	for _, l := range p.Layers {
		if l.Generative {
			return true
		}
	}
	return false
}
