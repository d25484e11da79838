// Package reconcile implements the per-slot payload state machine: merging
// candidate payloads into stored state, bounding the preview history, and
// serving presentation views. Merge is a pure function; all shared state
// lives in the Registry and every write goes through it.
package reconcile

import (
	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

// Merge reconciles an incoming candidate against the currently stored
// payload, if any. The decision rules are ordered and the first matching
// rule wins:
//
//  1. gate closed: strip every generative field, keep geometry
//  2. stale generation id: keep current untouched
//  3. idle: clear the visual fields, report idle
//  4. synthesis in flight: overlay geometry on current, never blank the preview
//  5. geometry-only candidate against generative state: restore generative
//     fields from current verbatim
//  6. genuine content update: accumulate history, resolve confirmation
//
// Merge never mutates its inputs and holds no hidden state, so replaying the
// same candidate is idempotent and arrival order cannot corrupt a slot.
func Merge(in models.Candidate, cur *models.SlotPayload) models.SlotPayload {
	// Rule 1: kill switch. The gate closing strips all generative state
	// immediately, regardless of anything in flight.
	if !in.GenerationAllowed {
		return models.SlotPayload{
			Status:            in.Status,
			Layers:            withoutGenerative(in.Layers),
			ScaleFactor:       in.ScaleFactor,
			GenerationID:      preferID(in.GenerationID, cur),
			GenerationAllowed: false,
			ErrorMessage:      in.ErrorMessage,
		}
	}

	// Rule 2: stale guard. Out-of-order completion of an older generation
	// is a silent no-op, not an error.
	if cur != nil && in.GenerationID != 0 && cur.GenerationID != 0 && in.GenerationID < cur.GenerationID {
		return *cur
	}

	// Rule 3: idle reset clears the visual fields only.
	if in.Status == models.StatusIdle {
		return models.SlotPayload{
			Status:            models.StatusIdle,
			Layers:            in.Layers,
			ScaleFactor:       in.ScaleFactor,
			GenerationID:      preferID(in.GenerationID, cur),
			GenerationAllowed: true,
		}
	}

	// Rule 4: synthesis flush. Keep the stored preview and history visible
	// while a request is in flight; the flush never advances the clock.
	if in.Synthesizing {
		out := models.SlotPayload{
			Status:            in.Status,
			Layers:            in.Layers,
			ScaleFactor:       in.ScaleFactor,
			Synthesizing:      true,
			GenerationAllowed: true,
		}
		if cur != nil {
			out.PreviewURL = cur.PreviewURL
			out.History = cur.History
			out.ActiveHistoryIndex = cur.ActiveHistoryIndex
			out.LatestDraftURL = cur.LatestDraftURL
			out.Confirmed = cur.Confirmed
			out.Transient = cur.Transient
			out.SourceReference = cur.SourceReference
			out.GenerationID = cur.GenerationID
		}
		return out
	}

	// Rule 5: geometric preservation. A candidate without a generation id
	// reconciled against generative state is a pure geometry recomputation
	// (resize, move); every generative field survives verbatim.
	if cur != nil && in.GenerationID == 0 && cur.GenerationID != 0 {
		out := *cur
		out.Layers = in.Layers
		out.ScaleFactor = in.ScaleFactor
		out.GenerationAllowed = true
		if cur.Status != "" {
			out.Status = cur.Status
		} else {
			out.Status = in.Status
		}
		return out
	}

	// Rule 6: genuine content update.
	out := models.SlotPayload{
		Status:            in.Status,
		Layers:            in.Layers,
		ScaleFactor:       in.ScaleFactor,
		PreviewURL:        in.PreviewURL,
		Transient:         in.Transient,
		GenerationAllowed: true,
		ErrorMessage:      in.ErrorMessage,
	}

	var history []string
	if cur != nil {
		history = cur.History
		if in.PreviewURL != cur.PreviewURL && cur.PreviewURL != "" {
			history = appendBounded(history, cur.PreviewURL)
		}
	}
	out.History = history

	switch {
	case in.Confirmed != nil:
		out.Confirmed = *in.Confirmed
	case cur != nil:
		out.Confirmed = cur.Confirmed
	}
	if in.Transient {
		// A draft can never be confirmed.
		out.Confirmed = false
		out.LatestDraftURL = in.PreviewURL
	}

	if in.HistoryIndex != nil {
		out.ActiveHistoryIndex = clampIndex(*in.HistoryIndex, len(history))
	} else {
		out.ActiveHistoryIndex = len(history)
	}

	out.SourceReference = in.SourceReference
	if out.SourceReference == "" && cur != nil {
		out.SourceReference = cur.SourceReference
	}
	out.GenerationID = preferID(in.GenerationID, cur)

	return out
}

// Seek moves the history cursor by direction (±1), clamped to
// [0, len(history)]. Advancing past the tip without new content is a no-op.
func Seek(p models.SlotPayload, direction int) models.SlotPayload {
	if direction > 0 {
		direction = 1
	} else if direction < 0 {
		direction = -1
	}
	p.ActiveHistoryIndex = clampIndex(p.ActiveHistoryIndex+direction, len(p.History))
	return p
}

// withoutGenerative drops the synthetic generative fill layer, keeping the
// geometric layers intact.
func withoutGenerative(layers []models.TransformedLayer) []models.TransformedLayer {
	var out []models.TransformedLayer
	for _, l := range layers {
		if l.Generative {
			continue
		}
		out = append(out, l)
	}
	return out
}

// appendBounded appends ref unless it duplicates the newest entry, then
// truncates from the front to the history capacity.
func appendBounded(history []string, ref string) []string {
	if len(history) > 0 && history[len(history)-1] == ref {
		return history
	}
	out := make([]string, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, ref)
	if len(out) > models.HistoryCapacity {
		out = out[len(out)-models.HistoryCapacity:]
	}
	return out
}

func clampIndex(idx, historyLen int) int {
	if idx < 0 {
		return 0
	}
	if idx > historyLen {
		return historyLen
	}
	return idx
}

func preferID(incoming int64, cur *models.SlotPayload) int64 {
	if incoming != 0 {
		return incoming
	}
	if cur != nil {
		return cur.GenerationID
	}
	return 0
}
