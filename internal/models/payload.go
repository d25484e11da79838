package models

// Transform is the scale/offset applied to a layer when it is placed into a
// target slot.
type Transform struct {
	ScaleX  float64 `json:"scale_x"`
	ScaleY  float64 `json:"scale_y"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// TransformedLayer is a LayerNode after geometric placement into a target
// slot. Synthetic generative layers carry the prompt that produced them.
// Transformed layers are never mutated in place; every recomputation
// replaces the whole slice.
type TransformedLayer struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Bounds     BoundingBox        `json:"bounds"`
	Visible    bool               `json:"visible"`
	Opacity    float64            `json:"opacity"`
	Transform  Transform          `json:"transform"`
	Generative bool               `json:"generative,omitempty"`
	Prompt     string             `json:"prompt,omitempty"`
	Children   []TransformedLayer `json:"children,omitempty"`
}

// SlotStatus is the externally observable state of a slot.
type SlotStatus string

const (
	StatusIdle                 SlotStatus = "IDLE"
	StatusSuccess              SlotStatus = "SUCCESS"
	StatusAwaitingConfirmation SlotStatus = "AWAITING_CONFIRMATION"
	StatusError                SlotStatus = "ERROR"
)

// HistoryCapacity bounds the per-slot preview history. Appends beyond the
// cap drop the oldest entry.
const HistoryCapacity = 8

// SlotPayload is the reconciled per-(node, slot) record: geometry plus the
// generative lifecycle state. GenerationID is a logical clock; zero means
// no generation has ever been stamped for this slot. ActiveHistoryIndex is
// always within [0, len(History)], where len(History) means "the tip".
type SlotPayload struct {
	Status             SlotStatus         `json:"status"`
	Layers             []TransformedLayer `json:"layers"`
	ScaleFactor        float64            `json:"scale_factor"`
	PreviewURL         string             `json:"preview_url,omitempty"`
	Confirmed          bool               `json:"confirmed"`
	Transient          bool               `json:"transient"`
	Synthesizing       bool               `json:"synthesizing"`
	History            []string           `json:"history,omitempty"`
	ActiveHistoryIndex int                `json:"active_history_index"`
	LatestDraftURL     string             `json:"latest_draft_url,omitempty"`
	GenerationID       int64              `json:"generation_id,omitempty"`
	GenerationAllowed  bool               `json:"generation_allowed"`
	SourceReference    string             `json:"source_reference,omitempty"`
	ErrorMessage       string             `json:"error_message,omitempty"`
}

// Candidate is an incoming update for a slot before reconciliation. Optional
// pointer fields distinguish "not specified" from an explicit value: a nil
// Confirmed defers to the stored flag, a nil HistoryIndex means "point at
// the newest".
type Candidate struct {
	Status            SlotStatus
	Layers            []TransformedLayer
	ScaleFactor       float64
	PreviewURL        string
	Confirmed         *bool
	Transient         bool
	Synthesizing      bool
	HistoryIndex      *int
	GenerationID      int64
	GenerationAllowed bool
	SourceReference   string
	ErrorMessage      string
}

// SlotView is what the presentation layer sees for a slot: the stored
// payload plus the view-level preview and confirmation derived from the
// history cursor. Confirmation is a property of the exact image being
// displayed, so navigating away from the confirmed image shows an
// unconfirmed view without touching the stored flag.
type SlotView struct {
	SlotPayload
	DisplayedPreview string `json:"displayed_preview,omitempty"`
	ViewConfirmed    bool   `json:"view_confirmed"`
}

// View derives the presentation view from the stored payload.
func (p SlotPayload) View() SlotView {
	v := SlotView{SlotPayload: p}
	if p.ActiveHistoryIndex >= 0 && p.ActiveHistoryIndex < len(p.History) {
		v.DisplayedPreview = p.History[p.ActiveHistoryIndex]
		v.ViewConfirmed = false
		return v
	}
	v.DisplayedPreview = p.PreviewURL
	v.ViewConfirmed = p.Confirmed
	return v
}

// Snapshot returns the payload as persisted: generative content stripped so
// saved projects stay lightweight. Drafts must be regenerated or
// re-confirmed after reload.
func (p SlotPayload) Snapshot() SlotPayload {
	s := p
	s.PreviewURL = ""
	s.LatestDraftURL = ""
	s.History = nil
	s.ActiveHistoryIndex = 0
	s.Synthesizing = false
	return s
}
