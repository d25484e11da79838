package models

// LayoutRequest submits one remapping for a slot: the resolved source
// layers with their enclosing box, the target slot box, and an optional
// placement strategy. An empty source resets the slot to idle.
type LayoutRequest struct {
	SourceLayers []*LayerNode       `json:"source_layers"`
	SourceBox    BoundingBox        `json:"source_box"`
	TargetBox    BoundingBox        `json:"target_box"`
	Strategy     *PlacementStrategy `json:"strategy,omitempty"`
}

// SeekRequest moves the history cursor one step.
type SeekRequest struct {
	Direction int `json:"direction" binding:"required"`
}

// ConfirmRequest promotes an image to canonical slot content. An empty
// ImageRef confirms whatever the view currently displays.
type ConfirmRequest struct {
	ImageRef string `json:"image_ref,omitempty"`
}

// GenerationGateRequest opens or closes a generation gate.
type GenerationGateRequest struct {
	Allowed *bool `json:"allowed" binding:"required"`
}
