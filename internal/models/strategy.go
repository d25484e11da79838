package models

// PlacementMethod distinguishes pure bounding-box placement from placement
// that additionally requests AI-synthesized fill content.
type PlacementMethod string

const (
	PlacementGeometric  PlacementMethod = "GEOMETRIC"
	PlacementGenerative PlacementMethod = "GENERATIVE"
)

// Anchor controls vertical placement of the fitted source inside the target.
// Horizontal placement is always centered.
type Anchor string

const (
	AnchorTop    Anchor = "TOP"
	AnchorCenter Anchor = "CENTER"
	AnchorBottom Anchor = "BOTTOM"
)

// LayerOverride replaces the computed position of a single layer with an
// explicit offset from the target origin and an individual scale. The
// positional delta it introduces propagates to the layer's descendants
// unless they carry an override of their own.
type LayerOverride struct {
	LayerID string  `json:"layer_id"`
	XOffset float64 `json:"x_offset"`
	YOffset float64 `json:"y_offset"`
	Scale   float64 `json:"scale"`
}

// PlacementStrategy is the advisory output of the external layout analyzer.
// For GENERATIVE strategies Prompt is required and SourceReferenceImage may
// carry the grounding image for iterative refinement; GEOMETRIC strategies
// leave both empty.
type PlacementStrategy struct {
	Method               PlacementMethod `json:"method"`
	SuggestedScale       float64         `json:"suggested_scale,omitempty"`
	Anchor               Anchor          `json:"anchor,omitempty"`
	Prompt               string          `json:"prompt,omitempty"`
	SourceReferenceImage string          `json:"source_reference_image,omitempty"`
	ExplicitIntent       bool            `json:"explicit_intent,omitempty"`
	Overrides            []LayerOverride `json:"overrides,omitempty"`
}

// Generative reports whether the strategy requests AI fill content.
func (s *PlacementStrategy) Generative() bool {
	return s != nil && s.Method == PlacementGenerative && s.Prompt != ""
}
