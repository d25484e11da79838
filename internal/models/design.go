package models

// BoundingBox is an axis-aligned rectangle in document coordinates.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// LayerNode is one node in a parsed design-document tree. The tree arrives
// fully parsed from the document collaborator and is treated as read-only:
// nothing in this service mutates a LayerNode after registration.
type LayerNode struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Bounds   BoundingBox  `json:"bounds"`
	Visible  bool         `json:"visible"`
	Opacity  float64      `json:"opacity"`
	Children []*LayerNode `json:"children,omitempty"`
}

// Container is a named, bounded region on either side of a remapping: the
// source group resolved from a design tree, or the target slot from a
// template definition. OriginalName carries the pre-normalization name when
// the resolver had to clean or case-fold the request.
type Container struct {
	Name         string      `json:"name"`
	Bounds       BoundingBox `json:"bounds"`
	OriginalName string      `json:"original_name,omitempty"`
}
