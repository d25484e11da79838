// Package layout maps source design layers into target slot geometry. The
// transform is a pure function of its inputs: no side effects, no clock, no
// randomness, so recomputation on every upstream change is safe.
package layout

import (
	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
)

// MaxBoundaryViolationPercent is the fraction of the target height a layer
// may bleed past the slot vertically. Anything further is clamped.
const MaxBoundaryViolationPercent = 0.1

// GenerativeFillLayerID names the synthetic leading layer that stands in for
// AI-generated fill content.
const GenerativeFillLayerID = "generative-fill"

// Transform places sourceLayers from sourceBox into targetBox. The baseline
// is a uniform aspect-preserving fit; a strategy may override scale and
// anchor, pin individual layers, and request a synthetic generative layer.
// Returns the transformed tree and the effective scale factor.
func Transform(
	sourceLayers []*models.LayerNode,
	sourceBox, targetBox models.BoundingBox,
	strategy *models.PlacementStrategy,
) ([]models.TransformedLayer, float64) {
	scale := baselineScale(sourceBox, targetBox)
	anchor := models.AnchorCenter
	if strategy != nil {
		if strategy.SuggestedScale > 0 {
			scale = strategy.SuggestedScale
		}
		if strategy.Anchor != "" {
			anchor = strategy.Anchor
		}
	}

	// Origin of the scaled source content inside the target. Horizontal
	// placement is always centered; the anchor decides vertical placement.
	scaledW := sourceBox.W * scale
	scaledH := sourceBox.H * scale
	originX := targetBox.X + (targetBox.W-scaledW)/2
	var originY float64
	switch anchor {
	case models.AnchorTop:
		originY = targetBox.Y
	case models.AnchorBottom:
		originY = targetBox.Y + targetBox.H - scaledH
	default:
		originY = targetBox.Y + (targetBox.H-scaledH)/2
	}

	overrides := map[string]models.LayerOverride{}
	if strategy != nil {
		for _, o := range strategy.Overrides {
			overrides[o.LayerID] = o
		}
	}

	p := placer{
		sourceBox: sourceBox,
		targetBox: targetBox,
		scale:     scale,
		originX:   originX,
		originY:   originY,
		overrides: overrides,
	}

	var out []models.TransformedLayer
	if strategy.Generative() {
		out = append(out, syntheticFillLayer(targetBox, strategy.Prompt))
	}
	for _, src := range sourceLayers {
		if src == nil {
			continue
		}
		out = append(out, p.place(src, 0, 0))
	}
	return out, scale
}

func baselineScale(sourceBox, targetBox models.BoundingBox) float64 {
	if sourceBox.W <= 0 || sourceBox.H <= 0 {
		return 1
	}
	sx := targetBox.W / sourceBox.W
	sy := targetBox.H / sourceBox.H
	if sx < sy {
		return sx
	}
	return sy
}

type placer struct {
	sourceBox models.BoundingBox
	targetBox models.BoundingBox
	scale     float64
	originX   float64
	originY   float64
	overrides map[string]models.LayerOverride
}

// place transforms one source node. shiftX/shiftY is the absolute delta
// inherited from an overridden ancestor; children are placed only after the
// parent's own delta is known so the tree shape is preserved.
func (p placer) place(src *models.LayerNode, shiftX, shiftY float64) models.TransformedLayer {
	scale := p.scale
	x := p.originX + (src.Bounds.X-p.sourceBox.X)*p.scale + shiftX
	y := p.originY + (src.Bounds.Y-p.sourceBox.Y)*p.scale + shiftY

	childShiftX, childShiftY := shiftX, shiftY
	if o, ok := p.overrides[src.ID]; ok {
		ox := p.targetBox.X + o.XOffset
		oy := p.targetBox.Y + o.YOffset
		childShiftX += ox - x
		childShiftY += oy - y
		x, y = ox, oy
		if o.Scale > 0 {
			scale = p.scale * o.Scale
		}
	}

	w := src.Bounds.W * scale
	h := src.Bounds.H * scale
	y = p.clampVertical(y, h)

	out := models.TransformedLayer{
		ID:      src.ID,
		Name:    src.Name,
		Visible: src.Visible,
		Opacity: src.Opacity,
		Bounds:  models.BoundingBox{X: x, Y: y, W: w, H: h},
		Transform: models.Transform{
			ScaleX:  scale,
			ScaleY:  scale,
			OffsetX: x - src.Bounds.X*scale,
			OffsetY: y - src.Bounds.Y*scale,
		},
	}
	for _, child := range src.Children {
		if child == nil {
			continue
		}
		out.Children = append(out.Children, p.place(child, childShiftX, childShiftY))
	}
	return out
}

// clampVertical keeps a layer's top edge within the permitted bleed band
// above the slot and its bottom edge within the band below it.
func (p placer) clampVertical(y, h float64) float64 {
	bleed := p.targetBox.H * MaxBoundaryViolationPercent
	minY := p.targetBox.Y - bleed
	maxY := p.targetBox.Y + p.targetBox.H + bleed - h
	if maxY < minY {
		maxY = minY
	}
	if y < minY {
		return minY
	}
	if y > maxY {
		return maxY
	}
	return y
}

func syntheticFillLayer(targetBox models.BoundingBox, prompt string) models.TransformedLayer {
	return models.TransformedLayer{
		ID:         GenerativeFillLayerID,
		Name:       "Generative Fill",
		Visible:    true,
		Opacity:    1,
		Bounds:     targetBox,
		Generative: true,
		Prompt:     prompt,
		Transform: models.Transform{
			ScaleX:  1,
			ScaleY:  1,
			OffsetX: targetBox.X,
			OffsetY: targetBox.Y,
		},
	}
}
