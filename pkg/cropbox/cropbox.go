// Package cropbox holds the committed crop rectangle and zoom scale, and projects
// them into natural image pixels.
package cropbox

import (
	"math"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/types"
)

const (
	// MinScale is the smallest zoom scale.
	MinScale = 0.1
	// DefaultZoomStep is the scale change per wheel notch.
	DefaultZoomStep = 0.05
)

// Box is the authoritative crop rectangle in displayed pixels plus the zoom scale.
// It has a single owner; it is not safe for concurrent mutation.
type Box struct {
	rect  types.Rect
	scale float64
}

// New returns an empty box at scale 1.
func New() *Box {
	return &Box{scale: 1}
}

// Snapshot returns a copy of the committed rectangle.
func (b *Box) Snapshot() types.Rect {
	return b.rect
}

// Commit replaces the rectangle. Callers pass verified rectangles only.
func (b *Box) Commit(r types.Rect) {
	b.rect = r
}

// Scale returns the zoom scale.
func (b *Box) Scale() float64 {
	return b.scale
}

// SetScale sets the zoom scale clamped to MinScale and returns the applied value.
func (b *Box) SetScale(s float64) float64 {
	b.scale = ClampScale(s)
	return b.scale
}

// Zoom applies one wheel notch. A negative delta zooms in.
func (b *Box) Zoom(delta, step float64) float64 {
	if step <= 0 {
		step = DefaultZoomStep
	}
	if delta < 0 {
		return b.SetScale(b.scale + step)
	}
	return b.SetScale(b.scale - step)
}

// ClampScale clamps s to [MinScale, +Inf). Non-finite values map to 1.
func ClampScale(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 1
	}
	if s < MinScale {
		return MinScale
	}
	return s
}

// ToOutput projects the box into natural pixels.
func (b *Box) ToOutput(f frame.Frame) types.Output {
	return ToOutput(f, b.rect, b.scale)
}

// ToOutput converts a displayed rectangle at the given zoom scale into natural pixels.
// The zoom is applied around the image center while r is relative to the un-zoomed
// displayed image, so the zoom margin is added to the size and half of it removed
// from the origin.
func ToOutput(f frame.Frame, r types.Rect, scale float64) types.Output {
	ws := f.DisplayW - f.DisplayW*scale
	hs := f.DisplayH - f.DisplayH*scale
	s := f.Scale

	return types.Output{
		Width:  int(Round((r.W + ws) * s)),
		Height: int(Round((r.H + hs) * s)),
		X:      int(Round((r.X - ws/2) * s)),
		Y:      int(Round((r.Y - hs/2) * s)),
		Scale:  scale,
	}
}

// Round rounds half-way values up, toward positive infinity, so -2.5 becomes -2.
// Origins of zoomed-out crops are negative and must round like positive ones.
func Round(v float64) float64 {
	return math.Floor(v + 0.5)
}

// FromOutput is the inverse of ToOutput: it converts a natural-pixel crop into a
// displayed rectangle. The result is not verified.
func FromOutput(f frame.Frame, o types.Output) types.Rect {
	scale := ClampScale(o.Scale)
	if o.Scale == 0 {
		scale = 1
	}
	ws := f.DisplayW - f.DisplayW*scale
	hs := f.DisplayH - f.DisplayH*scale

	return types.Rect{
		W: f.ToDisplay(float64(o.Width)) - ws,
		H: f.ToDisplay(float64(o.Height)) - hs,
		X: f.ToDisplay(float64(o.X)) + ws/2,
		Y: f.ToDisplay(float64(o.Y)) + hs/2,
	}
}
