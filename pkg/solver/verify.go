// Package solver corrects candidate crop rectangles so that they satisfy the
// frame boundaries, the minimum size and the ratio lock.
//
// All functions are pure and safe for concurrent use.
package solver

import (
	"math"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Epsilon is the slack allowed when comparing against the frame edges.
const Epsilon = 0.02

// DefaultMin is the default minimum crop size in displayed pixels.
var DefaultMin = types.Size{W: 20, H: 20}

// Result is a verified rectangle plus what had to be done to obtain it.
type Result struct {
	Rect types.Rect `json:"rect"`
	// RatioForced is set when the candidate violated the ratio lock and was replaced.
	RatioForced bool `json:"ratioForced"`
	// Centered is set when an empty candidate was expanded to the whole frame.
	Centered bool `json:"centered"`
	// BelowMinimum is set when the candidate (or the forced replacement) was smaller
	// than the minimum size. It is advisory only.
	BelowMinimum bool `json:"belowMinimum"`
}

// Verify returns the rectangle nearest to c that satisfies the crop invariants.
// Verify(Verify(c).Rect) yields the same rectangle.
func Verify(c types.Rect, f frame.Frame, p ratio.Policy, minSize types.Size) Result {
	dw, dh := f.DisplayW, f.DisplayH
	w, h, x, y := c.W, c.H, c.X, c.Y
	var res Result

	if !finite(w) {
		w = dw
	}
	if !finite(h) {
		h = dh
	}
	if !finite(x) {
		x = 0
	}
	if !finite(y) {
		y = 0
	}

	if w == 0 && h == 0 {
		w, h = dw, dh
		res.Centered = true
	}

	r := p.Effective(f)
	if p.Locked && !ratio.Within(w, h, r) {
		w, h = fit(dw, dh, r)
		x, y = 0, 0
		res.RatioForced = true
		res.BelowMinimum = w < minSize.W || h < minSize.H
	}

	if res.Centered {
		x = (dw - w) / 2
		y = (dh - h) / 2
		res.BelowMinimum = res.BelowMinimum || w < minSize.W || h < minSize.H
		res.Rect = place(w, h, x, y, dw, dh)
		return res
	}

	if res.RatioForced {
		res.Rect = place(w, h, x, y, dw, dh)
		return res
	}

	if w < minSize.W || h < minSize.H {
		res.BelowMinimum = true
	}

	if w <= 0 || w < minSize.W || w > dw+Epsilon {
		w = dw
		if p.Locked {
			w = math.Min(dw, dh)
			h = w / r
		}
	}
	if h <= 0 || h < minSize.H || h > dh+Epsilon {
		h = dh
		if p.Locked {
			h = math.Min(dw, dh)
			w = h * r
		}
	}
	if p.Locked && (w > dw+Epsilon || h > dh+Epsilon || w < minSize.W || h < minSize.H) {
		w, h = fit(dw, dh, r)
	}

	if x < 0 || x+w > dw+Epsilon {
		x = 0
	}
	if y < 0 || y+h > dh+Epsilon {
		y = 0
	}

	res.Rect = place(w, h, x, y, dw, dh)
	return res
}

// fit returns the largest size with the given ratio that fits the frame,
// preferring the full width.
func fit(dw, dh, r float64) (float64, float64) {
	w := dw
	h := w / r
	if h > dh {
		h = dh
		w = h * r
	}
	return w, h
}

// place rounds the origin to whole pixels without letting the rounding push
// the rectangle past the frame edge.
func place(w, h, x, y, dw, dh float64) types.Rect {
	return types.Rect{W: w, H: h, X: snap(x, w, dw), Y: snap(y, h, dh)}
}

func snap(pos, size, limit float64) float64 {
	pos = math.Round(pos)
	if pos+size > limit+Epsilon {
		pos = math.Floor(limit - size + Epsilon)
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
