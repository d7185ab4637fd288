package solver

import (
	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Partial is a rectangle whose components may be absent. An absent component
// is not constrained by the current edge and keeps its last rendered value.
type Partial struct {
	X types.Maybe `json:"x"`
	Y types.Maybe `json:"y"`
	W types.Maybe `json:"w"`
	H types.Maybe `json:"h"`
}

// PartialOf wraps a complete rectangle.
func PartialOf(r types.Rect) Partial {
	return Partial{X: types.Some(r.X), Y: types.Some(r.Y), W: types.Some(r.W), H: types.Some(r.H)}
}

// Fill replaces absent components with the ones from last.
func (p Partial) Fill(last types.Rect) types.Rect {
	return types.Rect{
		X: p.X.Or(last.X),
		Y: p.Y.Or(last.Y),
		W: p.W.Or(last.W),
		H: p.H.Or(last.H),
	}
}

// Limited is the outcome of EdgeLimit.
type Limited struct {
	Partial
	// AreaTooSmall is set when the proposed size maps to fewer natural pixels than the target.
	AreaTooSmall bool `json:"areaTooSmall"`
}

// EdgeLimit keeps a rectangle that is being resized inside the frame and above
// the minimum size. It runs on every pointer move and does not re-derive the
// ratio; later edges win over earlier ones. Under a ratio lock a correction on
// one axis clears the other axis so the caller keeps its previous value.
func EdgeLimit(in Partial, f frame.Frame, p ratio.Policy, start types.Rect, minSize types.Size) Limited {
	x, y, w, h := in.X, in.Y, in.W, in.H
	var out Limited

	if (w.Valid && f.ToNatural(w.Value) < p.TargetW) || (h.Valid && f.ToNatural(h.Value) < p.TargetH) {
		out.AreaTooSmall = true
	}

	// left
	if x.Valid && x.Value < 0 {
		w, x = types.None(), types.Some(0)
		if p.Locked {
			h, y = types.None(), types.None()
		}
	}

	// top
	if y.Valid && y.Value < 0 {
		y, h = types.Some(0), types.None()
		if p.Locked {
			w, x = types.None(), types.None()
		}
	}

	// right
	if x.Valid && w.Valid && x.Value+w.Value > f.DisplayW {
		w = types.Some(f.DisplayW - start.X)
		if p.Locked {
			h, y = types.None(), types.None()
		}
	}

	// bottom
	if y.Valid && h.Valid && y.Value+h.Value > f.DisplayH {
		h = types.Some(f.DisplayH - start.Y)
		if p.Locked {
			w, x = types.None(), types.None()
		}
	}

	if w.Valid && w.Value < minSize.W {
		w, x = types.Some(minSize.W), types.None()
		if p.Locked {
			w, h, y = types.None(), types.None(), types.None()
		}
	}

	if h.Valid && h.Value < minSize.H {
		h, y = types.Some(minSize.H), types.None()
		if p.Locked {
			h, w, x = types.None(), types.None(), types.None()
		}
	}

	out.Partial = Partial{X: x, Y: y, W: w, H: h}
	return out
}

// LimitMove clamps the origin of a box of the start size so that it stays
// inside the frame while being moved.
func LimitMove(x, y float64, f frame.Frame, start types.Rect) (float64, float64) {
	return clamp(x, 0, f.DisplayW-start.W), clamp(y, 0, f.DisplayH-start.H)
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
