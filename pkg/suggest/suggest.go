// Package suggest proposes an initial crop for an image and a target size.
// The proposal is in natural pixels and is passed to the widget as its
// initial crop, where it is verified like any other crop.
package suggest

import (
	"context"
	"image"
	"math"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Suggester proposes an initial crop.
type Suggester interface {
	Suggest(ctx context.Context, img image.Image, t types.Target) (types.Output, error)
}

// TargetRatio returns the ratio a crop of a w x h image should have for
// target t: the target ratio, or the image ratio when t has no usable side.
func TargetRatio(t types.Target, w, h int) float64 {
	f, err := frame.Init(float64(w), float64(h), float64(w), float64(h))
	if err != nil {
		return 1
	}
	p, _ := ratio.FromTarget(t, f, ratio.KeepOn)
	return p.Effective(f)
}

// FitAround returns the largest rectangle of ratio r inside a w x h image,
// shrunk by zoom (0 < zoom <= 1), centered on (cx, cy) as far as the image
// edges allow.
func FitAround(cx, cy, r float64, w, h int, zoom float64) image.Rectangle {
	if zoom <= 0 || zoom > 1 {
		zoom = 1
	}
	fw, fh := float64(w), float64(h)
	cw, ch := fw, fw/r
	if ch > fh {
		ch = fh
		cw = ch * r
	}
	cw, ch = cw*zoom, ch*zoom

	x0 := clamp(cx-cw/2, 0, fw-cw)
	y0 := clamp(cy-ch/2, 0, fh-ch)
	return image.Rect(
		int(math.Round(x0)), int(math.Round(y0)),
		int(math.Round(x0+cw)), int(math.Round(y0+ch)),
	)
}

// OutputOf converts a pixel rectangle into an unzoomed crop output.
func OutputOf(r image.Rectangle) types.Output {
	return types.Output{Width: r.Dx(), Height: r.Dy(), X: r.Min.X, Y: r.Min.Y, Scale: 1}
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
