// Package frame holds the natural and displayed dimensions of the image being cropped.
package frame

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDegenerateImage is returned when the natural size is unknown or zero.
	ErrDegenerateImage = errors.New("degenerate image: natural size must be positive")

	// ErrHiddenFrame is returned when the displayed size is zero, e.g. the image is not laid out.
	ErrHiddenFrame = errors.New("could not detect the displayed image size")
)

// Frame describes the image in natural pixels and in displayed pixels.
type Frame struct {
	NaturalW float64 `json:"naturalW"`
	NaturalH float64 `json:"naturalH"`
	DisplayW float64 `json:"displayW"`
	DisplayH float64 `json:"displayH"`
	// Scale is NaturalW / DisplayW.
	Scale float64 `json:"scale"`
}

// Init validates the sizes and derives the scale factor. A non-positive displayH is
// derived from the natural aspect ratio.
func Init(naturalW, naturalH, displayW, displayH float64) (Frame, error) {
	if !positive(naturalW) || !positive(naturalH) {
		return Frame{}, fmt.Errorf("%w (got %vx%v)", ErrDegenerateImage, naturalW, naturalH)
	}
	f := Frame{NaturalW: naturalW, NaturalH: naturalH}
	if err := f.apply(displayW, displayH); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Rescale returns the frame for a new displayed size. The crop box is not touched;
// callers re-verify it afterwards.
func (f Frame) Rescale(displayW, displayH float64) (Frame, error) {
	if !f.Valid() {
		return Frame{}, ErrDegenerateImage
	}
	next := f
	if err := next.apply(displayW, displayH); err != nil {
		return f, err
	}
	return next, nil
}

func (f *Frame) apply(displayW, displayH float64) error {
	if !positive(displayW) {
		return fmt.Errorf("%w (got %vx%v)", ErrHiddenFrame, displayW, displayH)
	}
	f.DisplayW = displayW
	f.Scale = f.NaturalW / displayW
	if positive(displayH) {
		f.DisplayH = displayH
	} else {
		f.DisplayH = f.NaturalH / f.Scale
	}
	return nil
}

// Valid reports whether the frame was initialized.
func (f Frame) Valid() bool {
	return positive(f.NaturalW) && positive(f.NaturalH) && positive(f.DisplayW) && positive(f.DisplayH)
}

// NaturalRatio returns NaturalW / NaturalH.
func (f Frame) NaturalRatio() float64 {
	return math.Abs(f.NaturalW / f.NaturalH)
}

// ToNatural converts a displayed length into natural pixels.
func (f Frame) ToNatural(v float64) float64 {
	return v * f.Scale
}

// ToDisplay converts a natural length into displayed pixels.
func (f Frame) ToDisplay(v float64) float64 {
	return v / f.Scale
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
