package suggest

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/menta2k/image-cropper/pkg/detection"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Vision centers the crop on the subject a vision model reports.
type Vision struct {
	detector  *detection.Detector
	processor *processing.Processor
	logger    *slog.Logger
	// MaxDim bounds the longer side of the image sent to the model.
	MaxDim int
	// Zoom shrinks the crop below the largest that fits (0 < Zoom <= 1).
	Zoom float64
}

// NewVision creates a vision based suggester.
func NewVision(d *detection.Detector, p *processing.Processor) *Vision {
	return &Vision{detector: d, processor: p, logger: slog.Default(), MaxDim: 1024, Zoom: 1}
}

// SetLogger replaces the logger.
func (v *Vision) SetLogger(logger *slog.Logger) {
	v.logger = logger
}

func (v *Vision) Suggest(ctx context.Context, img image.Image, t types.Target) (types.Output, error) {
	b := img.Bounds()
	if b.Empty() {
		return types.Output{}, fmt.Errorf("empty image")
	}
	w, h := b.Dx(), b.Dy()

	encoded, err := v.processor.PrepareImageForModel(img, "jpg", v.MaxDim, 85)
	if err != nil {
		return types.Output{}, fmt.Errorf("encoding image for model: %w", err)
	}
	res, err := v.detector.DetectSubject(ctx, encoded)
	if err != nil {
		return types.Output{}, err
	}

	cx, cy := float64(w)/2, float64(h)/2
	if detection.Found(res) {
		cx, cy = res.Primary.Cx*float64(w), res.Primary.Cy*float64(h)
		v.logger.Debug("subject located", "label", res.Primary.Label, "confidence", res.Primary.Confidence, "cx", cx, "cy", cy)
	} else {
		v.logger.Debug("no subject located, centering crop")
	}

	rect := FitAround(cx, cy, TargetRatio(t, w, h), w, h, v.Zoom)
	return OutputOf(rect), nil
}
