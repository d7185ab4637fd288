package suggest

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	"github.com/menta2k/image-cropper/pkg/types"
)

// Smart suggests the crop with the most detail, skin tones and saturation
// using smartcrop.
type Smart struct {
	analyzer smartcrop.Analyzer
}

// NewSmart creates a smartcrop based suggester.
func NewSmart() *Smart {
	return &Smart{analyzer: smartcrop.NewAnalyzer(resizer{filter: imaging.Lanczos})}
}

// Suggest runs the analysis in the background so that ctx can cancel the wait.
func (s *Smart) Suggest(ctx context.Context, img image.Image, t types.Target) (types.Output, error) {
	b := img.Bounds()
	if b.Empty() {
		return types.Output{}, fmt.Errorf("empty image")
	}
	r := TargetRatio(t, b.Dx(), b.Dy())
	cropW, cropH := 1000, int(math.Round(1000/r))
	if cropH < 1 {
		cropH = 1
	}

	type result struct {
		rect image.Rectangle
		err  error
	}
	done := make(chan result, 1)
	go func() {
		rect, err := s.analyzer.FindBestCrop(img, cropW, cropH)
		done <- result{rect, err}
	}()

	select {
	case <-ctx.Done():
		return types.Output{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return types.Output{}, fmt.Errorf("finding best crop: %w", res.err)
		}
		return OutputOf(res.rect.Intersect(b).Sub(b.Min)), nil
	}
}

// resizer satisfies smartcrop's resizer with imaging.
type resizer struct {
	filter imaging.ResampleFilter
}

func (r resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}
