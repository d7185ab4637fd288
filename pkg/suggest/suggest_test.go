package suggest

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/client"
	"github.com/menta2k/image-cropper/pkg/detection"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/types"
)

func checker(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{40, 40, 40, 255}
			if x > w/2 && (x/4+y/4)%2 == 0 {
				c = color.RGBA{230, 180, 150, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestTargetRatio(t *testing.T) {
	assert.InDelta(t, 2.0, TargetRatio(types.TargetOf(400, 200), 300, 300), 1e-9)
	assert.InDelta(t, 1.5, TargetRatio(types.Target{}, 300, 200), 1e-9)
	assert.InDelta(t, 1.5, TargetRatio(types.Target{W: types.Some(600)}, 300, 200), 1e-9)
	assert.Equal(t, 1.0, TargetRatio(types.Target{}, 0, 0))
}

func TestFitAround(t *testing.T) {
	tests := []struct {
		name   string
		cx, cy float64
		r      float64
		zoom   float64
		want   image.Rectangle
	}{
		{"centered square", 100, 50, 1, 1, image.Rect(50, 0, 150, 100)},
		{"pushed to right edge", 190, 50, 1, 1, image.Rect(100, 0, 200, 100)},
		{"pushed to left edge", 5, 50, 1, 1, image.Rect(0, 0, 100, 100)},
		{"wide ratio uses full width", 100, 50, 4, 1, image.Rect(0, 25, 200, 75)},
		{"zoomed", 150, 50, 1, 0.5, image.Rect(125, 25, 175, 75)},
		{"invalid zoom", 100, 50, 1, 3, image.Rect(50, 0, 150, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FitAround(tt.cx, tt.cy, tt.r, 200, 100, tt.zoom))
		})
	}
}

func TestSmartSuggest(t *testing.T) {
	img := checker(200, 100)
	out, err := NewSmart().Suggest(context.Background(), img, types.TargetOf(1, 1))
	require.NoError(t, err)

	assert.Equal(t, 1.0, out.Scale)
	assert.GreaterOrEqual(t, out.X, 0)
	assert.GreaterOrEqual(t, out.Y, 0)
	assert.LessOrEqual(t, out.X+out.Width, 200)
	assert.LessOrEqual(t, out.Y+out.Height, 100)
	assert.InDelta(t, out.Width, out.Height, 2)
}

func TestSmartSuggestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSmart().Suggest(ctx, checker(200, 100), types.TargetOf(1, 1))
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestVisionSuggest(t *testing.T) {
	answer := `{"primary":{"label":"person","confidence":0.9,"box":{"x":0.8,"y":0.2,"w":0.2,"h":0.6}}}`
	c := client.Func(func(ctx context.Context, model, prompt, img string) (string, error) {
		return answer, nil
	})
	v := NewVision(detection.NewDetector(c, "llava"), processing.NewProcessor())

	out, err := v.Suggest(context.Background(), checker(200, 100), types.TargetOf(1, 1))
	require.NoError(t, err)
	assert.Equal(t, types.Output{Width: 100, Height: 100, X: 100, Y: 0, Scale: 1}, out)

	answer = "no idea"
	out, err = v.Suggest(context.Background(), checker(200, 100), types.TargetOf(1, 1))
	require.NoError(t, err)
	assert.Equal(t, types.Output{Width: 100, Height: 100, X: 50, Y: 0, Scale: 1}, out)
}
