package cropbox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/types"
)

func TestNewBox(t *testing.T) {
	b := New()
	assert.Equal(t, types.Rect{}, b.Snapshot())
	assert.Equal(t, 1.0, b.Scale())
}

func TestToOutputWithoutZoom(t *testing.T) {
	f, err := frame.Init(1200, 800, 600, 400)
	require.NoError(t, err)

	b := New()
	b.Commit(types.Rect{W: 200, H: 100, X: 10, Y: 5})

	assert.Equal(t, types.Output{Width: 400, Height: 200, X: 20, Y: 10, Scale: 1}, b.ToOutput(f))
}

func TestToOutputWithZoom(t *testing.T) {
	f, err := frame.Init(1000, 1000, 500, 500)
	require.NoError(t, err)

	// zoomed out to half: the image occupies the centered 250x250 square
	out := ToOutput(f, types.Rect{W: 250, H: 250, X: 125, Y: 125}, 0.5)
	assert.Equal(t, types.Output{Width: 1000, Height: 1000, X: 0, Y: 0, Scale: 0.5}, out)

	out = ToOutput(f, types.Rect{W: 100, H: 100, X: 200, Y: 200}, 1.2)
	// ws = 500 - 600 = -100
	assert.Equal(t, types.Output{Width: 0, Height: 0, X: 500, Y: 500, Scale: 1.2}, out)
}

func TestToOutputRoundsHalvesUp(t *testing.T) {
	f, err := frame.Init(10, 10, 10, 10)
	require.NoError(t, err)

	// zoomed out to 0.5 the margin is 5px, so the origin lands on -2.5
	out := ToOutput(f, types.Rect{W: 4, H: 4, X: 0, Y: 3}, 0.5)
	assert.Equal(t, types.Output{Width: 9, Height: 9, X: -2, Y: 1, Scale: 0.5}, out)

	assert.Equal(t, -2.0, Round(-2.5))
	assert.Equal(t, 3.0, Round(2.5))
	assert.Equal(t, -3.0, Round(-2.6))
}

func TestFromOutputRoundTrip(t *testing.T) {
	f, err := frame.Init(1200, 800, 600, 400)
	require.NoError(t, err)

	for _, o := range []types.Output{
		{Width: 400, Height: 200, X: 20, Y: 10, Scale: 1},
		{Width: 900, Height: 600, X: 100, Y: 40, Scale: 0.75},
		{Width: 300, Height: 300, X: 0, Y: 0, Scale: 1.5},
	} {
		r := FromOutput(f, o)
		assert.Equal(t, o, ToOutput(f, r, o.Scale), "round trip of %+v", o)
	}
}

func TestFromOutputDefaultsScale(t *testing.T) {
	f, err := frame.Init(1200, 800, 600, 400)
	require.NoError(t, err)

	r := FromOutput(f, types.Output{Width: 400, Height: 200, X: 20, Y: 10})
	assert.Equal(t, types.Rect{W: 200, H: 100, X: 10, Y: 5}, r)
}

func TestZoom(t *testing.T) {
	b := New()
	assert.InDelta(t, 1.05, b.Zoom(-1, 0.05), 1e-9)
	assert.InDelta(t, 1.0, b.Zoom(3, 0), 1e-9)

	for i := 0; i < 40; i++ {
		b.Zoom(1, DefaultZoomStep)
	}
	assert.Equal(t, MinScale, b.Scale())
}

func TestClampScale(t *testing.T) {
	assert.Equal(t, MinScale, ClampScale(0))
	assert.Equal(t, MinScale, ClampScale(-3))
	assert.Equal(t, 2.5, ClampScale(2.5))
	assert.Equal(t, 1.0, ClampScale(math.NaN()))
}
