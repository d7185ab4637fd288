package solver

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/types"
)

func mustFrame(t *testing.T, nw, nh, dw, dh float64) frame.Frame {
	t.Helper()
	f, err := frame.Init(nw, nh, dw, dh)
	require.NoError(t, err)
	return f
}

func lockedPolicy(t *testing.T, f frame.Frame, w, h float64) ratio.Policy {
	t.Helper()
	p, err := ratio.FromTarget(types.TargetOf(w, h), f, ratio.KeepDefault)
	require.NoError(t, err)
	require.True(t, p.Locked)
	return p
}

// checkInvariants asserts the crop box invariants for r.
func checkInvariants(t *testing.T, r types.Rect, f frame.Frame, p ratio.Policy, minSize types.Size) {
	t.Helper()
	require.True(t, r.Finite(), "rect %+v must be finite", r)
	assert.GreaterOrEqual(t, r.X, 0.0, "x of %+v", r)
	assert.GreaterOrEqual(t, r.Y, 0.0, "y of %+v", r)
	assert.LessOrEqual(t, r.Right(), f.DisplayW+Epsilon, "right edge of %+v", r)
	assert.LessOrEqual(t, r.Bottom(), f.DisplayH+Epsilon, "bottom edge of %+v", r)
	assert.Greater(t, r.W, 0.0)
	assert.Greater(t, r.H, 0.0)

	if p.Locked {
		eff := p.Effective(f)
		assert.True(t, ratio.Within(r.W, r.H, eff), "ratio %.4f of %+v, want %.4f", r.W/r.H, r, eff)
		fw, fh := fit(f.DisplayW, f.DisplayH, eff)
		if fw >= minSize.W && fh >= minSize.H {
			assert.GreaterOrEqual(t, r.W, minSize.W, "width of %+v", r)
			assert.GreaterOrEqual(t, r.H, minSize.H, "height of %+v", r)
		}
		return
	}
	if f.DisplayW >= minSize.W {
		assert.GreaterOrEqual(t, r.W, minSize.W, "width of %+v", r)
	}
	if f.DisplayH >= minSize.H {
		assert.GreaterOrEqual(t, r.H, minSize.H, "height of %+v", r)
	}
}

func TestVerifyZeroBoxCenters(t *testing.T) {
	f := mustFrame(t, 600, 400, 300, 200)
	res := Verify(types.Rect{}, f, ratio.Policy{}, DefaultMin)

	assert.Equal(t, types.Rect{W: 300, H: 200, X: 0, Y: 0}, res.Rect)
	assert.True(t, res.Centered)
	assert.False(t, res.RatioForced)
}

func TestVerifyZeroBoxCentersForcedRatio(t *testing.T) {
	f := mustFrame(t, 600, 400, 300, 200)
	p := lockedPolicy(t, f, 100, 100)
	res := Verify(types.Rect{}, f, p, DefaultMin)

	assert.Equal(t, types.Rect{W: 200, H: 200, X: 50, Y: 0}, res.Rect)
	assert.True(t, res.RatioForced)
	assert.True(t, res.Centered)
}

func TestVerifyMinimumSize(t *testing.T) {
	f := mustFrame(t, 600, 400, 300, 200)
	res := Verify(types.Rect{W: 5, H: 5}, f, ratio.Policy{}, types.Size{W: 20, H: 20})

	assert.True(t, res.BelowMinimum)
	assert.GreaterOrEqual(t, res.Rect.W, 20.0)
	assert.GreaterOrEqual(t, res.Rect.H, 20.0)
	assert.Equal(t, types.Rect{W: 300, H: 200}, res.Rect)
}

func TestVerifyMinimumImpossible(t *testing.T) {
	f := mustFrame(t, 30, 10, 15, 5)
	res := Verify(types.Rect{W: 2, H: 2, X: 1, Y: 1}, f, ratio.Policy{}, types.Size{W: 20, H: 20})

	assert.Equal(t, types.Rect{W: 15, H: 5}, res.Rect)
	assert.True(t, res.BelowMinimum)
}

func TestVerifyRatioLock(t *testing.T) {
	f := mustFrame(t, 1200, 800, 600, 400)
	p := lockedPolicy(t, f, 300, 200)

	for _, c := range []types.Rect{
		{W: 100, H: 100, X: 10, Y: 10},
		{W: 600, H: 100},
		{W: 40, H: 390, X: 500, Y: 5},
	} {
		res := Verify(c, f, p, DefaultMin)
		assert.True(t, res.RatioForced, "%+v", c)
		ratioOut := res.Rect.W / res.Rect.H
		assert.GreaterOrEqual(t, ratioOut, 1.47)
		assert.LessOrEqual(t, ratioOut, 1.53)
		checkInvariants(t, res.Rect, f, p, DefaultMin)
	}
}

func TestVerifyRatioLockFallsBackToFullHeight(t *testing.T) {
	f := mustFrame(t, 1200, 800, 600, 400)
	p := lockedPolicy(t, f, 100, 100)

	res := Verify(types.Rect{W: 300, H: 100, X: 20, Y: 20}, f, p, DefaultMin)
	assert.Equal(t, types.Rect{W: 400, H: 400}, res.Rect)
}

func TestVerifyRatioWithinToleranceIsKept(t *testing.T) {
	f := mustFrame(t, 1200, 800, 600, 400)
	p := lockedPolicy(t, f, 300, 200)

	c := types.Rect{W: 151, H: 100, X: 40, Y: 30}
	res := Verify(c, f, p, DefaultMin)
	assert.False(t, res.RatioForced)
	assert.Equal(t, c, res.Rect)
}

func TestVerifyNonFinite(t *testing.T) {
	f := mustFrame(t, 600, 400, 300, 200)
	res := Verify(types.Rect{W: math.NaN(), H: math.Inf(1), X: math.Inf(-1), Y: math.NaN()}, f, ratio.Policy{}, DefaultMin)
	assert.Equal(t, types.Rect{W: 300, H: 200}, res.Rect)
}

func TestVerifyClamps(t *testing.T) {
	f := mustFrame(t, 600, 400, 300, 200)

	tests := []struct {
		name string
		in   types.Rect
		want types.Rect
	}{
		{"already valid", types.Rect{W: 100, H: 50, X: 10, Y: 20}, types.Rect{W: 100, H: 50, X: 10, Y: 20}},
		{"too wide", types.Rect{W: 400, H: 50, X: 10, Y: 20}, types.Rect{W: 300, H: 50, X: 0, Y: 20}},
		{"negative width", types.Rect{W: -5, H: 50, X: 10, Y: 20}, types.Rect{W: 300, H: 50, X: 0, Y: 20}},
		{"overflow right", types.Rect{W: 100, H: 50, X: 250, Y: 20}, types.Rect{W: 100, H: 50, X: 0, Y: 20}},
		{"overflow bottom", types.Rect{W: 100, H: 50, X: 10, Y: 160}, types.Rect{W: 100, H: 50, X: 10, Y: 0}},
		{"negative origin", types.Rect{W: 100, H: 50, X: -3, Y: -1}, types.Rect{W: 100, H: 50}},
		{"rounds origin", types.Rect{W: 100.4, H: 50.6, X: 10.4, Y: 20.6}, types.Rect{W: 100.4, H: 50.6, X: 10, Y: 21}},
		{"rounding stays inside", types.Rect{W: 100.5, H: 50, X: 199.5, Y: 0}, types.Rect{W: 100.5, H: 50, X: 199, Y: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verify(tt.in, f, ratio.Policy{}, DefaultMin)
			assert.Equal(t, tt.want, got.Rect)
		})
	}
}

func TestVerifyLockedClampKeepsMinimum(t *testing.T) {
	f := mustFrame(t, 200, 600, 100, 300)
	p := lockedPolicy(t, f, 15, 100)

	res := Verify(types.Rect{W: 10, H: 66.6667}, f, p, DefaultMin)
	checkInvariants(t, res.Rect, f, p, DefaultMin)
	assert.InDelta(t, 45.0, res.Rect.W, 1e-9)
	assert.InDelta(t, 300.0, res.Rect.H, 1e-9)
}

func TestVerifyIdempotentAndInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	frames := []frame.Frame{
		mustFrame(t, 1200, 800, 600, 400),
		mustFrame(t, 800, 1200, 400, 600),
		mustFrame(t, 4000, 3000, 333, 249.75),
		mustFrame(t, 30, 10, 15, 5),
	}
	values := func() float64 {
		switch rng.IntN(8) {
		case 0:
			return 0
		case 1:
			return -rng.Float64() * 100
		case 2:
			return math.NaN()
		default:
			return rng.Float64() * 800
		}
	}

	for _, f := range frames {
		policies := []ratio.Policy{{}, lockedPolicy(t, f, 16, 9), lockedPolicy(t, f, 1, 1), lockedPolicy(t, f, 2, 3)}
		for _, p := range policies {
			for i := 0; i < 300; i++ {
				c := types.Rect{W: values(), H: values(), X: values(), Y: values()}
				first := Verify(c, f, p, DefaultMin)
				checkInvariants(t, first.Rect, f, p, DefaultMin)

				second := Verify(first.Rect, f, p, DefaultMin)
				require.Equal(t, first.Rect, second.Rect, "verify must be idempotent for %+v", c)
				assert.False(t, second.RatioForced)
			}
		}
	}
}
