package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/types"
)

func loaded(t *testing.T) *cropper.Crop {
	t.Helper()
	c := cropper.New(cropper.Config{})
	require.NoError(t, c.Load(1200, 800, 600, 400))
	return c
}

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(`{"steps":[
		{"op":"drag","action":"se","from":{"x":600,"y":400},"to":{"x":300,"y":200},"steps":3},
		{"op":"target","target":[800,800]},
		{"op":"zoom","delta":-1,"count":2}
	]}`))
	require.NoError(t, err)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, Point{X: 300, Y: 200}, s.Steps[0].To)
	assert.Equal(t, types.TargetOf(800, 800), *s.Steps[1].Target)
	assert.Equal(t, 2, s.Steps[2].Count)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"syntax":         `{"steps":[`,
		"unknown field":  `{"steps":[{"op":"flush","speed":2}]}`,
		"unknown op":     `{"steps":[{"op":"spin"}]}`,
		"drag no action": `{"steps":[{"op":"drag"}]}`,
		"zero zoom":      `{"steps":[{"op":"zoom"}]}`,
		"no target":      `{"steps":[{"op":"target"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestRunDragAndMove(t *testing.T) {
	c := loaded(t)
	s := &Script{Steps: []Step{
		{Op: OpDrag, Action: "se", From: Point{600, 400}, To: Point{300, 200}, Steps: 3},
		{Op: OpDrag, Action: "box", From: Point{100, 100}, To: Point{200, 150}},
		{Op: OpClick},
	}}

	out, err := Run(context.Background(), c, s, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Output{Width: 600, Height: 400, X: 200, Y: 100, Scale: 1}, out)
	assert.False(t, c.Dragging())
}

func TestRunTargetAndZoom(t *testing.T) {
	c := loaded(t)
	target := types.TargetOf(800, 800)
	s := &Script{Steps: []Step{
		{Op: OpTarget, Target: &target},
		{Op: OpZoom, Delta: -1, Count: 2},
	}}

	out, err := Run(context.Background(), c, s, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, out.Scale, 1e-9)
	assert.True(t, c.Policy().Locked)
	assert.True(t, ratio.Within(c.Visual().W, c.Visual().H, 1))
}

func TestRunResize(t *testing.T) {
	c := loaded(t)
	s := &Script{Steps: []Step{{Op: OpResize, Width: 300, Height: 200}}}

	out, err := Run(context.Background(), c, s, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Output{Width: 1200, Height: 800, Scale: 1}, out)
	assert.Equal(t, types.Rect{W: 300, H: 200}, c.Visual())
}

func TestRunStopsAtFailingStep(t *testing.T) {
	c := loaded(t)
	s := &Script{Steps: []Step{
		{Op: OpDrag, Action: "sideways", From: Point{1, 1}, To: Point{2, 2}},
	}}
	_, err := Run(context.Background(), c, s, nil)
	assert.ErrorContains(t, err, "step 0 (drag)")
	assert.False(t, c.Dragging())
}

func TestRunHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, loaded(t), &Script{Steps: []Step{{Op: OpFlush}}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"steps":[{"op":"flush"}]}`), 0644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
