package main

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/types"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want *types.Target
	}{
		{"", nil},
		{"1200x675", &types.Target{W: types.Some(1200), H: types.Some(675)}},
		{"1200", &types.Target{W: types.Some(1200)}},
		{"x800", &types.Target{H: types.Some(800)}},
		{"Square", &types.Target{W: types.Some(1), H: types.Some(1)}},
	}
	for _, tt := range tests {
		got, err := parseTarget(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"x", "wide", "12xabc"} {
		_, err := parseTarget(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCrop(t *testing.T) {
	got, err := parseCrop("400x300+10+20@1.2")
	require.NoError(t, err)
	assert.Equal(t, &types.Output{Width: 400, Height: 300, X: 10, Y: 20, Scale: 1.2}, got)

	got, err = parseCrop("400x300")
	require.NoError(t, err)
	assert.Equal(t, &types.Output{Width: 400, Height: 300, Scale: 1}, got)

	got, err = parseCrop("")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"axb", "10x10+a", "10x10+1+b", "10x10@z"} {
		_, err := parseCrop(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseKeep(t *testing.T) {
	v, err := parseKeep("on")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)

	v, err = parseKeep("off")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.False(t, *v)

	v, err = parseKeep("default")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = parseKeep("maybe")
	assert.Error(t, err)
}

func TestProcessWritesCropAndReport(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	img := image.NewNRGBA(image.Rect(0, 0, 1200, 800))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	require.NoError(t, processing.NewProcessor().SaveImage(img, in, "", 0, false))

	cfg := config.Default()
	cfg.Output.OutputDir = filepath.Join(dir, "out")
	cfg.Cropper.DisplayWidth, cfg.Cropper.DisplayHeight = 600, 600

	o := options{target: "600x600", crop: "400x400+100+100", debug: true}
	logger := slog.New(slog.DiscardHandler)
	j, err := newJob(o, cfg, imagecropper.NewRegistry(nil, logger), logger)
	require.NoError(t, err)
	require.NoError(t, j.process(context.Background(), in))

	data, err := os.ReadFile(filepath.Join(cfg.Output.OutputDir, "photo_cropped.json"))
	require.NoError(t, err)
	var rep report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, types.Output{Width: 400, Height: 400, X: 100, Y: 100, Scale: 1}, rep.Output)
	assert.Equal(t, 600.0, rep.Frame.DisplayW)
	require.Len(t, rep.Messages, 1)
	assert.Equal(t, "areaTooSmall", rep.Messages[0].Key)

	cropped, err := processing.NewProcessor().LoadImage(filepath.Join(cfg.Output.OutputDir, "photo_cropped.jpg"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 400), cropped.Bounds())

	_, err = os.Stat(filepath.Join(cfg.Output.OutputDir, "photo_cropped_debug.png"))
	assert.NoError(t, err)
}
