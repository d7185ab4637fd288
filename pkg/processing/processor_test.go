package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/types"
)

// quadrants returns a w x h image with a distinct color per quadrant.
func quadrants(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if x >= w/2 {
				c.R = 255
			}
			if y >= h/2 {
				c.B = 255
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestApplyOutputInside(t *testing.T) {
	p := NewProcessor()
	img := quadrants(100, 80)

	out, err := p.ApplyOutput(img, types.Output{Width: 40, Height: 30, X: 55, Y: 45, Scale: 1}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), out.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, B: 255, A: 255}, out.At(0, 0))
}

func TestApplyOutputZoomedOutPadsBackground(t *testing.T) {
	p := NewProcessor()
	p.Background = color.NRGBA{G: 255, A: 255}
	img := quadrants(100, 80)

	out, err := p.ApplyOutput(img, types.Output{Width: 120, Height: 100, X: -10, Y: -10, Scale: 0.8}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 100), out.Bounds())
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, out.At(0, 0))
	assert.Equal(t, color.NRGBA{A: 255}, out.At(10, 10))
	assert.Equal(t, color.NRGBA{R: 255, B: 255, A: 255}, out.At(109, 89))
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, out.At(115, 95))
}

func TestApplyOutputResizes(t *testing.T) {
	p := NewProcessor()
	out, err := p.ApplyOutput(quadrants(100, 80), types.Output{Width: 100, Height: 50}, 40, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())

	_, err = p.ApplyOutput(quadrants(10, 10), types.Output{}, 0, 0)
	assert.Error(t, err)
}

func TestEncodeAndDecode(t *testing.T) {
	img := quadrants(16, 16)
	for _, format := range []string{"png", "jpg", "webp"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, img, format, 90, true))
			got, err := Decode(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, 16, got.Bounds().Dx())
		})
	}
	assert.Error(t, Encode(&bytes.Buffer{}, img, "gif", 90, false))

	_, err := Decode([]byte("garbage"))
	assert.Error(t, err)
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := quadrants(20, 10)

	for _, name := range []string{"a.png", "b.jpg", "c.webp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, p.SaveImage(img, path, "", 90, true), name)

		loaded, err := p.LoadImageSmart(context.Background(), path)
		require.NoError(t, err, name)
		assert.Equal(t, image.Rect(0, 0, 20, 10), loaded.Bounds(), name)
	}

	_, err := p.LoadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestLoadImageFromURL(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, png.Encode(&body, quadrants(12, 6)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(body.Bytes())
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor()
	p.SetHTTPClient(srv.Client())
	ctx := context.Background()

	img, err := p.LoadImageSmart(ctx, srv.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())

	_, err = p.LoadImageSmart(ctx, srv.URL+"/page")
	assert.ErrorContains(t, err, "does not point to an image")

	_, err = p.LoadImageSmart(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")

	_, err = p.LoadImageFromURL(ctx, "ftp://example.com/a.png")
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	encoded, err := p.PrepareImageForModel(quadrants(200, 100), "png", 50, 80)
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 25), img.Bounds())
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor()
	f, err := frame.Init(200, 160, 100, 80)
	require.NoError(t, err)

	overlay := p.CreateDebugOverlay(quadrants(200, 160), f, types.Rect{W: 40, H: 30, X: 10, Y: 10}, 1)
	assert.Equal(t, image.Rect(0, 0, 100, 80), overlay.Bounds())
	assert.Equal(t, color.NRGBA{255, 204, 0, 255}, overlay.At(10, 10))
	assert.Equal(t, color.NRGBA{255, 204, 0, 255}, overlay.At(49, 39))
}
