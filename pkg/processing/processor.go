// Package processing renders crop results: it loads source images, applies an
// Output to the natural pixels, draws debug overlays and encodes files.
package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Processor handles image processing operations
type Processor struct {
	client    *http.Client
	userAgent string
	// Background fills the area outside the image when a zoomed-out crop is rendered.
	Background color.Color
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		client:     &http.Client{Timeout: 30 * time.Second},
		userAgent:  "image-cropper/1.0",
		Background: color.White,
	}
}

// SetHTTPClient replaces the client used for URL sources.
func (p *Processor) SetHTTPClient(c *http.Client) {
	p.client = c
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return Decode(data)
}

// LoadImage loads an image from a file path
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or an http(s) URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// Decode decodes image bytes with the registered decoders, falling back to
// the libwebp decoder.
func Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ApplyOutput cuts the region described by out from img. Parts of the region
// outside the image, which occur when the crop was zoomed out, are filled with
// the background color. When width or height is positive the result is
// resized to it; a zero side follows the aspect ratio.
func (p *Processor) ApplyOutput(img image.Image, out types.Output, width, height int) (image.Image, error) {
	if out.Width <= 0 || out.Height <= 0 {
		return nil, fmt.Errorf("empty crop %dx%d", out.Width, out.Height)
	}
	b := img.Bounds()
	region := image.Rect(out.X, out.Y, out.X+out.Width, out.Y+out.Height).Add(b.Min)

	var result *image.NRGBA
	if region.In(b) {
		result = imaging.Crop(img, region)
	} else {
		inside := region.Intersect(b)
		result = imaging.New(out.Width, out.Height, p.Background)
		if !inside.Empty() {
			result = imaging.Paste(result, imaging.Crop(img, inside), inside.Min.Sub(region.Min))
		}
	}

	if width > 0 || height > 0 {
		result = imaging.Resize(result, width, height, imaging.Lanczos)
	}
	return result, nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			if b.Dx() >= b.Dy() {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality, false); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Encode writes img in the given format (jpg, png or webp).
func Encode(w io.Writer, img image.Image, format string, quality int, lossless bool) error {
	if quality <= 0 {
		quality = 90
	}
	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case "jpg", "jpeg", "":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

// SaveImage saves an image to a file. An empty format is taken from the extension.
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	switch strings.ToLower(format) {
	case "png":
		return imaging.Save(img, path)
	case "jpg", "jpeg", "":
		if quality <= 0 {
			quality = 90
		}
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Encode(f, img, format, quality, lossless); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CreateDebugOverlay renders the image at its displayed size and draws the
// crop rectangle on it, plus crosshairs at the crop center and image center.
// With a zoom scale other than 1 the zoomed image outline is drawn as well.
func (p *Processor) CreateDebugOverlay(img image.Image, f frame.Frame, r types.Rect, scale float64) image.Image {
	dw, dh := int(math.Round(f.DisplayW)), int(math.Round(f.DisplayH))
	canvas := imaging.Resize(img, dw, dh, imaging.Linear)

	gold := color.NRGBA{255, 204, 0, 255}
	green := color.NRGBA{0, 255, 0, 255}
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 170, 255, 255}
	stroke := int(math.Max(2, 0.004*float64(min(dw, dh))))
	cross := int(math.Max(4, 0.01*float64(min(dw, dh))))

	if scale != 1 && scale > 0 {
		zw, zh := f.DisplayW*scale, f.DisplayH*scale
		zoomed := image.Rect(
			int(math.Round((f.DisplayW-zw)/2)), int(math.Round((f.DisplayH-zh)/2)),
			int(math.Round((f.DisplayW+zw)/2)), int(math.Round((f.DisplayH+zh)/2)),
		)
		drawRect(canvas, zoomed, green, 1)
	}

	crop := image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.Right())), int(math.Round(r.Bottom())),
	)
	if !crop.Empty() {
		drawRect(canvas, crop, gold, stroke)
		cx, cy := (crop.Min.X+crop.Max.X)/2, (crop.Min.Y+crop.Max.Y)/2
		drawHLine(canvas, cy, cx-cross, cx+cross, red)
		drawVLine(canvas, cx, cy-cross, cy+cross, red)
	}

	ix, iy := dw/2, dh/2
	drawHLine(canvas, iy, ix-6, ix+6, blue)
	drawVLine(canvas, ix, iy-6, iy+6, blue)
	return canvas
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < 0 || y >= b.Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0, x1 = max(x0, 0), min(x1, b.Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		copy(img.Pix[i:i+4], []uint8{c.R, c.G, c.B, c.A})
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < 0 || x >= b.Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0, y1 = max(y0, 0), min(y1, b.Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		copy(img.Pix[i:i+4], []uint8{c.R, c.G, c.B, c.A})
		i += img.Stride
	}
}
