// Package analyzer measures images: natural size, format and the displayed
// size a crop widget lays them out at.
package analyzer

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"strings"

	_ "golang.org/x/image/webp"
)

// ImageAnalyzer probes image dimensions and checks them against requirements
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspectRatio"`
	Area        int     `json:"area"`
	Format      string  `json:"format,omitempty"`
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			SupportedFormats: []string{"jpeg", "png", "webp"},
			MinImageSize:     20,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// Measure reads only the image header and returns the natural size.
func (a *ImageAnalyzer) Measure(r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	if !a.isFormatSupported(format) {
		return ImageInfo{}, fmt.Errorf("unsupported image format: %s", format)
	}
	info := newInfo(cfg.Width, cfg.Height)
	info.Format = format
	return info, nil
}

// MeasureFile is Measure for a file path.
func (a *ImageAnalyzer) MeasureFile(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()
	return a.Measure(f)
}

// GetImageInfo returns basic information about a decoded image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	b := img.Bounds()
	return newInfo(b.Dx(), b.Dy())
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	return a.ValidateInfo(a.GetImageInfo(img))
}

// ValidateInfo checks measured dimensions against the minimum size.
func (a *ImageAnalyzer) ValidateInfo(info ImageInfo) error {
	if info.Width < a.config.MinImageSize || info.Height < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			info.Width, info.Height, a.config.MinImageSize)
	}
	return nil
}

// FitDisplay returns the displayed size of an image laid out inside a
// maxW x maxH box, keeping its aspect ratio and never upscaling. A
// non-positive bound is ignored.
func FitDisplay(info ImageInfo, maxW, maxH int) (float64, float64) {
	w, h := float64(info.Width), float64(info.Height)
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/w)
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/h)
	}
	return math.Round(w * scale), math.Round(h * scale)
}

func newInfo(w, h int) ImageInfo {
	info := ImageInfo{Width: w, Height: h, Area: w * h}
	if h > 0 {
		info.AspectRatio = float64(w) / float64(h)
	}
	return info
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}
