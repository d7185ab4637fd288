package cropper

import (
	"strings"

	"github.com/menta2k/image-cropper/pkg/types"
)

// AspectRatio represents common aspect ratios
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Common aspect ratios
var (
	Square     = AspectRatio{1, 1, "square"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
	Instagram  = AspectRatio{4, 5, "instagram"}
	Story      = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns a list of commonly used aspect ratios
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Widescreen, Instagram, Story}
}

// LookupAspectRatio finds a preset by name.
func LookupAspectRatio(name string) (AspectRatio, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, ar := range CommonAspectRatios() {
		if ar.Name == name {
			return ar, true
		}
	}
	return AspectRatio{}, false
}

// Target converts the preset into a target with both sides set, which locks the ratio.
func (ar AspectRatio) Target() types.Target {
	return types.TargetOf(float64(ar.Width), float64(ar.Height))
}

// Ratio returns Width/Height.
func (ar AspectRatio) Ratio() float64 {
	return float64(ar.Width) / float64(ar.Height)
}
