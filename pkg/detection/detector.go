// Package detection asks a vision model where the main subject of an image is.
// The answer seeds the initial crop of a widget.
package detection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/menta2k/image-cropper/pkg/client"
	"github.com/menta2k/image-cropper/pkg/types"
)

// DefaultPrompt asks for the subject box in normalized coordinates.
const DefaultPrompt = `You locate the main subject of a photo so it can be cropped.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (at most 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

RULES
- Coordinates are normalized to [0,1], origin top-left. Never pixels.
- The box tightly contains the visually dominant subject (people, animals, vehicles first).
- cx, cy is the point a crop should stay centered on, usually a face or the subject center.
- If there is no clear subject, use label "none" and the box {"x":0.25,"y":0.25,"w":0.5,"h":0.5}.
- JSON only. No markdown, no comments, no trailing commas.`

// Detector handles image subject detection using vision models
type Detector struct {
	client client.VisionClient
	model  string
	prompt string
	logger *slog.Logger
}

// NewDetector creates a detector that queries model through c.
func NewDetector(c client.VisionClient, model string) *Detector {
	return &Detector{client: c, model: model, prompt: DefaultPrompt, logger: slog.Default()}
}

// SetPrompt replaces the prompt.
func (d *Detector) SetPrompt(prompt string) {
	d.prompt = prompt
}

// SetLogger replaces the logger.
func (d *Detector) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// DetectSubject returns the primary subject of the base64 encoded image.
// Unusable answers yield the centered fallback subject with label "none".
func (d *Detector) DetectSubject(ctx context.Context, imageB64 string) (*types.AnalysisResult, error) {
	raw, err := d.client.Complete(ctx, d.model, d.prompt, imageB64)
	if err != nil {
		return nil, fmt.Errorf("vision query failed: %w", err)
	}

	result, ok := Parse(raw)
	if !ok {
		d.logger.Warn("vision model returned no usable JSON", "model", d.model, "answer", truncate(raw, 200))
	}
	return Adjust(result), nil
}

// Adjust clamps coordinates to [0,1], fills a missing center from the box and
// marks low-information answers as "none".
func Adjust(r *types.AnalysisResult) *types.AnalysisResult {
	p := &r.Primary
	p.Box = types.Box{
		X: clamp(p.Box.X, 0, 1),
		Y: clamp(p.Box.Y, 0, 1),
		W: clamp(p.Box.W, 0, 1),
		H: clamp(p.Box.H, 0, 1),
	}
	if p.Box.X+p.Box.W > 1 {
		p.Box.W = 1 - p.Box.X
	}
	if p.Box.Y+p.Box.H > 1 {
		p.Box.H = 1 - p.Box.Y
	}
	if p.Box.W == 0 || p.Box.H == 0 {
		p.Box = fallbackBox
	}
	if p.Cx == 0 && p.Cy == 0 {
		p.Cx = p.Box.X + p.Box.W/2
		p.Cy = p.Box.Y + p.Box.H/2
	}
	p.Cx, p.Cy = clamp(p.Cx, 0, 1), clamp(p.Cy, 0, 1)
	p.Confidence = clamp(p.Confidence, 0, 1)

	if p.Label == "" {
		p.Label = "none"
	}
	if strings.EqualFold(p.Label, "none") {
		p.Label = "none"
		p.Confidence = 0
	}
	r.Tags = normalizeTags(r.Tags)
	return r
}

// Found reports whether the model located an actual subject.
func Found(r *types.AnalysisResult) bool {
	return r != nil && r.Primary.Label != "none" && r.Primary.Confidence > 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeTags lowercases, dedups and limits tags to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
