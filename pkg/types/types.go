package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Maybe is a float64 that may be absent. The zero value is absent.
type Maybe struct {
	Value float64
	Valid bool
}

// Some returns a present value.
func Some(v float64) Maybe {
	return Maybe{Value: v, Valid: true}
}

// None returns an absent value.
func None() Maybe {
	return Maybe{}
}

// Or returns the value if present, otherwise def.
func (m Maybe) Or(def float64) float64 {
	if m.Valid {
		return m.Value
	}
	return def
}

// MarshalJSON encodes an absent value as null.
func (m Maybe) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts null, numbers and numeric strings ("600").
func (m *Maybe) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Maybe{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*m = Some(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("maybe: expected number, string or null: %w", err)
	}
	if s == "" {
		*m = Maybe{}
		return nil
	}
	var parsed float64
	if _, err := fmt.Sscan(s, &parsed); err != nil {
		*m = Maybe{}
		return nil
	}
	*m = Some(parsed)
	return nil
}

// Rect is a rectangle in displayed pixel space, origin at the image's top-left corner.
type Rect struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 {
	return r.X + r.W
}

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 {
	return r.Y + r.H
}

// Ratio returns W/H, or +Inf for a zero height.
func (r Rect) Ratio() float64 {
	if r.H == 0 {
		return math.Inf(1)
	}
	return r.W / r.H
}

// Finite reports whether every component is a finite number.
func (r Rect) Finite() bool {
	for _, v := range [...]float64{r.W, r.H, r.X, r.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Size is a width/height pair.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Target is the requested output size. Either side may be absent.
// It encodes as a JSON array: [600, 500], [600] or [null, 800].
type Target struct {
	W Maybe
	H Maybe
}

// TargetOf builds a target with both sides present.
func TargetOf(w, h float64) Target {
	return Target{W: Some(w), H: Some(h)}
}

// MarshalJSON encodes the target as a two element array.
func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]Maybe{t.W, t.H})
}

// UnmarshalJSON decodes [w], [w, h], [null, h] or an object {"w":..,"h":..}.
func (t *Target) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Target{}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			W Maybe `json:"w"`
			H Maybe `json:"h"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("target: %w", err)
		}
		*t = Target{W: obj.W, H: obj.H}
		return nil
	}
	var arr []Maybe
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	*t = Target{}
	if len(arr) > 0 {
		t.W = arr[0]
	}
	if len(arr) > 1 {
		t.H = arr[1]
	}
	return nil
}

// Output is the crop region in natural image pixels plus the zoom scale.
type Output struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Scale  float64 `json:"scale"`
}

// Pointer is a pointer position in the caller's coordinate system.
type Pointer struct {
	X float64 `json:"clientX"`
	Y float64 `json:"clientY"`
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
