// Package ratio derives the aspect-ratio lock from a requested target size.
package ratio

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Tolerance is the allowed deviation of a locked crop's width/height quotient.
const Tolerance = 0.02

// ErrInvalidTarget is returned when neither target side yields a usable size.
var ErrInvalidTarget = errors.New("invalid target: no usable width or height")

// KeepRatio is an explicit override of the ratio lock.
type KeepRatio int

const (
	// KeepDefault locks only when both target sides are given.
	KeepDefault KeepRatio = iota
	// KeepOn always locks, synthesizing the ratio from the image when needed.
	KeepOn
	// KeepOff never locks.
	KeepOff
)

// ParseKeepRatio accepts "", "default", "true"/"on"/"yes" and "false"/"off"/"no".
func ParseKeepRatio(s string) (KeepRatio, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "auto":
		return KeepDefault, nil
	case "true", "on", "yes", "1":
		return KeepOn, nil
	case "false", "off", "no", "0":
		return KeepOff, nil
	}
	return KeepDefault, fmt.Errorf("unknown keep ratio value %q", s)
}

// KeepRatioOf converts an optional boolean into an override.
func KeepRatioOf(v *bool) KeepRatio {
	switch {
	case v == nil:
		return KeepDefault
	case *v:
		return KeepOn
	default:
		return KeepOff
	}
}

func (k KeepRatio) String() string {
	switch k {
	case KeepOn:
		return "on"
	case KeepOff:
		return "off"
	}
	return "default"
}

// Policy is the resolved ratio lock. It is replaced wholesale on every target change.
type Policy struct {
	Locked bool `json:"locked"`
	// Ratio is |TargetW/TargetH|; zero when no target resolved.
	Ratio      float64   `json:"ratio"`
	TargetW    float64   `json:"targetW"`
	TargetH    float64   `json:"targetH"`
	MaxTargetW float64   `json:"maxTargetW"`
	MaxTargetH float64   `json:"maxTargetH"`
	Keep       KeepRatio `json:"-"`
}

// FromTarget resolves a policy for the image described by f.
// When the target is unusable the returned policy is the unlocked fallback
// (or natural-ratio lock under KeepOn) together with ErrInvalidTarget.
func FromTarget(t types.Target, f frame.Frame, keep KeepRatio) (Policy, error) {
	return Policy{Keep: keep}.resolve(t, f)
}

// Retarget derives the policy for a new target, carrying the keep override and
// the largest target seen so far.
func (p Policy) Retarget(t types.Target, f frame.Frame) (Policy, error) {
	return Policy{Keep: p.Keep, MaxTargetW: p.MaxTargetW, MaxTargetH: p.MaxTargetH}.resolve(t, f)
}

func (p Policy) resolve(t types.Target, f frame.Frame) (Policy, error) {
	w, h := side(t.W), side(t.H)
	explicit := w != 0 && h != 0

	if w == 0 && h == 0 {
		return p.fallback(), ErrInvalidTarget
	}
	if w == 0 {
		w = f.NaturalW / (f.NaturalH / h)
	}
	if h == 0 {
		h = f.NaturalH / (f.NaturalW / w)
	}
	if w > p.MaxTargetW {
		p.MaxTargetW = w
	}
	if h > p.MaxTargetH {
		p.MaxTargetH = h
	}
	w, h = nanToZero(w), nanToZero(h)
	if w == 0 || h == 0 || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return p.fallback(), ErrInvalidTarget
	}

	p.TargetW, p.TargetH = w, h
	p.Ratio = math.Abs(w / h)
	switch p.Keep {
	case KeepOn:
		p.Locked = true
	case KeepOff:
		p.Locked = false
	default:
		p.Locked = explicit
	}
	return p, nil
}

func (p Policy) fallback() Policy {
	p.Locked = p.Keep == KeepOn
	p.Ratio = 0
	p.TargetW, p.TargetH = 0, 0
	return p
}

// Effective returns the ratio the engine works with: the target ratio, or the
// image's natural ratio when no target resolved.
func (p Policy) Effective(f frame.Frame) float64 {
	if p.Ratio > 0 {
		return p.Ratio
	}
	if f.NaturalH > 0 {
		return f.NaturalRatio()
	}
	return 1
}

// Within reports whether w/h is inside the lock tolerance of ratio.
func Within(w, h, ratio float64) bool {
	if h == 0 {
		return false
	}
	return math.Abs(w/h-ratio) <= Tolerance
}

func side(m types.Maybe) float64 {
	if !m.Valid {
		return 0
	}
	return nanToZero(m.Value)
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
