// Package script replays recorded pointer, wheel and layout steps against a
// crop widget. Scripts are JSON documents:
//
//	{"steps": [
//	  {"op": "drag", "action": "se", "from": {"x": 600, "y": 400}, "to": {"x": 300, "y": 200}, "steps": 4},
//	  {"op": "zoom", "delta": -1, "count": 2},
//	  {"op": "flush"},
//	  {"op": "target", "target": [800, 800]}
//	]}
//
// Coordinates are displayed pixels.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Step operations.
const (
	OpDrag   = "drag"
	OpClick  = "click"
	OpZoom   = "zoom"
	OpFlush  = "flush"
	OpResize = "resize"
	OpTarget = "target"
	OpCancel = "cancel"
)

// Point is a displayed pixel position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) pointer() types.Pointer {
	return types.Pointer{X: p.X, Y: p.Y}
}

// Step is one scripted operation. Only the fields of its op are read.
type Step struct {
	Op string `json:"op"`
	// Action is the handle tag for drag and click; "box" moves the crop.
	Action string `json:"action,omitempty"`
	From   Point  `json:"from"`
	To     Point  `json:"to"`
	// Steps is the number of intermediate pointer moves of a drag.
	Steps  int           `json:"steps,omitempty"`
	Delta  float64       `json:"delta,omitempty"`
	Count  int           `json:"count,omitempty"`
	Width  float64       `json:"width,omitempty"`
	Height float64       `json:"height,omitempty"`
	Target *types.Target `json:"target,omitempty"`
}

// Script is an ordered list of steps.
type Script struct {
	Steps []Step `json:"steps"`
}

// Parse decodes and validates a script.
func Parse(r io.Reader) (*Script, error) {
	var s Script
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return &s, nil
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func (st Step) validate() error {
	switch st.Op {
	case OpDrag:
		if st.Action == "" {
			return fmt.Errorf("drag needs an action")
		}
	case OpClick, OpFlush, OpCancel:
	case OpZoom:
		if st.Delta == 0 {
			return fmt.Errorf("zoom needs a non-zero delta")
		}
	case OpResize:
		if st.Width < 0 || st.Height < 0 {
			return fmt.Errorf("resize needs a non-negative size")
		}
	case OpTarget:
		if st.Target == nil {
			return fmt.Errorf("target step without target")
		}
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

// Run applies the steps to c in order, commits a pending zoom and returns the
// final crop. It stops at the first failing step.
func Run(ctx context.Context, c *cropper.Crop, s *Script, logger *slog.Logger) (types.Output, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return types.Output{}, err
		}
		if err := apply(c, st); err != nil {
			c.Cancel()
			return types.Output{}, fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
		logger.Debug("script step applied", "step", i, "op", st.Op, "box", c.Visual())
	}
	c.FlushZoom()
	return c.Data()
}

func apply(c *cropper.Crop, st Step) error {
	switch st.Op {
	case OpDrag:
		if err := c.Start(st.Action, st.From.pointer()); err != nil {
			return err
		}
		n := max(st.Steps, 1)
		for i := 1; i <= n; i++ {
			t := float64(i) / float64(n)
			p := types.Pointer{
				X: st.From.X + (st.To.X-st.From.X)*t,
				Y: st.From.Y + (st.To.Y-st.From.Y)*t,
			}
			if _, err := c.Move(p); err != nil {
				return err
			}
		}
		_, err := c.Stop(st.To.pointer())
		return err
	case OpClick:
		action := st.Action
		if action == "" {
			action = "box"
		}
		if err := c.Start(action, st.From.pointer()); err != nil {
			return err
		}
		_, err := c.Stop(st.From.pointer())
		return err
	case OpZoom:
		for i := 0; i < max(st.Count, 1); i++ {
			if _, err := c.Zoom(st.Delta); err != nil {
				return err
			}
		}
	case OpFlush:
		c.FlushZoom()
	case OpResize:
		return c.Resize(st.Width, st.Height)
	case OpTarget:
		return c.SetTarget(*st.Target)
	case OpCancel:
		c.Cancel()
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}
