package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/types"
)

// parseTarget accepts "1200x675", "1200", "x800" or a preset name such as "square".
func parseTarget(s string) (*types.Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if ar, ok := cropper.LookupAspectRatio(s); ok {
		t := ar.Target()
		return &t, nil
	}

	ws, hs, _ := strings.Cut(strings.ToLower(s), "x")
	var t types.Target
	if ws != "" {
		w, err := strconv.ParseFloat(ws, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid target width %q", ws)
		}
		t.W = types.Some(w)
	}
	if hs != "" {
		h, err := strconv.ParseFloat(hs, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid target height %q", hs)
		}
		t.H = types.Some(h)
	}
	if !t.W.Valid && !t.H.Valid {
		return nil, fmt.Errorf("invalid target %q", s)
	}
	return &t, nil
}

// parseSize accepts "1024x768". A missing side is zero.
func parseSize(s string) (int, int, error) {
	ws, hs, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	var w, h int
	var err error
	if ws != "" {
		if w, err = strconv.Atoi(ws); err != nil || w < 0 {
			return 0, 0, fmt.Errorf("invalid width %q", ws)
		}
	}
	if hs != "" {
		if h, err = strconv.Atoi(hs); err != nil || h < 0 {
			return 0, 0, fmt.Errorf("invalid height %q", hs)
		}
	}
	return w, h, nil
}

// parseCrop accepts "WxH+X+Y" with an optional "@scale", in natural pixels.
func parseCrop(s string) (*types.Output, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := types.Output{Scale: 1}
	if body, scale, ok := strings.Cut(s, "@"); ok {
		v, err := strconv.ParseFloat(scale, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid crop scale %q", scale)
		}
		out.Scale = v
		s = body
	}

	size, rest, _ := strings.Cut(s, "+")
	xs, ys, _ := strings.Cut(rest, "+")
	w, h, err := parseSize(size)
	if err != nil {
		return nil, fmt.Errorf("invalid crop size: %w", err)
	}
	out.Width, out.Height = w, h
	if xs != "" {
		if out.X, err = strconv.Atoi(xs); err != nil {
			return nil, fmt.Errorf("invalid crop x %q", xs)
		}
	}
	if ys != "" {
		if out.Y, err = strconv.Atoi(ys); err != nil {
			return nil, fmt.Errorf("invalid crop y %q", ys)
		}
	}
	return &out, nil
}

// parseKeep maps the -keep-ratio flag to the widget override.
func parseKeep(s string) (*bool, error) {
	k, err := ratio.ParseKeepRatio(s)
	if err != nil {
		return nil, err
	}
	switch k {
	case ratio.KeepOn:
		v := true
		return &v, nil
	case ratio.KeepOff:
		v := false
		return &v, nil
	}
	return nil, nil
}
