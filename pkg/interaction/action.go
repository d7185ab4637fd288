package interaction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/menta2k/image-cropper/pkg/ratio"
)

// ErrEdgeLocked is returned for an edge drag while the ratio is locked.
var ErrEdgeLocked = errors.New("edge handles are disabled while the ratio is locked")

// Action identifies what a drag manipulates: the whole box, an edge or a corner.
type Action string

const (
	Move      Action = "move"
	North     Action = "n"
	South     Action = "s"
	East      Action = "e"
	West      Action = "w"
	NorthWest Action = "nw"
	NorthEast Action = "ne"
	SouthWest Action = "sw"
	SouthEast Action = "se"
)

// Actions lists every valid action.
var Actions = []Action{Move, North, South, East, West, NorthWest, NorthEast, SouthWest, SouthEast}

// ParseAction maps a pointer target tag to an action. The tag "box" means Move.
func ParseAction(tag string) (Action, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "box" {
		return Move, nil
	}
	for _, a := range Actions {
		if string(a) == tag {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown crop action %q", tag)
}

// IsCorner reports whether the action resizes both dimensions.
func (a Action) IsCorner() bool {
	switch a {
	case NorthWest, NorthEast, SouthWest, SouthEast:
		return true
	}
	return false
}

// IsEdge reports whether the action resizes a single dimension.
func (a Action) IsEdge() bool {
	switch a {
	case North, South, East, West:
		return true
	}
	return false
}

// Handles lists the actions offered under policy p. A locked ratio leaves the
// box and its corners; a single edge cannot keep the ratio.
func Handles(p ratio.Policy) []Action {
	if !p.Locked {
		return append([]Action(nil), Actions...)
	}
	return []Action{Move, NorthWest, NorthEast, SouthWest, SouthEast}
}

// Allowed reports whether a can be started under policy p.
func Allowed(a Action, p ratio.Policy) bool {
	return !(p.Locked && a.IsEdge())
}
