// Package interaction turns pointer drags into crop rectangles.
//
// The engine is a two-state machine (Idle, Dragging). Begin snapshots the
// committed box, Update produces the visual rectangle for the current pointer
// position, and End verifies the visual rectangle and commits it.
package interaction

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/menta2k/image-cropper/pkg/cropbox"
	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/solver"
	"github.com/menta2k/image-cropper/pkg/types"
)

// ErrInvalidStateTransition is matched by errors returned for calls made in the wrong state.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// State of the engine.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// StateError reports a call that is not valid in the current state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("interaction: %s while %s: %v", e.Op, e.State, ErrInvalidStateTransition)
}

// Is makes errors.Is(err, ErrInvalidStateTransition) hold.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// Geometry is what the engine needs to know about the current image and lock.
type Geometry struct {
	Frame  frame.Frame
	Policy ratio.Policy
	Min    types.Size
}

// Session is the state of one drag.
type Session struct {
	ID           string
	Action       Action
	Start        types.Rect
	StartPointer types.Pointer
}

// Step is the result of one pointer move.
type Step struct {
	Visual       types.Rect
	Delta        types.Pointer
	AreaTooSmall bool
}

// Engine is the drag state machine for one crop box. It is the only writer of
// the box while a drag is in progress.
type Engine struct {
	box     *cropbox.Box
	state   State
	session *Session
	visual  types.Rect
	newID   func() string
}

// New creates an idle engine for box.
func New(box *cropbox.Box) *Engine {
	return &Engine{box: box, newID: uuid.NewString}
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Session returns the active drag, or nil when idle.
func (e *Engine) Session() *Session {
	return e.session
}

// Visual returns the rectangle to render: the unverified drag rectangle while
// dragging, the committed one otherwise.
func (e *Engine) Visual() types.Rect {
	if e.state == Dragging {
		return e.visual
	}
	return e.box.Snapshot()
}

// Begin starts a drag. It is only valid while idle.
func (e *Engine) Begin(a Action, p types.Pointer) (*Session, error) {
	if e.state != Idle {
		return nil, &StateError{Op: "begin", State: e.state}
	}
	a, err := ParseAction(string(a))
	if err != nil {
		return nil, err
	}
	start := e.box.Snapshot()
	e.session = &Session{
		ID:           e.newID(),
		Action:       a,
		Start:        start,
		StartPointer: p,
	}
	e.visual = start
	e.state = Dragging
	return e.session, nil
}

// Update moves the drag to pointer p and returns the new visual rectangle.
// The committed box is not changed.
func (e *Engine) Update(p types.Pointer, g Geometry) (Step, error) {
	if e.state != Dragging {
		return Step{}, &StateError{Op: "update", State: e.state}
	}
	s := e.session
	dx := p.X - s.StartPointer.X
	dy := p.Y - s.StartPointer.Y

	if g.Policy.Locked && s.Action.IsCorner() {
		r := g.Policy.Effective(g.Frame)
		switch s.Action {
		case NorthEast, SouthWest:
			dy = -cropbox.Round(dx / r)
		case NorthWest, SouthEast:
			dy = cropbox.Round(dx / r)
		}
	}

	step := Step{Delta: types.Pointer{X: dx, Y: dy}}
	st := s.Start

	if s.Action == Move {
		e.visual.X, e.visual.Y = solver.LimitMove(st.X+dx, st.Y+dy, g.Frame, st)
		step.Visual = e.visual
		return step, nil
	}

	in, fields := proposal(s.Action, st, dx, dy)
	lim := solver.EdgeLimit(in, g.Frame, g.Policy, st, g.Min)
	e.visual = apply(e.visual, lim.Partial, fields)

	step.Visual = e.visual
	step.AreaTooSmall = lim.AreaTooSmall
	return step, nil
}

// End verifies the visual rectangle, commits it to the box and returns to idle.
// A drag without any Update commits the unchanged rectangle.
func (e *Engine) End(p types.Pointer, g Geometry) (solver.Result, *Session, error) {
	if e.state != Dragging {
		return solver.Result{}, nil, &StateError{Op: "end", State: e.state}
	}
	res := solver.Verify(e.visual, g.Frame, g.Policy, g.Min)
	e.box.Commit(res.Rect)

	s := e.session
	e.session = nil
	e.state = Idle
	return res, s, nil
}

// Abort drops an active drag without committing it.
func (e *Engine) Abort() {
	e.session = nil
	e.state = Idle
}

type field uint8

const (
	fieldX field = 1 << iota
	fieldY
	fieldW
	fieldH
)

// proposal returns the candidate for an edge or corner drag and the fields the
// action is allowed to change.
func proposal(a Action, st types.Rect, dx, dy float64) (solver.Partial, field) {
	some := types.Some
	switch a {
	case North:
		return solver.Partial{X: some(st.X), Y: some(st.Y + dy), H: some(st.H - dy)}, fieldH | fieldY
	case South:
		return solver.Partial{X: some(st.X), Y: some(st.Y), H: some(st.H + dy)}, fieldH
	case East:
		return solver.Partial{X: some(st.X), Y: some(st.Y), W: some(st.W + dx), H: some(st.H)}, fieldW
	case West:
		return solver.Partial{X: some(st.X + dx), Y: some(st.Y), W: some(st.W - dx), H: some(st.H)}, fieldW | fieldX
	case NorthWest:
		return solver.Partial{X: some(st.X + dx), Y: some(st.Y + dy), W: some(st.W - dx), H: some(st.H - dy)}, fieldW | fieldX | fieldH | fieldY
	case NorthEast:
		return solver.Partial{X: some(st.X), Y: some(st.Y + dy), W: some(st.W + dx), H: some(st.H - dy)}, fieldW | fieldH | fieldY
	case SouthWest:
		return solver.Partial{X: some(st.X + dx), Y: some(st.Y), W: some(st.W - dx), H: some(st.H + dy)}, fieldW | fieldX | fieldH
	case SouthEast:
		return solver.Partial{X: some(st.X), Y: some(st.Y), W: some(st.W + dx), H: some(st.H + dy)}, fieldW | fieldH
	}
	return solver.Partial{}, 0
}

func apply(r types.Rect, p solver.Partial, fields field) types.Rect {
	if fields&fieldX != 0 && p.X.Valid {
		r.X = p.X.Value
	}
	if fields&fieldY != 0 && p.Y.Valid {
		r.Y = p.Y.Value
	}
	if fields&fieldW != 0 && p.W.Valid {
		r.W = p.W.Value
	}
	if fields&fieldH != 0 && p.H.Valid {
		r.H = p.H.Value
	}
	return r
}
