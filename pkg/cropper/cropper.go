// Package cropper ties the crop geometry together into a widget: it owns the
// frame, the ratio policy, the committed box and the drag engine of one image,
// posts advisories and notifies listeners.
package cropper

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/image-cropper/pkg/cropbox"
	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/interaction"
	"github.com/menta2k/image-cropper/pkg/messages"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/solver"
	"github.com/menta2k/image-cropper/pkg/types"
)

var (
	// ErrNotLoaded is returned by operations that need the image dimensions.
	ErrNotLoaded = errors.New("crop: image not loaded")
	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("crop: destroyed")
)

// DefaultZoomQuietPeriod is how long the wheel must be idle before a zoom is committed.
const DefaultZoomQuietPeriod = 100 * time.Millisecond

// Event names.
const (
	EventStarted = "started"
	EventMoving  = "moving"
	EventStopped = "stopped"
)

// Config holds the per-instance configuration.
type Config struct {
	ID string `json:"id"`
	// Target is the requested output size in natural pixels.
	Target *types.Target `json:"target,omitempty"`
	// KeepRatio overrides whether the ratio is locked.
	KeepRatio *bool `json:"keep_ratio,omitempty"`
	// Crop is the initial crop in natural pixels.
	Crop            *types.Output `json:"crop,omitempty"`
	MinWidth        float64       `json:"min_width,omitempty"`
	MinHeight       float64       `json:"min_height,omitempty"`
	ZoomStep        float64       `json:"zoom_step,omitempty"`
	ZoomQuietPeriod time.Duration `json:"-"`
}

// Event is passed to listeners.
type Event struct {
	Name    string
	Pointer types.Pointer
	// Session is the drag session id; empty for zoom commits.
	Session string
	Crop    *Crop
}

// Listener receives crop events.
type Listener func(Event)

// Crop is one crop widget. It is safe for concurrent use; listeners are
// invoked after the internal lock is released, in subscription order.
type Crop struct {
	mu        sync.Mutex
	id        string
	cfg       Config
	logger    *slog.Logger
	messenger messages.Messenger

	frame  frame.Frame
	policy ratio.Policy
	box    *cropbox.Box
	engine *interaction.Engine
	min    types.Size

	loaded    bool
	destroyed bool
	listeners map[string][]subscription
	nextSub   uint64
	onDestroy func(id string)

	zoomTimer   *time.Timer
	zoomGen     uint64
	zoomPending bool
}

// New creates an unloaded crop. An empty ID is replaced by a random one.
func New(cfg Config) *Crop {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.ZoomStep <= 0 {
		cfg.ZoomStep = cropbox.DefaultZoomStep
	}
	if cfg.ZoomQuietPeriod <= 0 {
		cfg.ZoomQuietPeriod = DefaultZoomQuietPeriod
	}

	minSize := solver.DefaultMin
	if cfg.MinWidth > 0 {
		minSize.W = cfg.MinWidth
	}
	if cfg.MinHeight > 0 {
		minSize.H = cfg.MinHeight
	}

	box := cropbox.New()
	logger := slog.Default()
	return &Crop{
		id:        cfg.ID,
		cfg:       cfg,
		logger:    logger.With("crop", cfg.ID),
		messenger: messages.NewBoard(nil, logger),
		box:       box,
		engine:    interaction.New(box),
		min:       minSize,
		listeners: make(map[string][]subscription),
	}
}

// SetLogger replaces the logger.
func (c *Crop) SetLogger(logger *slog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger.With("crop", c.id)
}

// SetMessenger replaces the advisory sink.
func (c *Crop) SetMessenger(m messages.Messenger) {
	if m == nil {
		m = messages.Discard
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messenger = m
}

// Messenger returns the advisory sink.
func (c *Crop) Messenger() messages.Messenger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messenger
}

// OnDestroy registers a hook run once by Destroy. Registries use it to forget the crop.
func (c *Crop) OnDestroy(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDestroy = fn
}

// ID returns the instance id.
func (c *Crop) ID() string {
	return c.id
}

// Load initializes the frame from the natural and displayed image size and
// places the initial crop.
func (c *Crop) Load(naturalW, naturalH, displayW, displayH float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrDestroyed
	}

	f, err := frame.Init(naturalW, naturalH, displayW, displayH)
	if err != nil {
		if errors.Is(err, frame.ErrHiddenFrame) {
			messages.Post(c.messenger, messages.CouldNotDetectImageScale)
		}
		return fmt.Errorf("load: %w", err)
	}

	keep := ratio.KeepRatioOf(c.cfg.KeepRatio)
	var target types.Target
	if c.cfg.Target != nil {
		target = *c.cfg.Target
	}
	policy, err := ratio.FromTarget(target, f, keep)
	if err != nil && c.cfg.Target != nil {
		c.logger.Warn("ignoring target", "target", target, "error", err)
	}

	var rect types.Rect
	scale := 1.0
	if crop := c.cfg.Crop; crop != nil {
		if crop.Scale != 0 {
			scale = cropbox.ClampScale(crop.Scale)
		}
		if crop.Width != 0 || crop.Height != 0 {
			rect = cropbox.FromOutput(f, types.Output{
				Width: crop.Width, Height: crop.Height, X: crop.X, Y: crop.Y, Scale: scale,
			})
		}
	}

	c.engine.Abort()
	c.frame = f
	c.policy = policy
	c.box.SetScale(scale)
	res := solver.Verify(rect, f, policy, c.min)
	c.box.Commit(res.Rect)
	c.loaded = true

	c.messenger.DeleteMessage(messages.CouldNotDetectImageScale)
	c.advise(res)
	c.logger.Info("crop loaded",
		"natural", fmt.Sprintf("%gx%g", f.NaturalW, f.NaturalH),
		"display", fmt.Sprintf("%gx%g", f.DisplayW, f.DisplayH),
		"locked", policy.Locked,
		"ratio", policy.Effective(f),
		"box", res.Rect)
	return nil
}

// Resize rescales the committed box to a new displayed size. A zero display
// size keeps the previous geometry.
func (c *Crop) Resize(displayW, displayH float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return err
	}

	old := c.frame
	nf, err := old.Rescale(displayW, displayH)
	if err != nil {
		if errors.Is(err, frame.ErrHiddenFrame) {
			messages.Post(c.messenger, messages.CouldNotDetectImageScale)
		}
		return fmt.Errorf("resize: %w", err)
	}
	c.messenger.DeleteMessage(messages.CouldNotDetectImageScale)

	if c.engine.State() == interaction.Dragging {
		c.logger.Debug("drag aborted by resize", "session", c.engine.Session().ID)
		c.engine.Abort()
	}

	r := c.box.Snapshot()
	k := old.Scale / nf.Scale
	r = types.Rect{W: r.W * k, H: r.H * k, X: r.X * k, Y: r.Y * k}

	c.frame = nf
	res := solver.Verify(r, nf, c.policy, c.min)
	c.box.Commit(res.Rect)
	c.advise(res)
	c.logger.Debug("crop resized", "display", fmt.Sprintf("%gx%g", nf.DisplayW, nf.DisplayH), "box", res.Rect)
	return nil
}

// SetTarget re-derives the ratio policy and re-verifies the box. An unusable
// target leaves the crop unchanged and returns an error matching ratio.ErrInvalidTarget.
// Before Load the target replaces the configured one.
func (c *Crop) SetTarget(t types.Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrDestroyed
	}
	if !c.loaded {
		c.cfg.Target = &t
		return nil
	}

	p, err := c.policy.Retarget(t, c.frame)
	if err != nil {
		return fmt.Errorf("set target: %w", err)
	}
	c.policy = p
	if s := c.engine.Session(); s != nil && !interaction.Allowed(s.Action, p) {
		c.logger.Debug("edge drag aborted by ratio lock", "session", s.ID)
		c.engine.Abort()
	}
	res := solver.Verify(c.box.Snapshot(), c.frame, p, c.min)
	c.box.Commit(res.Rect)
	c.advise(res)
	c.logger.Info("target changed", "target", t, "locked", p.Locked, "ratio", p.Ratio, "box", res.Rect)
	return nil
}

// Zoom applies one wheel notch: a negative deltaY zooms in. The scale changes
// at once; the box is re-verified after the quiet period, followed by a
// stopped event.
func (c *Crop) Zoom(deltaY float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return 0, err
	}
	scale := c.box.Zoom(deltaY, c.cfg.ZoomStep)

	if c.zoomTimer != nil {
		c.zoomTimer.Stop()
	}
	c.zoomGen++
	c.zoomPending = true
	gen := c.zoomGen
	c.zoomTimer = time.AfterFunc(c.cfg.ZoomQuietPeriod, func() { c.commitZoom(gen) })
	return scale, nil
}

// FlushZoom commits a pending zoom immediately. It reports whether one was pending.
func (c *Crop) FlushZoom() bool {
	c.mu.Lock()
	if !c.zoomPending {
		c.mu.Unlock()
		return false
	}
	if c.zoomTimer != nil {
		c.zoomTimer.Stop()
	}
	gen := c.zoomGen
	c.mu.Unlock()

	return c.commitZoom(gen)
}

func (c *Crop) commitZoom(gen uint64) bool {
	c.mu.Lock()
	if c.destroyed || !c.zoomPending || gen != c.zoomGen {
		c.mu.Unlock()
		return false
	}
	c.zoomPending = false
	c.zoomTimer = nil

	res := solver.Verify(c.box.Snapshot(), c.frame, c.policy, c.min)
	c.box.Commit(res.Rect)
	c.advise(res)
	c.logger.Debug("zoom committed", "scale", c.box.Scale())
	ls := c.listenersFor(EventStopped)
	c.mu.Unlock()

	c.fire(ls, Event{Name: EventStopped, Crop: c})
	return true
}

// Start begins a drag on the handle tagged target ("box", "n", "se", ...).
func (c *Crop) Start(target string, p types.Pointer) error {
	_, err := c.StartSession(target, p)
	return err
}

// StartSession is Start returning the id of the new drag session.
func (c *Crop) StartSession(target string, p types.Pointer) (string, error) {
	c.mu.Lock()
	if err := c.ready(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	a, err := interaction.ParseAction(target)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	if !interaction.Allowed(a, c.policy) {
		c.mu.Unlock()
		return "", fmt.Errorf("start %s: %w", a, interaction.ErrEdgeLocked)
	}
	s, err := c.engine.Begin(a, p)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.logger.Debug("drag started", "session", s.ID, "action", s.Action)
	ls := c.listenersFor(EventStarted)
	c.mu.Unlock()

	c.fire(ls, Event{Name: EventStarted, Pointer: p, Session: s.ID, Crop: c})
	return s.ID, nil
}

// Move updates the active drag and returns the rectangle to render.
func (c *Crop) Move(p types.Pointer) (types.Rect, error) {
	c.mu.Lock()
	if err := c.ready(); err != nil {
		c.mu.Unlock()
		return types.Rect{}, err
	}
	step, err := c.engine.Update(p, c.geometry())
	if err != nil {
		c.mu.Unlock()
		return types.Rect{}, err
	}
	messages.Set(c.messenger, messages.AreaTooSmall, step.AreaTooSmall)
	id := c.engine.Session().ID
	ls := c.listenersFor(EventMoving)
	c.mu.Unlock()

	c.fire(ls, Event{Name: EventMoving, Pointer: p, Session: id, Crop: c})
	return step.Visual, nil
}

// Stop ends the active drag, commits the verified rectangle and returns the new output.
func (c *Crop) Stop(p types.Pointer) (types.Output, error) {
	c.mu.Lock()
	if err := c.ready(); err != nil {
		c.mu.Unlock()
		return types.Output{}, err
	}
	res, s, err := c.engine.End(p, c.geometry())
	if err != nil {
		c.mu.Unlock()
		return types.Output{}, err
	}
	c.advise(res)
	out := c.box.ToOutput(c.frame)
	c.logger.Info("drag stopped", "session", s.ID, "action", s.Action, "box", res.Rect, "forced", res.RatioForced)
	ls := c.listenersFor(EventStopped)
	c.mu.Unlock()

	c.fire(ls, Event{Name: EventStopped, Pointer: p, Session: s.ID, Crop: c})
	return out, nil
}

// Cancel drops an active drag without committing it.
func (c *Crop) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.Abort()
}

// CancelSession drops the active drag only if it is session id. It reports
// whether a drag was dropped.
func (c *Crop) CancelSession(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.engine.Session(); s == nil || s.ID != id {
		return false
	}
	c.engine.Abort()
	return true
}

// Data returns the crop in natural pixels.
func (c *Crop) Data() (types.Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(); err != nil {
		return types.Output{}, err
	}
	return c.box.ToOutput(c.frame), nil
}

// Visual returns the rectangle to render in displayed pixels.
func (c *Crop) Visual() types.Rect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Visual()
}

// Handles lists the drag handles available under the current ratio policy.
func (c *Crop) Handles() []interaction.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return interaction.Handles(c.policy)
}

// Dragging reports whether a drag is active.
func (c *Crop) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.State() == interaction.Dragging
}

// Frame returns the image dimensions.
func (c *Crop) Frame() frame.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Policy returns the current ratio policy.
func (c *Crop) Policy() ratio.Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// Scale returns the zoom scale.
func (c *Crop) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.box.Scale()
}

// Loaded reports whether Load succeeded.
func (c *Crop) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

type subscription struct {
	id uint64
	fn Listener
}

// Listen subscribes fn to the named event. The returned function removes
// the subscription.
func (c *Crop) Listen(name string, fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.listeners[name] = append(c.listeners[name], subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.listeners[name]
		for i, s := range subs {
			if s.id == id {
				c.listeners[name] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Destroy releases the crop: a pending zoom commit is cancelled, advisories
// are removed and the destroy hook runs. Further calls return ErrDestroyed.
func (c *Crop) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	if c.zoomTimer != nil {
		c.zoomTimer.Stop()
		c.zoomTimer = nil
	}
	c.zoomPending = false
	c.engine.Abort()
	for key := range messages.Texts {
		c.messenger.DeleteMessage(key)
	}
	hook := c.onDestroy
	c.listeners = make(map[string][]subscription)
	c.logger.Info("crop destroyed")
	c.mu.Unlock()

	if hook != nil {
		hook(c.id)
	}
}

func (c *Crop) ready() error {
	if c.destroyed {
		return ErrDestroyed
	}
	if !c.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (c *Crop) geometry() interaction.Geometry {
	return interaction.Geometry{Frame: c.frame, Policy: c.policy, Min: c.min}
}

// advise updates the quality advisories for the committed box.
func (c *Crop) advise(res solver.Result) {
	r := c.box.Snapshot()
	f, p := c.frame, c.policy

	messages.Set(c.messenger, messages.AreaTooSmall,
		f.ToNatural(r.W) < p.TargetW || f.ToNatural(r.H) < p.TargetH)
	messages.Set(c.messenger, messages.ImageTooSmall,
		f.NaturalW < p.MaxTargetW || f.NaturalH < p.MaxTargetH)
	messages.Set(c.messenger, messages.MinimalCrop, res.BelowMinimum)
}

func (c *Crop) listenersFor(name string) []Listener {
	subs := c.listeners[name]
	out := make([]Listener, len(subs))
	for i, s := range subs {
		out[i] = s.fn
	}
	return out
}

func (c *Crop) fire(ls []Listener, ev Event) {
	for _, fn := range ls {
		fn(ev)
	}
}
