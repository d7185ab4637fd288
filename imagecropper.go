// Package imagecropper keeps track of crop widgets.
//
// A crop widget (pkg/cropper) owns the geometry of one crop rectangle laid
// over a displayed image: it resolves the target ratio, verifies every
// rectangle against the image bounds, drives pointer drags and wheel zoom and
// reports the crop in natural pixels. The Registry here is held by whoever
// hosts several widgets at once, such as the HTTP server.
//
// Basic usage:
//
//	reg := imagecropper.NewRegistry(messages.NewTranslator(), nil)
//	c, _ := reg.Create(cropper.Config{Target: &target})
//	if err := c.Load(1200, 800, 600, 400); err != nil {
//		log.Fatal(err)
//	}
//	c.Start("se", types.Pointer{X: 590, Y: 390})
//	c.Move(types.Pointer{X: 500, Y: 350})
//	out, _ := c.Stop(types.Pointer{X: 500, Y: 350})
//	fmt.Printf("%dx%d at %d,%d\n", out.Width, out.Height, out.X, out.Y)
package imagecropper

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/menta2k/image-cropper/pkg/analyzer"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/messages"
)

// Version of the image cropper library
const Version = "1.0.0"

// Registry maps crop ids to live widgets. Widgets remove themselves when
// destroyed.
type Registry struct {
	mu         sync.RWMutex
	items      map[string]*cropper.Crop
	translator *messages.Translator
	logger     *slog.Logger
}

// NewRegistry creates an empty registry. Advisories of created crops are
// translated with tr when it is not nil.
func NewRegistry(tr *messages.Translator, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		items:      make(map[string]*cropper.Crop),
		translator: tr,
		logger:     logger,
	}
}

// Create returns the crop registered under cfg.ID, or creates and registers a
// new one. The boolean reports whether a new crop was created.
func (r *Registry) Create(cfg cropper.Config) (*cropper.Crop, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.ID != "" {
		if c, ok := r.items[cfg.ID]; ok {
			return c, false
		}
	}

	c := cropper.New(cfg)
	c.SetLogger(r.logger)
	c.SetMessenger(messages.NewBoard(r.translator, r.logger))
	c.OnDestroy(r.Delete)
	r.items[c.ID()] = c
	r.logger.Debug("crop registered", "crop", c.ID())
	return c, true
}

// Get returns the crop with the given id.
func (r *Registry) Get(id string) (*cropper.Crop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	return c, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Delete forgets the crop without destroying it.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Destroy destroys the crop, which also removes it from the registry.
// It reports whether the id was known.
func (r *Registry) Destroy(id string) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	c.Destroy()
	r.Delete(id)
	return true
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered crops.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Translator returns the translator shared by the registered crops.
func (r *Registry) Translator() *messages.Translator {
	return r.translator
}

// LoadFitted loads c for an image of the given natural size displayed inside a
// maxW x maxH viewport. A zero bound leaves that side unconstrained.
func LoadFitted(c *cropper.Crop, info analyzer.ImageInfo, maxW, maxH int) error {
	dw, dh := analyzer.FitDisplay(info, maxW, maxH)
	return c.Load(float64(info.Width), float64(info.Height), dw, dh)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
