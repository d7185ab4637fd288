// Package messages renders keyed user-facing advisories such as
// "the crop area is too small". Each key is shown at most once until deleted.
package messages

import (
	"log/slog"
	"sync"
)

// Advisory keys.
const (
	AreaTooSmall             = "areaTooSmall"
	ImageTooSmall            = "imageTooSmall"
	MinimalCrop              = "minimalCrop"
	CouldNotDetectImageScale = "couldNotDetectImageScale"
)

// Texts holds the English text of every advisory. The English text is also the
// translation key.
var Texts = map[string]string{
	AreaTooSmall:             "The image quality may suffer as the crop area is too small!",
	ImageTooSmall:            "The image is too small and thereby the image quality may suffer!",
	MinimalCrop:              "Cannot keep the minimal crop data set for the area.",
	CouldNotDetectImageScale: "Could not detect the image width and height!",
}

// Messenger is the sink advisories are sent to.
type Messenger interface {
	RenderMessage(text, key string)
	DeleteMessage(key string)
}

// Message is one rendered advisory.
type Message struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Board is an in-memory Messenger. Messages keep their insertion order.
type Board struct {
	mu     sync.Mutex
	tr     *Translator
	logger *slog.Logger
	order  []string
	texts  map[string]string
}

// NewBoard creates an empty board. A nil translator leaves texts untranslated.
func NewBoard(tr *Translator, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{tr: tr, logger: logger, texts: make(map[string]string)}
}

// RenderMessage shows text under key. A key that is already shown is left alone.
func (b *Board) RenderMessage(text, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.texts[key]; ok {
		return
	}
	if b.tr != nil {
		text = b.tr.Trans(text)
	}
	b.texts[key] = text
	b.order = append(b.order, key)
	b.logger.Debug("message rendered", "key", key, "text", text)
}

// DeleteMessage removes the message under key, if any.
func (b *Board) DeleteMessage(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.texts[key]; !ok {
		return
	}
	delete(b.texts, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.logger.Debug("message deleted", "key", key)
}

// Has reports whether key is shown.
func (b *Board) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.texts[key]
	return ok
}

// Messages returns the shown messages in the order they were rendered.
func (b *Board) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Message, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, Message{Key: k, Text: b.texts[k]})
	}
	return out
}

// Clear removes every message.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = nil
	b.texts = make(map[string]string)
}

// Post renders the advisory registered under key.
func Post(m Messenger, key string) {
	if m == nil {
		return
	}
	m.RenderMessage(Texts[key], key)
}

// Set posts key when on is true and deletes it otherwise.
func Set(m Messenger, key string, on bool) {
	if m == nil {
		return
	}
	if on {
		Post(m, key)
		return
	}
	m.DeleteMessage(key)
}

// Discard is a Messenger that drops everything.
var Discard Messenger = discard{}

type discard struct{}

func (discard) RenderMessage(string, string) {}
func (discard) DeleteMessage(string)         {}
