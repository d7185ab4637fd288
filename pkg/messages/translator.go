package messages

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// Translator translates messages into the current locale. Messages are keyed by
// their English text. A locale without a translation for a message consults its
// fallback locale; when the chain is exhausted the message is returned as is.
type Translator struct {
	mu        sync.RWMutex
	builder   *catalog.Builder
	known     map[language.Tag]map[string]bool
	fallbacks map[language.Tag]language.Tag
	locale    language.Tag
}

// NewTranslator creates a translator with locale "en" and no translations.
func NewTranslator() *Translator {
	return &Translator{
		builder:   catalog.NewBuilder(),
		known:     make(map[language.Tag]map[string]bool),
		fallbacks: make(map[language.Tag]language.Tag),
		locale:    language.English,
	}
}

// SetLocale sets the current locale, e.g. "de-CH".
func (t *Translator) SetLocale(locale string) error {
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	t.mu.Lock()
	t.locale = tag
	t.mu.Unlock()
	return nil
}

// Locale returns the current locale.
func (t *Translator) Locale() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locale.String()
}

// SetFallbacks replaces the fallback table, e.g. {"de-CH": "en"}.
func (t *Translator) SetFallbacks(fallbacks map[string]string) error {
	parsed := make(map[language.Tag]language.Tag, len(fallbacks))
	for from, to := range fallbacks {
		f, err := language.Parse(from)
		if err != nil {
			return fmt.Errorf("invalid fallback locale %q: %w", from, err)
		}
		tt, err := language.Parse(to)
		if err != nil {
			return fmt.Errorf("invalid fallback locale %q: %w", to, err)
		}
		parsed[f] = tt
	}
	t.mu.Lock()
	t.fallbacks = parsed
	t.mu.Unlock()
	return nil
}

// Add merges translations for locale into the catalog. Existing entries are overwritten.
func (t *Translator) Add(locale string, translations map[string]string) error {
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.known[tag] == nil {
		t.known[tag] = make(map[string]bool)
	}
	for msg, translated := range translations {
		if err := t.builder.SetString(tag, msg, translated); err != nil {
			return fmt.Errorf("add translation for %q: %w", msg, err)
		}
		t.known[tag][msg] = true
	}
	return nil
}

// Trans translates msg into the current locale.
func (t *Translator) Trans(msg string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.translate(msg, t.locale)
}

// Translate translates msg into locale. An unparsable locale returns msg.
func (t *Translator) Translate(msg, locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return msg
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.translate(msg, tag)
}

func (t *Translator) translate(msg string, tag language.Tag) string {
	seen := make(map[language.Tag]bool)
	for !seen[tag] {
		seen[tag] = true
		if t.known[tag][msg] {
			var out verbatim
			if err := t.builder.Context(tag, &out).Execute(msg); err == nil {
				return out.String()
			}
		}
		next, ok := t.fallbacks[tag]
		if !ok {
			break
		}
		tag = next
	}
	return msg
}

// verbatim renders catalog strings as they are; translations are not format strings.
type verbatim struct {
	strings.Builder
}

func (v *verbatim) Render(s string) { v.WriteString(s) }

func (v *verbatim) Arg(int) any { return nil }
