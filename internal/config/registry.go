package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/voicenav/pkg/browser"
	"github.com/MrWong99/voicenav/pkg/provider/stt"
	"github.com/MrWong99/voicenav/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned when a [ProviderEntry] names a
// provider no factory was registered for.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its configuration entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is the name-to-factory table of one provider kind.
type factories[T any] struct {
	kind string
	byID map[string]Factory[T]
}

func newFactories[T any](kind string) factories[T] {
	return factories[T]{kind: kind, byID: make(map[string]Factory[T])}
}

func (f factories[T]) create(entry ProviderEntry) (T, error) {
	build, ok := f.byID[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return build(entry)
}

func (f factories[T]) names() []string {
	out := make([]string, 0, len(f.byID))
	for n := range f.byID {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Registry resolves provider entries to constructed providers. Registering a
// name twice replaces the earlier factory. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	stt     factories[stt.Provider]
	tts     factories[tts.Provider]
	browser factories[browser.Backend]
}

// NewRegistry returns a registry with no factories.
func NewRegistry() *Registry {
	return &Registry{
		stt:     newFactories[stt.Provider]("stt"),
		tts:     newFactories[tts.Provider]("tts"),
		browser: newFactories[browser.Backend]("browser"),
	}
}

func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) {
	r.mu.Lock()
	r.stt.byID[name] = f
	r.mu.Unlock()
}

func (r *Registry) RegisterTTS(name string, f Factory[tts.Provider]) {
	r.mu.Lock()
	r.tts.byID[name] = f
	r.mu.Unlock()
}

func (r *Registry) RegisterBrowser(name string, f Factory[browser.Backend]) {
	r.mu.Lock()
	r.browser.byID[name] = f
	r.mu.Unlock()
}

// CreateSTT builds the speech-to-text engine entry names.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create(entry)
}

// CreateTTS builds the text-to-speech voice entry names.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create(entry)
}

// CreateBrowser builds the browser backend entry names.
func (r *Registry) CreateBrowser(entry ProviderEntry) (browser.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.browser.create(entry)
}

// Names lists the registered provider names per kind, sorted.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		r.stt.kind:     r.stt.names(),
		r.tts.kind:     r.tts.names(),
		r.browser.kind: r.browser.names(),
	}
}
