package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/voxrecap/pkg/audio"
	"github.com/MrWong99/voxrecap/pkg/provider/llm"
	"github.com/MrWong99/voxrecap/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// PlatformFunc returns the audio platform serving a room. Discord binds one
// platform to each guild; the local platform ignores the room.
type PlatformFunc func(roomID string) (audio.Platform, error)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	llm        map[string]func(ProviderEntry) (llm.Provider, error)
	recognizer map[string]func(RecognizerConfig) (stt.Model, error)
	audio      map[Platform]func(AudioConfig) (PlatformFunc, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:        make(map[string]func(ProviderEntry) (llm.Provider, error)),
		recognizer: make(map[string]func(RecognizerConfig) (stt.Model, error)),
		audio:      make(map[Platform]func(AudioConfig) (PlatformFunc, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterRecognizer registers a recognition model factory under name.
func (r *Registry) RegisterRecognizer(name string, factory func(RecognizerConfig) (stt.Model, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizer[name] = factory
}

// RegisterAudio registers an audio platform factory.
func (r *Registry) RegisterAudio(name Platform, factory func(AudioConfig) (PlatformFunc, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateRecognizer loads the recognition model registered under cfg.Name.
func (r *Registry) CreateRecognizer(cfg RecognizerConfig) (stt.Model, error) {
	r.mu.RLock()
	factory, ok := r.recognizer[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateAudio instantiates the audio platform registered under cfg.Platform.
func (r *Registry) CreateAudio(cfg AudioConfig) (PlatformFunc, error) {
	r.mu.RLock()
	factory, ok := r.audio[cfg.Platform]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, cfg.Platform)
	}
	return factory(cfg)
}

// LLMNames returns the registered LLM provider names, sorted.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llm))
	for n := range r.llm {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
