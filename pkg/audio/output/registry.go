// ABOUTME: Runtime registry of output backends
// ABOUTME: Backends register a factory under a name; the null backend is the default
package output

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a driver for cfg
type Factory func(cfg Config) Driver

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name, replacing any previous one
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New builds the backend registered under name. An empty name selects "null".
func New(name string, cfg Config) (Driver, error) {
	if name == "" {
		name = "null"
	}

	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownBackend)
	}
	return f(cfg.withDefaults()), nil
}

// Backends lists registered backend names in sorted order
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("null", func(cfg Config) Driver { return NewNull(cfg) })
	Register("wavfile", func(cfg Config) Driver { return NewWavFile(cfg) })
	Register("oto", func(cfg Config) Driver { return NewOto(cfg) })
	Register("malgo", func(cfg Config) Driver { return NewMalgo(cfg) })
	Register("portaudio", func(cfg Config) Driver { return NewPortAudio(cfg) })
	Register("pulse", func(cfg Config) Driver { return NewPulse(cfg) })
}
