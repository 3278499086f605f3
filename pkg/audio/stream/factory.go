// ABOUTME: Named stream factories tried newest-first
// ABOUTME: Lets applications plug in URL or archive sources next to plain files
package stream

import (
	"errors"
	"fmt"
	"sync"
)

// Factory opens a named stream. Returning ErrNotHandled passes the name on to
// the next registered factory. Factories are compared by value, so register
// pointer types or empty structs.
type Factory interface {
	Open(name string) (Stream, error)
}

// FileFactory opens names as local file paths
type FileFactory struct{}

// Open implements Factory
func (FileFactory) Open(name string) (Stream, error) {
	return OpenFile(name)
}

// Registry holds factories in registration order
type Registry struct {
	mu        sync.RWMutex
	factories []Factory
}

// NewRegistry creates a registry seeded with the given factories
func NewRegistry(factories ...Factory) *Registry {
	r := &Registry{}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// Register adds f unless it is already present
func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.factories {
		if existing == f {
			return
		}
	}
	r.factories = append(r.factories, f)
}

// Unregister removes f
func (r *Registry) Unregister(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.factories {
		if existing == f {
			r.factories = append(r.factories[:i], r.factories[i+1:]...)
			return
		}
	}
}

// Open asks factories from the most recently registered backwards
func (r *Registry) Open(name string) (Stream, error) {
	r.mu.RLock()
	factories := make([]Factory, len(r.factories))
	copy(factories, r.factories)
	r.mu.RUnlock()

	var lastErr error
	for i := len(factories) - 1; i >= 0; i-- {
		s, err := factories[i].Open(name)
		if err == nil {
			return s, nil
		}
		if errors.Is(err, ErrNotHandled) {
			continue
		}
		lastErr = err
		break
	}

	if lastErr == nil {
		lastErr = ErrNotHandled
	}
	return nil, fmt.Errorf("can not open %s: %w", name, lastErr)
}

// LoadMemory reads a whole stream into a MemoryStream
func LoadMemory(s Stream) (*MemoryStream, error) {
	c, err := s.NewCursor()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	data, err := ReadAll(c)
	if err != nil {
		return nil, fmt.Errorf("failed to cache stream: %w", err)
	}
	return NewMemoryStream(data), nil
}
