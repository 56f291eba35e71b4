package service

import "sync"

// Registry tracks the display names of currently-connected players. One
// mutex covers every reservation decision; the set stays small.
type Registry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]struct{}),
	}
}

// Reserve - atomically claims the name. Returns false when it is already
// held by a live session.
func (that *Registry) Reserve(name string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, taken := that.names[name]; taken {
		return false
	}

	that.names[name] = struct{}{}

	return true
}

// Release - frees the name. Idempotent.
func (that *Registry) Release(name string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.names, name)
}
