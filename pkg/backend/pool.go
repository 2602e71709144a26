package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"pkgd/pkg/backend/detector"
)

// AutoSelect picks the backend native to the detected distribution.
const AutoSelect = "auto"

var (
	// ErrBackendNotFound is returned when no backend has the requested name.
	ErrBackendNotFound = errors.New("backend not found")

	// ErrBackendUnavailable is returned when a backend cannot run on this system.
	ErrBackendUnavailable = errors.New("backend not available on this system")

	// ErrNoBackend is returned when no backend has been selected.
	ErrNoBackend = errors.New("no backend selected")
)

// Pool holds the registered backends and the one selected to run jobs.
type Pool struct {
	backends map[string]Backend
	active   Backend
	mu       sync.RWMutex
}

// NewPool creates an empty backend pool.
func NewPool() *Pool {
	return &Pool{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend to the pool.
func (p *Pool) Register(b Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backends[b.Name()] = b
}

// Get returns a backend by name.
func (p *Pool) Get(name string) (Backend, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.backends[name]
	return b, ok
}

// All returns every registered backend sorted by name.
func (p *Pool) All() []Backend {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := make([]Backend, 0, len(p.backends))
	for _, b := range p.backends {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return all
}

// Available returns the registered backends that can run on this system.
func (p *Pool) Available() []Backend {
	var available []Backend
	for _, b := range p.All() {
		if b.IsAvailable() {
			available = append(available, b)
		}
	}
	return available
}

// Select makes the named backend active. AutoSelect detects the
// distribution and picks its native backend.
func (p *Pool) Select(name string) error {
	if name == AutoSelect || name == "" {
		detected, err := p.Detect()
		if err != nil {
			return err
		}
		name = detected
	}

	b, ok := p.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}
	if !b.IsAvailable() {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, name)
	}

	p.mu.Lock()
	p.active = b
	p.mu.Unlock()
	return nil
}

// Detect inspects the system and returns the name of its native backend.
func (p *Pool) Detect() (string, error) {
	info, err := detector.Detect()
	if err != nil {
		return "", fmt.Errorf("failed to detect system: %w", err)
	}

	name := info.NativeBackend()
	if name == "" {
		return "", fmt.Errorf("%w: no native backend for %s", ErrBackendNotFound, info.PrettyName)
	}
	return name, nil
}

// Active returns the selected backend, or nil before Select succeeds.
func (p *Pool) Active() Backend {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// SupportsParallelization reports whether the active backend can run more
// than one job at a time.
func (p *Pool) SupportsParallelization() bool {
	b := p.Active()
	return b != nil && b.SupportsParallelization()
}
