package vectorstore

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider slugs to backends. It is populated once at
// startup and read-only afterwards, but locking keeps it safe if a
// backend is ever registered late.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a backend under its slug, replacing any previous one.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Slug()] = p
}

// Get returns the backend for a slug.
func (r *Registry) Get(slug string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, slug)
	}
	return p, nil
}

// Slugs lists registered backends in stable order.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slugs := make([]string, 0, len(r.providers))
	for slug := range r.providers {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Validate checks that every required slug has a backend registered.
// Called at startup so a misconfigured provider row fails fast instead
// of at first indexing.
func (r *Registry) Validate(required []string) error {
	for _, slug := range required {
		if _, err := r.Get(slug); err != nil {
			return err
		}
	}
	return nil
}
