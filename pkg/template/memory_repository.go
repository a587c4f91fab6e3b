package template

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and development.
type MemoryRepository struct {
	mu        sync.RWMutex
	templates map[templateKey]Template
}

type templateKey struct {
	code     string
	channel  string
	language string
}

// NewMemoryRepository creates an empty in-memory template repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{templates: make(map[templateKey]Template)}
}

// Put stores or replaces a template under its (code, channel, language) key.
func (r *MemoryRepository) Put(tmpl Template) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[templateKey{tmpl.Code, tmpl.Channel, tmpl.Language}] = tmpl
}

// Template returns the active template for the key, or ErrTemplateNotFound.
// Inactive templates are invisible, matching the production repository.
func (r *MemoryRepository) Template(ctx context.Context, code, channel, language string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[templateKey{code, channel, language}]
	if !ok || !tmpl.Active {
		return nil, ErrTemplateNotFound
	}
	return &tmpl, nil
}
