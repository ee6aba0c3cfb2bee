package providers

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/credvault/pkg/credential"
)

// MemoryProvider keeps credentials in a process-local map. It backs tests
// and short-lived tooling where persistence is unwanted; nothing survives
// process exit.
type MemoryProvider struct {
	name   string
	mu     sync.RWMutex
	values map[string]credential.Value
}

// NewMemoryProvider creates an in-memory provider, optionally seeded.
func NewMemoryProvider(name string, seed map[string]credential.Value) *MemoryProvider {
	values := make(map[string]credential.Value, len(seed))
	for k, v := range seed {
		values[k] = v.Clone()
	}
	return &MemoryProvider{name: name, values: values}
}

// Name returns the provider's identifier
func (p *MemoryProvider) Name() string {
	return p.name
}

// Read returns the stored bundle for key
func (p *MemoryProvider) Read(ctx context.Context, key string) (credential.Credential, error) {
	p.mu.RLock()
	value, ok := p.values[key]
	p.mu.RUnlock()

	if !ok {
		return credential.Credential{}, credential.NotFoundError{Provider: p.name, Key: key}
	}
	return credential.Credential{
		Key:         key,
		Value:       value.Clone(),
		RetrievedAt: time.Now(),
		Source:      p.name,
	}, nil
}

// Write stores a copy of the bundle under key
func (p *MemoryProvider) Write(ctx context.Context, key string, value credential.Value) error {
	p.mu.Lock()
	p.values[key] = value.Clone()
	p.mu.Unlock()
	return nil
}

// Delete removes key from the store
func (p *MemoryProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.values[key]; !ok {
		return credential.NotFoundError{Provider: p.name, Key: key}
	}
	delete(p.values, key)
	return nil
}

// List returns all stored keys
func (p *MemoryProvider) List(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	return keys, nil
}

// Capabilities reports the provider as writable but not persistent
func (p *MemoryProvider) Capabilities() credential.Capabilities {
	return credential.Capabilities{Writable: true}
}

var _ credential.WritableProvider = (*MemoryProvider)(nil)
