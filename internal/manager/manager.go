// Package manager orchestrates the ordered provider chain and the TTL cache
// behind the application-facing get/set/delete/list surface. Provider order
// is significant: earlier providers shadow later ones, so an environment
// provider placed first can override encrypted-file values during local
// development.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/systmms/credvault/internal/cache"
	"github.com/systmms/credvault/internal/logging"
	"github.com/systmms/credvault/pkg/credential"
)

// DefaultCacheTTL bounds how long a fetched credential is served without
// consulting the providers again.
const DefaultCacheTTL = 5 * time.Minute

// Config assembles a Manager. Providers are consulted in slice order.
type Config struct {
	Providers []credential.Provider

	// CacheTTL for fetched credentials. Zero selects DefaultCacheTTL;
	// negative disables caching.
	CacheTTL time.Duration

	// Logger receives operational messages. Optional; defaults to a
	// non-debug stderr logger. All messages pass the sanitizer.
	Logger *logging.Logger
}

// Manager is the application-facing credential entry point. Safe for
// concurrent use from multiple goroutines.
type Manager struct {
	providers []credential.Provider
	writable  []credential.WritableProvider // chain order, writable only
	cache     *cache.Cache
	logger    *logging.SecureLogger

	valMu      sync.RWMutex
	validators map[string]Validator
}

// New builds a Manager and checks provider capabilities up front: a provider
// advertising Writable must actually implement WritableProvider, so
// capability mismatches surface at configuration time instead of as runtime
// surprises.
func New(cfg Config) (*Manager, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("manager requires at least one provider")
	}

	seen := make(map[string]bool, len(cfg.Providers))
	var writable []credential.WritableProvider
	for _, p := range cfg.Providers {
		if seen[p.Name()] {
			return nil, fmt.Errorf("duplicate provider name %q in chain", p.Name())
		}
		seen[p.Name()] = true

		if p.Capabilities().Writable {
			wp, ok := p.(credential.WritableProvider)
			if !ok {
				return nil, fmt.Errorf("provider %q advertises write capability but does not implement it", p.Name())
			}
			writable = append(writable, wp)
		}
	}

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(false, false)
	}

	return &Manager{
		providers:  cfg.Providers,
		writable:   writable,
		cache:      cache.New(ttl),
		logger:     logging.NewSecureLogger(logger, nil),
		validators: make(map[string]Validator),
	}, nil
}

// Cache exposes the manager's cache for test clock injection.
func (m *Manager) Cache() *cache.Cache {
	return m.cache
}

// Get returns the credential for key, serving from cache when fresh and
// otherwise querying providers in order. The first provider that has the
// key wins.
func (m *Manager) Get(ctx context.Context, key string) (credential.Credential, error) {
	return m.get(ctx, key, "")
}

// GetTyped is Get with a credential-type tag. If a validator is registered
// for the type, a freshly fetched value must pass it before it is returned
// or cached. Cache hits are not re-validated; validators do not apply
// retroactively to cached entries.
func (m *Manager) GetTyped(ctx context.Context, key, credentialType string) (credential.Credential, error) {
	return m.get(ctx, key, credentialType)
}

// GetOrDefault is Get, except a chain-wide miss returns def instead of
// NotFoundError. Provider failures other than not-found still surface.
func (m *Manager) GetOrDefault(ctx context.Context, key string, def credential.Value) (credential.Credential, error) {
	cred, err := m.get(ctx, key, "")
	if err != nil {
		if credential.IsNotFound(err) {
			return credential.Credential{Key: key, Value: def, Source: "default"}, nil
		}
		return credential.Credential{}, err
	}
	return cred, nil
}

func (m *Manager) get(ctx context.Context, key, credentialType string) (credential.Credential, error) {
	if cached, ok := m.cache.Get(key); ok {
		if credentialType != "" {
			cached.Type = credentialType
		}
		return cached, nil
	}

	var lastErr error
	for _, p := range m.providers {
		cred, err := p.Read(ctx, key)
		if err != nil {
			if credential.IsNotFound(err) {
				continue
			}
			// A later provider may still have the key; remember the
			// failure and surface it only if nothing succeeds.
			m.logger.Warn("provider %s failed reading %s: %v", p.Name(), key, err)
			lastErr = err
			continue
		}

		if credentialType != "" {
			cred.Type = credentialType
			if err := m.validate(key, credentialType, cred.Value); err != nil {
				return credential.Credential{}, err
			}
		}

		m.cache.Put(key, cred)
		return cred, nil
	}

	if lastErr != nil {
		return credential.Credential{}, lastErr
	}
	return credential.Credential{}, credential.NotFoundError{Key: key}
}

// Set writes the bundle to the first writable provider in the chain and
// invalidates the cache entry before returning, so a subsequent Get on any
// goroutine observes the new value.
func (m *Manager) Set(ctx context.Context, key string, value credential.Value) error {
	return m.SetTyped(ctx, key, value, "")
}

// SetTyped is Set with a credential-type tag; a registered validator for the
// type must accept the value before anything is written.
func (m *Manager) SetTyped(ctx context.Context, key string, value credential.Value, credentialType string) error {
	if credentialType != "" {
		if err := m.validate(key, credentialType, value); err != nil {
			return err
		}
	}

	wp, err := m.firstWritable("set")
	if err != nil {
		return err
	}
	if err := wp.Write(ctx, key, value); err != nil {
		return err
	}
	m.cache.Invalidate(key)
	return nil
}

// Delete removes the key from the first writable provider and invalidates
// the cache entry.
func (m *Manager) Delete(ctx context.Context, key string) error {
	wp, err := m.firstWritable("delete")
	if err != nil {
		return err
	}
	if err := wp.Delete(ctx, key); err != nil {
		return err
	}
	m.cache.Invalidate(key)
	return nil
}

// List returns the union of keys across all providers, sorted, duplicates
// collapsed. A provider whose List fails is skipped with a warning; the
// union is best-effort.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	union := make(map[string]struct{})
	for _, p := range m.providers {
		keys, err := p.List(ctx)
		if err != nil {
			m.logger.Warn("provider %s failed listing credentials: %v", p.Name(), err)
			continue
		}
		for _, k := range keys {
			union[k] = struct{}{}
		}
	}

	out := make([]string, 0, len(union))
	for k := range union {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// InvalidateCache drops the cache entry for key. Exposed for collaborators
// that mutate a backing store out of band.
func (m *Manager) InvalidateCache(key string) {
	m.cache.Invalidate(key)
}

// FlushCache drops every cached entry.
func (m *Manager) FlushCache() {
	m.cache.Flush()
}

func (m *Manager) firstWritable(op string) (credential.WritableProvider, error) {
	if len(m.writable) == 0 {
		return nil, credential.CapabilityError{
			Op:     op,
			Reason: "no writable provider in the chain",
		}
	}
	return m.writable[0], nil
}
