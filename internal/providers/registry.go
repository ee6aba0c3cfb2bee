package providers

import (
	"fmt"

	"github.com/systmms/credvault/internal/secure"
	"github.com/systmms/credvault/pkg/credential"
)

// Registry manages provider creation and registration
type Registry struct {
	factories map[string]ProviderFactory
}

// ProviderFactory creates a provider instance from configuration
type ProviderFactory func(name string, config map[string]interface{}) (credential.Provider, error)

// NewRegistry creates a new provider registry with built-in providers
func NewRegistry() *Registry {
	registry := &Registry{
		factories: make(map[string]ProviderFactory),
	}

	// Register built-in providers
	registry.RegisterFactory("env", NewEnvProviderFactory)
	registry.RegisterFactory("encrypted_file", NewEncryptedFileProviderFactory)
	registry.RegisterFactory("memory", NewMemoryProviderFactory)

	return registry
}

// RegisterFactory registers a provider factory for a given type
func (r *Registry) RegisterFactory(providerType string, factory ProviderFactory) {
	r.factories[providerType] = factory
}

// CreateProvider creates a provider instance from its type and raw config
func (r *Registry) CreateProvider(name, providerType string, config map[string]interface{}) (credential.Provider, error) {
	factory, exists := r.factories[providerType]
	if !exists {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return factory(name, config)
}

// SupportedTypes returns a list of supported provider types
func (r *Registry) SupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for providerType := range r.factories {
		types = append(types, providerType)
	}
	return types
}

// IsSupported checks if a provider type is supported
func (r *Registry) IsSupported(providerType string) bool {
	_, exists := r.factories[providerType]
	return exists
}

// Factory functions for built-in providers

// NewEnvProviderFactory creates an environment provider factory
func NewEnvProviderFactory(name string, config map[string]interface{}) (credential.Provider, error) {
	prefix, _ := config["prefix"].(string)
	return NewEnvProvider(name, prefix)
}

// NewEncryptedFileProviderFactory creates an encrypted file provider factory
func NewEncryptedFileProviderFactory(name string, config map[string]interface{}) (credential.Provider, error) {
	cfg := EncryptedFileConfig{}
	cfg.Dir, _ = config["dir"].(string)

	if iterations, ok := config["iterations"].(int); ok {
		cfg.Iterations = iterations
	}

	source, ok := config["master_key"].(map[string]interface{})
	if !ok {
		return nil, credential.CapabilityError{
			Provider: name,
			Op:       "construct",
			Reason:   "encrypted_file provider requires a master_key source",
		}
	}
	cfg.KeySource = secure.KeySource{
		Type:    stringValue(source, "source"),
		Env:     stringValue(source, "env"),
		Path:    stringValue(source, "path"),
		Service: stringValue(source, "service"),
		Account: stringValue(source, "account"),
		Literal: stringValue(source, "literal"),
	}

	return NewEncryptedFileProvider(name, cfg)
}

// NewMemoryProviderFactory creates a memory provider factory
func NewMemoryProviderFactory(name string, config map[string]interface{}) (credential.Provider, error) {
	seed := make(map[string]credential.Value)
	if values, ok := config["values"].(map[string]interface{}); ok {
		for key, raw := range values {
			if bundle, ok := raw.(map[string]interface{}); ok {
				seed[key] = credential.Value(bundle)
			}
		}
	}
	return NewMemoryProvider(name, seed), nil
}

func stringValue(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
