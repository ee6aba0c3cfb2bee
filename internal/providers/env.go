package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/systmms/credvault/pkg/credential"
)

// EnvProvider reads credentials from process environment variables.
//
// A credential key maps to the variable {PREFIX}_{KEY} with the key
// uppercased, holding a JSON-encoded value bundle. The provider is read-only
// by design: writing to the process environment is not a supported way to
// store secrets, and Write/Delete are not offered at the type level.
type EnvProvider struct {
	name   string
	prefix string
}

// NewEnvProvider creates an environment provider with the given variable
// prefix, e.g. prefix "CREDVAULT" resolves key "db_pass" from
// CREDVAULT_DB_PASS.
func NewEnvProvider(name, prefix string) (*EnvProvider, error) {
	if prefix == "" {
		return nil, fmt.Errorf("env provider %s requires a variable prefix", name)
	}
	return &EnvProvider{name: name, prefix: strings.ToUpper(prefix)}, nil
}

// Name returns the provider's identifier
func (p *EnvProvider) Name() string {
	return p.name
}

// Read resolves key from {PREFIX}_{KEY}. The stored value must be a JSON
// object; anything else is a validation failure, not a miss.
func (p *EnvProvider) Read(ctx context.Context, key string) (credential.Credential, error) {
	raw, ok := os.LookupEnv(p.variableFor(key))
	if !ok {
		return credential.Credential{}, credential.NotFoundError{Provider: p.name, Key: key}
	}

	var value credential.Value
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return credential.Credential{}, credential.ValidationError{
			Key:    key,
			Reason: fmt.Sprintf("environment variable %s does not hold a JSON object", p.variableFor(key)),
			Err:    err,
		}
	}

	return credential.Credential{
		Key:         key,
		Value:       value,
		RetrievedAt: time.Now(),
		Source:      p.name,
	}, nil
}

// List returns the keys of all variables carrying the provider's prefix.
// Keys come back uppercased, matching how this provider folds case.
func (p *EnvProvider) List(ctx context.Context) ([]string, error) {
	prefix := p.prefix + "_"
	var keys []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		if key := strings.TrimPrefix(name, prefix); key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Capabilities reports the provider as read-only and case-folding.
func (p *EnvProvider) Capabilities() credential.Capabilities {
	return credential.Capabilities{
		Writable:        false,
		Persistent:      false,
		CaseInsensitive: true,
	}
}

func (p *EnvProvider) variableFor(key string) string {
	return p.prefix + "_" + strings.ToUpper(key)
}

var _ credential.Provider = (*EnvProvider)(nil)
