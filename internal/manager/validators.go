package manager

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/systmms/credvault/pkg/credential"
)

// Validator is a pure boolean check over a value bundle. Validators must not
// mutate the bundle and must be safe for concurrent calls.
type Validator func(value credential.Value) bool

// RegisterValidator associates a predicate with a credential-type tag. The
// predicate runs on typed gets and sets; it is not applied retroactively to
// entries already in the cache. Registering a second validator for the same
// type replaces the first.
func (m *Manager) RegisterValidator(credentialType string, v Validator) {
	m.valMu.Lock()
	m.validators[credentialType] = v
	m.valMu.Unlock()
}

// RegisterSchemaValidator compiles a JSON Schema and registers it as the
// validator for the type. The bundle is marshalled and checked against the
// schema; schema violations reject the value.
func (m *Manager) RegisterSchemaValidator(credentialType string, schemaJSON []byte) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("invalid schema for credential type %q: %w", credentialType, err)
	}

	m.RegisterValidator(credentialType, func(value credential.Value) bool {
		doc, err := json.Marshal(value)
		if err != nil {
			return false
		}
		result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
		if err != nil {
			return false
		}
		return result.Valid()
	})
	return nil
}

func (m *Manager) validate(key, credentialType string, value credential.Value) error {
	m.valMu.RLock()
	v, ok := m.validators[credentialType]
	m.valMu.RUnlock()

	if !ok || v(value) {
		return nil
	}
	return credential.ValidationError{
		Key:    key,
		Type:   credentialType,
		Reason: "value rejected by registered validator",
	}
}
