package secure

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/zalando/go-keyring"
)

// KeySource describes where the master key comes from. The encrypted file
// provider fails closed at construction when the configured source cannot
// produce key material: there is no plaintext fallback.
type KeySource struct {
	// Type is one of "env", "file", "keyring", "literal".
	Type string

	// Env is the environment variable name for type "env".
	Env string

	// Path is the key file path for type "file".
	Path string

	// Service and Account address the OS keyring entry for type
	// "keyring" (Secret Service on Linux, Keychain on macOS, Credential
	// Manager on Windows).
	Service string
	Account string

	// Literal holds inline key material for type "literal". Intended for
	// tests; configuration validation warns when it appears outside one.
	Literal string
}

// ErrNoKeyMaterial is returned when the configured source exists but yields
// an empty key.
var ErrNoKeyMaterial = errors.New("master key source produced no key material")

// Load resolves the source and seals the material into a MasterKey enclave.
// The intermediate plaintext copy is wiped before returning.
func (s KeySource) Load() (*MasterKey, error) {
	material, err := s.material()
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(material)

	if len(material) == 0 {
		return nil, ErrNoKeyMaterial
	}
	return NewMasterKey(material)
}

func (s KeySource) material() ([]byte, error) {
	switch s.Type {
	case "env":
		if s.Env == "" {
			return nil, errors.New("key source type env requires an environment variable name")
		}
		value, ok := os.LookupEnv(s.Env)
		if !ok {
			return nil, fmt.Errorf("master key environment variable %s is not set", s.Env)
		}
		return []byte(value), nil

	case "file":
		if s.Path == "" {
			return nil, errors.New("key source type file requires a path")
		}
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		// Key files commonly end in a newline that is not part of the key.
		return []byte(strings.TrimRight(string(data), "\r\n")), nil

	case "keyring":
		if s.Service == "" || s.Account == "" {
			return nil, errors.New("key source type keyring requires service and account")
		}
		secret, err := keyring.Get(s.Service, s.Account)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, fmt.Errorf("master key not found in OS keyring for %s/%s", s.Service, s.Account)
			}
			return nil, fmt.Errorf("failed to query OS keyring: %w", err)
		}
		return []byte(secret), nil

	case "literal":
		return []byte(s.Literal), nil

	default:
		return nil, fmt.Errorf("unknown master key source type %q", s.Type)
	}
}
