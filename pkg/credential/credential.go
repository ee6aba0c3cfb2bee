package credential

import (
	"context"
	"time"
)

// Value is a credential value bundle: a mapping from field names to string
// values or nested mappings. The manager never interprets the contents.
type Value map[string]any

// Clone returns a shallow copy of the bundle. Nested maps are copied one
// level deep, which is enough to keep callers from mutating cached entries
// through the usual host/port/user/password shapes.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	for k, field := range v {
		if nested, ok := field.(map[string]any); ok {
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = field
	}
	return out
}

// Credential is a retrieved value bundle with its retrieval metadata.
//
// Source identifies the provider that produced the bundle and RetrievedAt
// records when it was read from that provider (not when it was served from
// cache). Type is the optional credential-type tag supplied by the caller;
// it is empty unless a typed lookup was requested.
type Credential struct {
	// Key is the credential's name within the manager.
	Key string

	// Value is the secret bundle. Never log this field; use
	// logging.Secret when a reference must appear in output.
	Value Value

	// Type is the optional credential-type tag (for example "database",
	// "oauth_token"). Validators are keyed by this tag.
	Type string

	// RetrievedAt is when the bundle was read from its provider.
	RetrievedAt time.Time

	// Source is the name of the provider that resolved the bundle.
	Source string
}

// Capabilities describes what a provider supports. The manager checks these
// when the chain is assembled so capability mismatches surface at
// configuration time.
type Capabilities struct {
	// Writable reports whether the provider accepts Write and Delete.
	// A provider advertising Writable must implement WritableProvider.
	Writable bool

	// Persistent reports whether values survive process restart.
	Persistent bool

	// CaseInsensitive reports whether the provider folds key case (the
	// environment provider uppercases keys; the file provider is
	// byte-exact).
	CaseInsensitive bool
}

// Provider is a read-capable credential source.
//
// Read returns the bundle stored under key, or NotFoundError if the provider
// has no entry. Decryption and integrity failures are EncryptionError, never
// NotFoundError. List returns every key the provider can currently see.
type Provider interface {
	// Name returns the provider's stable identifier, used in audit
	// events, error messages and the Credential.Source field.
	Name() string

	Read(ctx context.Context, key string) (Credential, error)
	List(ctx context.Context) ([]string, error)
	Capabilities() Capabilities
}

// WritableProvider is a provider that also supports writes and deletes.
//
// Write must be atomic with respect to concurrent readers: a reader observes
// either the previous bundle or the new one, never a partial write. Delete
// returns NotFoundError if the key does not exist.
type WritableProvider interface {
	Provider

	Write(ctx context.Context, key string, value Value) error
	Delete(ctx context.Context, key string) error
}
