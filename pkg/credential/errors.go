package credential

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is the opaque outcome exposed by the package-level accessor
// functions when a credential cannot be served. It deliberately covers both
// "no provider has the key" and "the blob exists but failed authentication",
// so an unauthenticated caller cannot use the error to probe which keys
// exist. The audit trail keeps the two cases distinct.
var ErrUnavailable = errors.New("credential unavailable")

// NotFoundError indicates that no provider holds the requested key and the
// caller supplied no default.
type NotFoundError struct {
	// Provider is the name of the provider reporting the miss, or empty
	// when the whole chain was exhausted.
	Provider string

	// Key is the credential key that could not be found.
	Key string
}

func (e NotFoundError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("credential not found: %s", e.Key)
	}
	return fmt.Sprintf("credential not found: %s in %s", e.Key, e.Provider)
}

// ValidationError indicates a value was present but malformed or rejected by
// a registered credential-type validator. The offending value is never
// included in the message.
type ValidationError struct {
	Key    string
	Type   string
	Reason string
	Err    error
}

func (e ValidationError) Error() string {
	msg := fmt.Sprintf("credential %s failed validation", e.Key)
	if e.Type != "" {
		msg += fmt.Sprintf(" for type %q", e.Type)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e ValidationError) Unwrap() error { return e.Err }

// EncryptionError indicates a decryption or authentication-tag failure in an
// encrypted provider. It is distinct from NotFoundError so operators can
// diagnose a wrong master key, but the exported accessors collapse both into
// ErrUnavailable before they reach untrusted callers.
type EncryptionError struct {
	// Op is the failing operation: "derive", "encrypt", "decrypt".
	Op  string
	Key string
	Err error
}

func (e EncryptionError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("credential encryption error during %s for %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("credential encryption error during %s: %v", e.Op, e.Err)
}

func (e EncryptionError) Unwrap() error { return e.Err }

// CapabilityError indicates an operation was requested that the configured
// providers do not support, such as writing when every provider in the chain
// is read-only, or constructing an encrypted provider without a usable
// master key.
type CapabilityError struct {
	Provider string
	Op       string
	Reason   string
}

func (e CapabilityError) Error() string {
	msg := fmt.Sprintf("operation %s not supported", e.Op)
	if e.Provider != "" {
		msg += " by provider " + e.Provider
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AccessDeniedError indicates the access controller rejected a request.
// EvaluatedLevel carries the level the policy granted, for diagnostics.
type AccessDeniedError struct {
	User           string
	Key            string
	Operation      string
	EvaluatedLevel string
}

func (e AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: user %s may not %s credential %s (granted level: %s)",
		e.User, e.Operation, e.Key, e.EvaluatedLevel)
}

// RateLimitError indicates the (user, key) pair exceeded the configured
// attempt threshold within the current window. Callers should back off for
// at least RetryAfter.
type RateLimitError struct {
	User       string
	Key        string
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for user %s on credential %s, retry after %s",
		e.User, e.Key, e.RetryAfter.Round(time.Millisecond))
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsEncryptionFailure reports whether err is an EncryptionError anywhere in
// its chain.
func IsEncryptionFailure(err error) bool {
	var ee EncryptionError
	return errors.As(err, &ee)
}
