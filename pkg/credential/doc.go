// Package credential defines the core types and interfaces for credential
// providers in credvault.
//
// This package is the contract between the credential manager and the
// pluggable backends that store credential material. A backend implements
// Provider if it can read credentials, and WritableProvider if it can also
// write and delete them. The split is deliberate: whether a provider is
// writable is a configuration-time property, checked when the provider chain
// is assembled, not discovered through runtime failures.
//
// # Value bundles
//
// A credential is not a single string but a bundle of named fields; a
// database credential typically carries host, port, username and password
// together. The manager treats bundles as opaque: it never inspects or
// validates field names. Validation is opt-in, per credential type, and
// happens in the manager layer.
//
// # Error handling
//
// Providers report missing credentials with NotFoundError and decryption or
// authentication-tag failures with EncryptionError. The two must never be
// conflated by a provider: the manager decides at which API boundary they
// collapse into an opaque "unavailable" outcome.
//
// # Threading
//
// Provider implementations must be safe for concurrent use. The manager
// calls Read from multiple goroutines without external locking; providers
// guard their own backing store.
package credential
