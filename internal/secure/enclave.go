// Package secure holds the master key in protected memory for the lifetime
// of the process. The key is wrapped in a memguard enclave: encrypted at
// rest in memory, mlocked where the platform allows, and only decrypted for
// the duration of a key-derivation call.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrKeyDestroyed is returned when the master key is used after Destroy.
var ErrKeyDestroyed = errors.New("master key has been destroyed")

// MasterKey is the user-supplied secret from which per-blob encryption keys
// are derived. It is never persisted by this package; the enclave keeps the
// bytes encrypted while idle.
type MasterKey struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy and blocks use-after-destroy
	destroyed bool
}

// NewMasterKey copies key material into a protected enclave. The caller
// should zero its own copy afterwards; memguard.WipeBytes is convenient.
func NewMasterKey(material []byte) (*MasterKey, error) {
	if len(material) == 0 {
		return nil, errors.New("master key material is empty")
	}
	return &MasterKey{enclave: memguard.NewEnclave(material)}, nil
}

// With decrypts the key into a locked buffer, invokes fn with the raw bytes,
// and wipes the plaintext before returning. The bytes are only valid for the
// duration of the call; fn must not retain them.
func (k *MasterKey) With(fn func(key []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return ErrKeyDestroyed
	}

	locked, err := k.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy marks the key as unusable. Idempotent. The enclave's encrypted
// contents are left for garbage collection; call memguard.Purge at process
// exit for a full sweep.
func (k *MasterKey) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.destroyed {
		return
	}
	k.enclave = nil
	k.destroyed = true
}
