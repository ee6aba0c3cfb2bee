// Package crypto implements the at-rest encryption used by the encrypted
// file provider: PBKDF2-SHA256 key derivation from a master key plus
// AES-256-GCM authenticated encryption. Each sealed blob carries its own
// random salt and nonce, so no salt or nonce is ever reused across writes,
// even for the same credential key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLength is the per-blob salt size in bytes (128-bit).
	SaltLength = 16

	// KeyLength is the derived AES key size in bytes (AES-256).
	KeyLength = 32

	// DefaultIterations is the PBKDF2 work factor used when the store
	// configuration does not set one. Chosen high enough that offline
	// guessing of the master key is expensive.
	DefaultIterations = 210_000

	// MinIterations is the floor below which configuration is rejected.
	MinIterations = 10_000

	kdfName = "pbkdf2-sha256"
)

// ErrAuthentication indicates the GCM tag check failed: either the blob was
// tampered with or the master key is wrong. The two are indistinguishable by
// construction.
var ErrAuthentication = errors.New("message authentication failed")

// Blob is the serialized envelope for one encrypted credential. The []byte
// fields round-trip through JSON as base64.
type Blob struct {
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// DeriveKey stretches the master key with the blob's salt. Intentionally
// CPU-expensive; callers on latency-sensitive paths should cache decrypted
// values, not derived keys.
func DeriveKey(master, salt []byte, iterations int) []byte {
	return pbkdf2.Key(master, salt, iterations, KeyLength, sha256.New)
}

// Seal encrypts plaintext under a key derived from master and a fresh random
// salt, with a fresh random nonce.
func Seal(master, plaintext []byte, iterations int) (*Blob, error) {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("kdf iteration count %d below minimum %d", iterations, MinIterations)
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newAEAD(master, salt, iterations)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &Blob{
		KDF:        kdfName,
		Iterations: iterations,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open decrypts a blob with a key derived from master and the blob's stored
// salt. Returns ErrAuthentication when the tag check fails; the GCM Open
// compares tags in constant time.
func Open(master []byte, b *Blob) ([]byte, error) {
	if b.KDF != kdfName {
		return nil, fmt.Errorf("unsupported kdf %q", b.KDF)
	}
	if len(b.Salt) == 0 {
		return nil, errors.New("blob has no salt")
	}

	aead, err := newAEAD(master, b.Salt, b.Iterations)
	if err != nil {
		return nil, err
	}
	if len(b.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(b.Nonce))
	}

	plaintext, err := aead.Open(nil, b.Nonce, b.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newAEAD(master, salt []byte, iterations int) (cipher.AEAD, error) {
	key := DeriveKey(master, salt, iterations)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gcm: %w", err)
	}
	return aead, nil
}
