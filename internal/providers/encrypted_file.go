package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	vcrypto "github.com/systmms/credvault/internal/crypto"
	"github.com/systmms/credvault/internal/metrics"
	"github.com/systmms/credvault/internal/secure"
	"github.com/systmms/credvault/pkg/credential"
)

const (
	blobExtension = ".enc"
	blobFileMode  = 0o600 // owner read/write only
	storeDirMode  = 0o700
)

// keyNamePattern restricts credential keys to names that are safe as file
// names. Anything with a path separator or traversal sequence is rejected
// before it reaches the filesystem.
var keyNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// EncryptedFileConfig configures an EncryptedFileProvider.
type EncryptedFileConfig struct {
	// Dir is the store directory, one blob file per credential key.
	Dir string

	// KeySource says where the master key comes from. Construction fails
	// closed when the source yields no key.
	KeySource secure.KeySource

	// Iterations is the PBKDF2 work factor; zero selects the default.
	Iterations int
}

// EncryptedFileProvider stores each credential as an AES-256-GCM blob in a
// directory, encrypted under a key derived from the master key with a fresh
// salt per write. No plaintext value ever touches the disk, and the master
// key itself is never persisted.
type EncryptedFileProvider struct {
	name       string
	dir        string
	masterKey  *secure.MasterKey
	iterations int
	recorder   *metrics.Recorder

	// writeMu serializes writers within this process; cross-process
	// safety comes from the atomic temp+rename replace.
	writeMu sync.Mutex
}

// NewEncryptedFileProvider opens (creating if needed) the store directory
// and loads the master key. A missing or empty master key is a construction
// failure: the provider never degrades to plaintext storage.
func NewEncryptedFileProvider(name string, cfg EncryptedFileConfig) (*EncryptedFileProvider, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("encrypted file provider %s requires a storage directory", name)
	}
	if cfg.Iterations != 0 && cfg.Iterations < vcrypto.MinIterations {
		return nil, fmt.Errorf("encrypted file provider %s: kdf iterations %d below minimum %d",
			name, cfg.Iterations, vcrypto.MinIterations)
	}

	masterKey, err := cfg.KeySource.Load()
	if err != nil {
		return nil, credential.CapabilityError{
			Provider: name,
			Op:       "construct",
			Reason:   fmt.Sprintf("master key unavailable: %v", err),
		}
	}

	if err := os.MkdirAll(cfg.Dir, storeDirMode); err != nil {
		masterKey.Destroy()
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	// Tighten permissions on pre-existing directories.
	if err := os.Chmod(cfg.Dir, storeDirMode); err != nil {
		masterKey.Destroy()
		return nil, fmt.Errorf("failed to restrict store directory permissions: %w", err)
	}

	iterations := cfg.Iterations
	if iterations == 0 {
		iterations = vcrypto.DefaultIterations
	}

	return &EncryptedFileProvider{
		name:       name,
		dir:        cfg.Dir,
		masterKey:  masterKey,
		iterations: iterations,
		recorder:   metrics.NewRecorder(),
	}, nil
}

// Name returns the provider's identifier
func (p *EncryptedFileProvider) Name() string {
	return p.name
}

// Read loads and decrypts the blob for key. A missing blob is NotFoundError;
// a failed authentication tag is EncryptionError, so operators can tell a
// wrong master key from an absent credential. The manager decides where the
// two collapse for untrusted callers.
func (p *EncryptedFileProvider) Read(ctx context.Context, key string) (credential.Credential, error) {
	start := time.Now()
	defer func() {
		p.recorder.RecordProviderOperation(p.name, "read", time.Since(start).Seconds())
	}()

	path, err := p.blobPath(key)
	if err != nil {
		return credential.Credential{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return credential.Credential{}, credential.NotFoundError{Provider: p.name, Key: key}
		}
		return credential.Credential{}, fmt.Errorf("failed to read credential blob for %s: %w", key, err)
	}

	var blob vcrypto.Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		return credential.Credential{}, credential.EncryptionError{
			Op:  "decrypt",
			Key: key,
			Err: fmt.Errorf("corrupt blob envelope: %w", err),
		}
	}

	var plaintext []byte
	err = p.masterKey.With(func(master []byte) error {
		var openErr error
		plaintext, openErr = vcrypto.Open(master, &blob)
		return openErr
	})
	if err != nil {
		return credential.Credential{}, credential.EncryptionError{Op: "decrypt", Key: key, Err: err}
	}

	var value credential.Value
	if err := json.Unmarshal(plaintext, &value); err != nil {
		return credential.Credential{}, credential.ValidationError{
			Key:    key,
			Reason: "decrypted payload is not a JSON object",
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

// Write encrypts value under a fresh salt and nonce and replaces the blob
// atomically: the new blob is written to a temp file in the store directory,
// synced, then renamed over the old one. A crash mid-write leaves the
// previous blob intact.
func (p *EncryptedFileProvider) Write(ctx context.Context, key string, value credential.Value) error {
	start := time.Now()
	defer func() {
		p.recorder.RecordProviderOperation(p.name, "write", time.Since(start).Seconds())
	}()

	path, err := p.blobPath(key)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(value)
	if err != nil {
		return credential.ValidationError{Key: key, Reason: "value bundle is not JSON-encodable", Err: err}
	}

	var blob *vcrypto.Blob
	err = p.masterKey.With(func(master []byte) error {
		var sealErr error
		blob, sealErr = vcrypto.Seal(master, plaintext, p.iterations)
		return sealErr
	})
	if err != nil {
		return credential.EncryptionError{Op: "encrypt", Key: key, Err: err}
	}

	envelope, err := json.Marshal(blob)
	if err != nil {
		return credential.EncryptionError{Op: "encrypt", Key: key, Err: err}
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	tmp, err := os.CreateTemp(p.dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp blob for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if err := tmp.Chmod(blobFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict blob permissions for %s: %w", key, err)
	}
	if _, err := tmp.Write(envelope); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob for %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync blob for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace blob for %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob for key.
func (p *EncryptedFileProvider) Delete(ctx context.Context, key string) error {
	start := time.Now()
	defer func() {
		p.recorder.RecordProviderOperation(p.name, "delete", time.Since(start).Seconds())
	}()

	path, err := p.blobPath(key)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return credential.NotFoundError{Provider: p.name, Key: key}
		}
		return fmt.Errorf("failed to delete credential blob for %s: %w", key, err)
	}
	return nil
}

// List returns the keys of all blobs in the store directory.
func (p *EncryptedFileProvider) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, blobExtension) || strings.HasPrefix(name, ".") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, blobExtension))
	}
	return keys, nil
}

// Capabilities reports the provider as writable and persistent.
func (p *EncryptedFileProvider) Capabilities() credential.Capabilities {
	return credential.Capabilities{
		Writable:   true,
		Persistent: true,
	}
}

// Close destroys the in-memory master key. The provider is unusable
// afterwards.
func (p *EncryptedFileProvider) Close() {
	p.masterKey.Destroy()
}

func (p *EncryptedFileProvider) blobPath(key string) (string, error) {
	if !keyNamePattern.MatchString(key) {
		return "", credential.ValidationError{
			Key:    key,
			Reason: "key contains characters not allowed in a file-backed store",
		}
	}
	return filepath.Join(p.dir, key+blobExtension), nil
}

var _ credential.WritableProvider = (*EncryptedFileProvider)(nil)
