package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vcrypto "github.com/systmms/credvault/internal/crypto"
	"github.com/systmms/credvault/internal/secure"
	"github.com/systmms/credvault/pkg/credential"
)

func newFileProvider(t *testing.T, dir, master string) *EncryptedFileProvider {
	t.Helper()
	p, err := NewEncryptedFileProvider("file", EncryptedFileConfig{
		Dir:        dir,
		KeySource:  secure.KeySource{Type: "literal", Literal: master},
		Iterations: vcrypto.MinIterations,
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestEncryptedFileWriteReadRoundTrip(t *testing.T) {
	p := newFileProvider(t, t.TempDir(), "m")
	ctx := context.Background()

	value := credential.Value{"user": "a", "pass": "b"}
	require.NoError(t, p.Write(ctx, "db_pass", value))

	cred, err := p.Read(ctx, "db_pass")
	require.NoError(t, err)
	assert.Equal(t, "a", cred.Value["user"])
	assert.Equal(t, "b", cred.Value["pass"])
	assert.Equal(t, "file", cred.Source)
}

func TestEncryptedFileBlobOnDisk(t *testing.T) {
	dir := t.TempDir()
	p := newFileProvider(t, dir, "m")
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, "db_pass", credential.Value{"pass": "s3cr3t"}))

	path := filepath.Join(dir, "db_pass.enc")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// The plaintext never appears in the stored blob.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cr3t")
}

func TestEncryptedFileWrongMasterKey(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	writer := newFileProvider(t, dir, "right-key")
	require.NoError(t, writer.Write(ctx, "db_pass", credential.Value{"pass": "b"}))

	reader := newFileProvider(t, dir, "wrong-key")
	_, err := reader.Read(ctx, "db_pass")
	require.True(t, credential.IsEncryptionFailure(err), "wrong key must fail authentication, got %v", err)
	assert.False(t, credential.IsNotFound(err))
}

func TestEncryptedFileMissingKey(t *testing.T) {
	p := newFileProvider(t, t.TempDir(), "m")

	_, err := p.Read(context.Background(), "absent")
	require.True(t, credential.IsNotFound(err))
}

func TestEncryptedFileDelete(t *testing.T) {
	p := newFileProvider(t, t.TempDir(), "m")
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, "k", credential.Value{"v": "1"}))
	require.NoError(t, p.Delete(ctx, "k"))

	_, err := p.Read(ctx, "k")
	require.True(t, credential.IsNotFound(err))

	err = p.Delete(ctx, "k")
	require.True(t, credential.IsNotFound(err))
}

func TestEncryptedFileList(t *testing.T) {
	p := newFileProvider(t, t.TempDir(), "m")
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, "alpha", credential.Value{"v": "1"}))
	require.NoError(t, p.Write(ctx, "beta", credential.Value{"v": "2"}))

	keys, err := p.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, keys)
}

func TestEncryptedFileOverwriteFreshEnvelope(t *testing.T) {
	dir := t.TempDir()
	p := newFileProvider(t, dir, "m")
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, "k", credential.Value{"v": "1"}))
	first, err := os.ReadFile(filepath.Join(dir, "k.enc"))
	require.NoError(t, err)

	require.NoError(t, p.Write(ctx, "k", credential.Value{"v": "1"}))
	second, err := os.ReadFile(filepath.Join(dir, "k.enc"))
	require.NoError(t, err)

	// Same value, but a fresh salt and nonce per write.
	assert.NotEqual(t, first, second)
}

func TestEncryptedFileRejectsUnsafeKeys(t *testing.T) {
	p := newFileProvider(t, t.TempDir(), "m")
	ctx := context.Background()

	for _, key := range []string{"../escape", "a/b", ".hidden", ""} {
		_, err := p.Read(ctx, key)
		require.Error(t, err, "key %q", key)
		var ve credential.ValidationError
		assert.ErrorAs(t, err, &ve, "key %q", key)
	}
}

func TestEncryptedFileFailsClosedWithoutKey(t *testing.T) {
	_, err := NewEncryptedFileProvider("file", EncryptedFileConfig{
		Dir:       t.TempDir(),
		KeySource: secure.KeySource{Type: "literal", Literal: ""},
	})
	require.Error(t, err)
	var ce credential.CapabilityError
	require.ErrorAs(t, err, &ce)
}

func TestEncryptedFileCorruptEnvelope(t *testing.T) {
	dir := t.TempDir()
	p := newFileProvider(t, dir, "m")
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.enc"), []byte("not json"), 0o600))

	_, err := p.Read(ctx, "junk")
	require.True(t, credential.IsEncryptionFailure(err))
}
