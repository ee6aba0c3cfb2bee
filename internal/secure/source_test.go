package secure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyBytes(t *testing.T, k *MasterKey) string {
	t.Helper()
	var out string
	require.NoError(t, k.With(func(key []byte) error {
		out = string(key)
		return nil
	}))
	return out
}

func TestKeySourceEnv(t *testing.T) {
	t.Setenv("CREDVAULT_TEST_MASTER", "from-env")

	k, err := KeySource{Type: "env", Env: "CREDVAULT_TEST_MASTER"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", keyBytes(t, k))
}

func TestKeySourceEnvMissing(t *testing.T) {
	_, err := KeySource{Type: "env", Env: "CREDVAULT_TEST_UNSET_VAR"}.Load()
	require.Error(t, err)
}

func TestKeySourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	k, err := KeySource{Type: "file", Path: path}.Load()
	require.NoError(t, err)
	// Trailing newline is not part of the key.
	assert.Equal(t, "from-file", keyBytes(t, k))
}

func TestKeySourceLiteral(t *testing.T) {
	k, err := KeySource{Type: "literal", Literal: "inline"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "inline", keyBytes(t, k))
}

func TestKeySourceEmptyMaterial(t *testing.T) {
	t.Setenv("CREDVAULT_TEST_EMPTY", "")
	tests := []struct {
		name   string
		source KeySource
	}{
		{name: "empty env var", source: KeySource{Type: "env", Env: "CREDVAULT_TEST_EMPTY"}},
		{name: "empty literal", source: KeySource{Type: "literal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.source.Load()
			require.ErrorIs(t, err, ErrNoKeyMaterial)
		})
	}
}

func TestKeySourceUnknownType(t *testing.T) {
	_, err := KeySource{Type: "hsm"}.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hsm")
}
