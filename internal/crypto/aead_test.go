package crypto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "simple value", plaintext: `{"user":"a","pass":"b"}`},
		{name: "empty object", plaintext: `{}`},
		{name: "binary-ish payload", plaintext: "\x00\x01\x02\xff"},
	}

	master := []byte("correct horse battery staple")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Seal(master, []byte(tt.plaintext), MinIterations)
			require.NoError(t, err)

			out, err := Open(master, blob)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, string(out))
		})
	}
}

func TestOpenWrongMasterKey(t *testing.T) {
	blob, err := Seal([]byte("m"), []byte(`{"user":"a"}`), MinIterations)
	require.NoError(t, err)

	_, err = Open([]byte("not-m"), blob)
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestOpenTamperedCiphertext(t *testing.T) {
	blob, err := Seal([]byte("m"), []byte(`{"user":"a"}`), MinIterations)
	require.NoError(t, err)

	blob.Ciphertext[0] ^= 0xff
	_, err = Open([]byte("m"), blob)
	require.ErrorIs(t, err, ErrAuthentication)
}

func TestSealFreshSaltAndNonce(t *testing.T) {
	master := []byte("m")
	first, err := Seal(master, []byte("same plaintext"), MinIterations)
	require.NoError(t, err)
	second, err := Seal(master, []byte("same plaintext"), MinIterations)
	require.NoError(t, err)

	assert.NotEqual(t, first.Salt, second.Salt)
	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestSealIterationFloor(t *testing.T) {
	_, err := Seal([]byte("m"), []byte("p"), MinIterations-1)
	require.Error(t, err)

	// Zero selects the default rather than failing.
	blob, err := Seal([]byte("m"), []byte("p"), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultIterations, blob.Iterations)
}

func TestBlobEnvelopeJSON(t *testing.T) {
	blob, err := Seal([]byte("m"), []byte(`{"k":"v"}`), MinIterations)
	require.NoError(t, err)

	data, err := json.Marshal(blob)
	require.NoError(t, err)

	var decoded Blob
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "pbkdf2-sha256", decoded.KDF)

	out, err := Open([]byte("m"), &decoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(out))
}

func TestOpenRejectsUnknownKDF(t *testing.T) {
	blob, err := Seal([]byte("m"), []byte("p"), MinIterations)
	require.NoError(t, err)

	blob.KDF = "scrypt"
	_, err = Open([]byte("m"), blob)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthentication)
}
