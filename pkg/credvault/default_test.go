package credvault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credvault/internal/providers"
	"github.com/systmms/credvault/pkg/credential"
)

func configureDefault(t *testing.T, policy []PolicyRule) {
	t.Helper()
	Reset()
	t.Cleanup(Reset)
	require.NoError(t, Configure(Options{
		Providers: []credential.Provider{providers.NewMemoryProvider("mem", map[string]credential.Value{
			"db_pass": {"user": "a", "pass": "b"},
		})},
		CacheTTL: -1,
		Policy:   policy,
	}))
}

func TestDefaultUnconfigured(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	_, err := Default()
	require.Error(t, err)

	_, err = GetCredential(context.Background(), "alice", "db_pass")
	require.Error(t, err)
}

func TestDefaultAccessors(t *testing.T) {
	configureDefault(t, allowAll)
	ctx := context.Background()

	cred, err := GetCredential(ctx, "alice", "db_pass")
	require.NoError(t, err)
	assert.Equal(t, "a", cred.Value["user"])

	require.NoError(t, SetCredential(ctx, "alice", "api_key", credential.Value{"value": "x"}))

	keys, err := ListCredentials(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, keys, "api_key")

	require.NoError(t, DeleteCredential(ctx, "alice", "api_key"))
}

func TestDefaultAccessorsOpaqueMisses(t *testing.T) {
	configureDefault(t, allowAll)

	// A missing credential comes back as the opaque unavailable error, not
	// as a typed not-found the caller could use to probe key existence.
	_, err := GetCredential(context.Background(), "alice", "absent")
	require.ErrorIs(t, err, credential.ErrUnavailable)
	assert.False(t, credential.IsNotFound(err))
}

func TestDefaultAccessDeniedStaysTyped(t *testing.T) {
	configureDefault(t, nil)

	// Authorization failures are not collapsed; the caller is told the
	// request was denied, just not whether the key exists.
	_, err := GetCredential(context.Background(), "guest", "db_pass")
	var denied credential.AccessDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestDefaultManagerAndController(t *testing.T) {
	configureDefault(t, allowAll)

	mgr, err := DefaultManager()
	require.NoError(t, err)
	require.NotNil(t, mgr)

	ctrl, err := DefaultController()
	require.NoError(t, err)
	require.NotNil(t, ctrl)

	// Both views share the same instance.
	svc, err := Default()
	require.NoError(t, err)
	assert.Same(t, svc.Manager(), mgr)
	assert.Same(t, svc.Controller(), ctrl)
}

func TestConfigureFrozenAfterFirstUse(t *testing.T) {
	configureDefault(t, allowAll)

	_, err := Default()
	require.NoError(t, err)

	err = Configure(Options{})
	require.Error(t, err)

	// Reset unfreezes.
	Reset()
	require.NoError(t, Configure(Options{}))
}
