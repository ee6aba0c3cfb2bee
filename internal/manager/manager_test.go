package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vcrypto "github.com/systmms/credvault/internal/crypto"
	"github.com/systmms/credvault/internal/providers"
	"github.com/systmms/credvault/internal/secure"
	"github.com/systmms/credvault/pkg/credential"
)

// countingProvider wraps a provider and counts Read calls, so tests can
// assert that cache hits do not reach the chain.
type countingProvider struct {
	credential.WritableProvider
	reads atomic.Int64
}

func (p *countingProvider) Read(ctx context.Context, key string) (credential.Credential, error) {
	p.reads.Add(1)
	return p.WritableProvider.Read(ctx, key)
}

// failingProvider always errors, for chain-degradation tests.
type failingProvider struct{ name string }

func (p *failingProvider) Name() string { return p.name }
func (p *failingProvider) Read(ctx context.Context, key string) (credential.Credential, error) {
	return credential.Credential{}, errors.New("backend offline")
}
func (p *failingProvider) List(ctx context.Context) ([]string, error) {
	return nil, errors.New("backend offline")
}
func (p *failingProvider) Capabilities() credential.Capabilities {
	return credential.Capabilities{}
}

func newManager(t *testing.T, ttl time.Duration, chain ...credential.Provider) *Manager {
	t.Helper()
	m, err := New(Config{Providers: chain, CacheTTL: ttl})
	require.NoError(t, err)
	return m
}

func TestManagerWriteThenRead(t *testing.T) {
	m := newManager(t, time.Minute, providers.NewMemoryProvider("mem", nil))
	ctx := context.Background()

	value := credential.Value{"user": "a", "pass": "b"}
	require.NoError(t, m.Set(ctx, "db_pass", value))

	cred, err := m.Get(ctx, "db_pass")
	require.NoError(t, err)
	assert.Equal(t, "a", cred.Value["user"])
}

func TestManagerSetInvalidatesCache(t *testing.T) {
	m := newManager(t, time.Minute, providers.NewMemoryProvider("mem", nil))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", credential.Value{"v": "old"}))
	cred, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "old", cred.Value["v"])

	// The cached "old" entry must not survive the overwrite.
	require.NoError(t, m.Set(ctx, "k", credential.Value{"v": "new"}))
	cred, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", cred.Value["v"])
}

func TestManagerChainPrecedence(t *testing.T) {
	// Provider chain [env, encrypted-file]: env has no db_pass, the file
	// store does. The miss falls through, the hit is cached, and further
	// reads stay off the file provider until the TTL elapses.
	fileProvider, err := providers.NewEncryptedFileProvider("file", providers.EncryptedFileConfig{
		Dir:        t.TempDir(),
		KeySource:  secure.KeySource{Type: "literal", Literal: "m"},
		Iterations: vcrypto.MinIterations,
	})
	require.NoError(t, err)
	t.Cleanup(fileProvider.Close)

	ctx := context.Background()
	require.NoError(t, fileProvider.Write(ctx, "db_pass", credential.Value{"user": "a", "pass": "b"}))

	envProvider, err := providers.NewEnvProvider("env", "CVTEST_PRECEDENCE")
	require.NoError(t, err)
	counted := &countingProvider{WritableProvider: fileProvider}

	m := newManager(t, 300*time.Second, envProvider, counted)
	now := time.Now()
	m.Cache().SetClock(func() time.Time { return now })

	cred, err := m.Get(ctx, "db_pass")
	require.NoError(t, err)
	assert.Equal(t, "file", cred.Source)
	assert.Equal(t, "b", cred.Value["pass"])
	require.EqualValues(t, 1, counted.reads.Load())

	// Served from cache, not the provider.
	_, err = m.Get(ctx, "db_pass")
	require.NoError(t, err)
	assert.EqualValues(t, 1, counted.reads.Load())

	// Past the TTL the chain is consulted again.
	now = now.Add(301 * time.Second)
	_, err = m.Get(ctx, "db_pass")
	require.NoError(t, err)
	assert.EqualValues(t, 2, counted.reads.Load())
}

func TestManagerFirstProviderWins(t *testing.T) {
	first := providers.NewMemoryProvider("first", map[string]credential.Value{"k": {"v": "1"}})
	second := providers.NewMemoryProvider("second", map[string]credential.Value{"k": {"v": "2"}})

	m := newManager(t, -1, first, second)
	cred, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "first", cred.Source)
	assert.Equal(t, "1", cred.Value["v"])
}

func TestManagerProviderFailureFallsThrough(t *testing.T) {
	backup := providers.NewMemoryProvider("backup", map[string]credential.Value{"k": {"v": "1"}})
	m := newManager(t, -1, &failingProvider{name: "broken"}, backup)
	ctx := context.Background()

	// A failing provider does not mask a later hit.
	cred, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "backup", cred.Source)

	// With no hit anywhere, the remembered failure surfaces instead of a
	// plain not-found.
	_, err = m.Get(ctx, "missing")
	require.Error(t, err)
	assert.False(t, credential.IsNotFound(err))
}

func TestManagerGetMissing(t *testing.T) {
	m := newManager(t, -1, providers.NewMemoryProvider("mem", nil))
	_, err := m.Get(context.Background(), "missing")
	require.True(t, credential.IsNotFound(err))
}

func TestManagerGetOrDefault(t *testing.T) {
	m := newManager(t, -1, providers.NewMemoryProvider("mem", map[string]credential.Value{"present": {"v": "1"}}))
	ctx := context.Background()

	cred, err := m.GetOrDefault(ctx, "present", credential.Value{"v": "default"})
	require.NoError(t, err)
	assert.Equal(t, "1", cred.Value["v"])

	cred, err = m.GetOrDefault(ctx, "absent", credential.Value{"v": "default"})
	require.NoError(t, err)
	assert.Equal(t, "default", cred.Value["v"])
	assert.Equal(t, "default", cred.Source)
}

func TestManagerNoWritableProvider(t *testing.T) {
	envProvider, err := providers.NewEnvProvider("env", "CVTEST")
	require.NoError(t, err)

	m := newManager(t, -1, envProvider)
	err = m.Set(context.Background(), "k", credential.Value{"v": "1"})
	var ce credential.CapabilityError
	require.ErrorAs(t, err, &ce)

	err = m.Delete(context.Background(), "k")
	require.ErrorAs(t, err, &ce)
}

func TestManagerWritesGoToFirstWritable(t *testing.T) {
	envProvider, err := providers.NewEnvProvider("env", "CVTEST")
	require.NoError(t, err)
	memA := providers.NewMemoryProvider("mem_a", nil)
	memB := providers.NewMemoryProvider("mem_b", nil)

	m := newManager(t, -1, envProvider, memA, memB)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", credential.Value{"v": "1"}))

	_, err = memA.Read(ctx, "k")
	require.NoError(t, err)
	_, err = memB.Read(ctx, "k")
	require.True(t, credential.IsNotFound(err))
}

func TestManagerList(t *testing.T) {
	first := providers.NewMemoryProvider("first", map[string]credential.Value{
		"shared": {"v": "1"},
		"alpha":  {"v": "1"},
	})
	second := providers.NewMemoryProvider("second", map[string]credential.Value{
		"shared": {"v": "2"},
		"beta":   {"v": "2"},
	})

	m := newManager(t, -1, first, second, &failingProvider{name: "broken"})
	keys, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "shared"}, keys)
}

func TestManagerDuplicateProviderNames(t *testing.T) {
	_, err := New(Config{Providers: []credential.Provider{
		providers.NewMemoryProvider("mem", nil),
		providers.NewMemoryProvider("mem", nil),
	}})
	require.Error(t, err)
}

func TestManagerRequiresProviders(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
