package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credvault/internal/manager"
	"github.com/systmms/credvault/internal/providers"
	"github.com/systmms/credvault/pkg/audit"
	"github.com/systmms/credvault/pkg/credential"
)

func newTestController(t *testing.T, policy *Policy, threshold int) (*Controller, *audit.MemoryLogger) {
	t.Helper()

	mgr, err := manager.New(manager.Config{
		Providers: []credential.Provider{
			providers.NewMemoryProvider("mem", map[string]credential.Value{
				"prod_db": {"user": "a", "pass": "b"},
			}),
		},
		CacheTTL: -1,
	})
	require.NoError(t, err)

	sink := audit.NewMemoryLogger()
	c, err := NewController(Config{
		Manager:       mgr,
		Audit:         sink,
		Policy:        policy,
		RateThreshold: threshold,
	})
	require.NoError(t, err)
	return c, sink
}

func mustPolicy(t *testing.T, rules ...Rule) *Policy {
	t.Helper()
	p, err := NewPolicy(rules...)
	require.NoError(t, err)
	return p
}

func lastEvent(t *testing.T, sink *audit.MemoryLogger) audit.Event {
	t.Helper()
	events := sink.Events()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func TestControllerDenyByDefault(t *testing.T) {
	c, sink := newTestController(t, nil, 0)

	err := c.Authorize("guest", "prod_db", OpRead, nil)
	var denied credential.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "guest", denied.User)
	assert.Equal(t, "none", denied.EvaluatedLevel)

	e := lastEvent(t, sink)
	assert.Equal(t, audit.EventAccessDenied, e.EventType)
	assert.Equal(t, audit.OutcomeDenied, e.Outcome)
	assert.Equal(t, "read", e.Context["operation"])
	assert.False(t, e.Timestamp.IsZero())
}

func TestControllerAdminCoversWrite(t *testing.T) {
	policy := mustPolicy(t, Rule{CredentialPattern: "prod_*", UserPattern: "admin", Level: LevelAdmin})
	c, sink := newTestController(t, policy, 0)

	require.NoError(t, c.Authorize("admin", "prod_db", OpWrite, nil))
	e := lastEvent(t, sink)
	assert.Equal(t, audit.EventAccessGranted, e.EventType)
	assert.Equal(t, audit.OutcomeSuccess, e.Outcome)

	err := c.Authorize("guest", "prod_db", OpRead, nil)
	var denied credential.AccessDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestControllerRateLimit(t *testing.T) {
	policy := mustPolicy(t, Rule{CredentialPattern: "*", UserPattern: "*", Level: LevelAdmin})
	c, sink := newTestController(t, policy, 2)

	require.NoError(t, c.Authorize("alice", "k", OpRead, nil))
	require.NoError(t, c.Authorize("alice", "k", OpRead, nil))

	err := c.Authorize("alice", "k", OpRead, nil)
	var rle credential.RateLimitError
	require.ErrorAs(t, err, &rle)

	e := lastEvent(t, sink)
	assert.Equal(t, audit.EventRateLimited, e.EventType)
	assert.Equal(t, audit.OutcomeDenied, e.Outcome)
}

func TestControllerDeniedAttemptsCount(t *testing.T) {
	c, _ := newTestController(t, nil, 2)

	// Two denials fill the window; the third failure is a rate limit, so
	// probing cannot continue at full speed just because it is denied.
	for i := 0; i < 2; i++ {
		err := c.Authorize("guest", "prod_db", OpRead, nil)
		var denied credential.AccessDeniedError
		require.ErrorAs(t, err, &denied)
	}
	err := c.Authorize("guest", "prod_db", OpRead, nil)
	var rle credential.RateLimitError
	require.ErrorAs(t, err, &rle)
}

func TestControllerGetDelegation(t *testing.T) {
	policy := mustPolicy(t, Rule{CredentialPattern: "*", UserPattern: "reader", Level: LevelRead})
	c, sink := newTestController(t, policy, 0)
	ctx := context.Background()

	cred, err := c.GetCredential(ctx, "reader", "prod_db")
	require.NoError(t, err)
	assert.Equal(t, "b", cred.Value["pass"])

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventAccessGranted, events[0].EventType)
	assert.Equal(t, audit.EventRead, events[1].EventType)
	assert.Equal(t, audit.OutcomeSuccess, events[1].Outcome)
}

func TestControllerGetMissingAudited(t *testing.T) {
	policy := mustPolicy(t, Rule{CredentialPattern: "*", UserPattern: "*", Level: LevelRead})
	c, sink := newTestController(t, policy, 0)

	_, err := c.GetCredential(context.Background(), "reader", "absent")
	require.True(t, credential.IsNotFound(err))

	e := lastEvent(t, sink)
	assert.Equal(t, audit.EventRead, e.EventType)
	assert.Equal(t, audit.OutcomeError, e.Outcome)
	assert.NotEmpty(t, e.Context["error"])
}

func TestControllerGetOrDefault(t *testing.T) {
	policy := mustPolicy(t, Rule{CredentialPattern: "*", UserPattern: "reader", Level: LevelRead})
	c, _ := newTestController(t, policy, 0)
	ctx := context.Background()

	cred, err := c.GetCredentialOrDefault(ctx, "reader", "absent", credential.Value{"v": "fallback"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", cred.Value["v"])

	// The fallback does not bypass authorization.
	_, err = c.GetCredentialOrDefault(ctx, "stranger", "absent", credential.Value{"v": "fallback"})
	var denied credential.AccessDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestControllerWriteRequiresWriteLevel(t *testing.T) {
	policy := mustPolicy(t, Rule{CredentialPattern: "*", UserPattern: "reader", Level: LevelRead})
	c, _ := newTestController(t, policy, 0)
	ctx := context.Background()

	err := c.SetCredential(ctx, "reader", "prod_db", credential.Value{"v": "1"})
	var denied credential.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "write", denied.Operation)
	assert.Equal(t, "read", denied.EvaluatedLevel)
}

func TestControllerSetDeleteListDelegation(t *testing.T) {
	policy := mustPolicy(t, Rule{CredentialPattern: "*", UserPattern: "admin", Level: LevelAdmin})
	c, sink := newTestController(t, policy, 0)
	ctx := context.Background()

	require.NoError(t, c.SetCredential(ctx, "admin", "new_key", credential.Value{"v": "1"}))

	keys, err := c.ListCredentials(ctx, "admin")
	require.NoError(t, err)
	assert.Contains(t, keys, "new_key")

	require.NoError(t, c.DeleteCredential(ctx, "admin", "new_key"))

	var types []string
	for _, e := range sink.Events() {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, audit.EventWrite)
	assert.Contains(t, types, audit.EventList)
	assert.Contains(t, types, audit.EventDelete)
}

func TestControllerSetPolicySwap(t *testing.T) {
	c, _ := newTestController(t, nil, 0)

	err := c.Authorize("alice", "k", OpRead, nil)
	require.Error(t, err)

	c.SetPolicy(mustPolicy(t, Rule{CredentialPattern: "*", UserPattern: "alice", Level: LevelRead}))
	require.NoError(t, c.Authorize("alice", "k", OpRead, nil))
}

func TestControllerRequiresAuditSink(t *testing.T) {
	mgr, err := manager.New(manager.Config{
		Providers: []credential.Provider{providers.NewMemoryProvider("mem", nil)},
	})
	require.NoError(t, err)

	_, err = NewController(Config{Manager: mgr})
	require.Error(t, err)
}

func TestControllerRateWindowRecovery(t *testing.T) {
	policy := mustPolicy(t, Rule{CredentialPattern: "*", UserPattern: "*", Level: LevelRead})
	c, _ := newTestController(t, policy, 1)

	now := time.Now()
	c.RateLimiter().SetClock(func() time.Time { return now })

	require.NoError(t, c.Authorize("alice", "k", OpRead, nil))
	require.Error(t, c.Authorize("alice", "k", OpRead, nil))

	now = now.Add(DefaultRateWindow + time.Second)
	require.NoError(t, c.Authorize("alice", "k", OpRead, nil))
}
