package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/credvault/internal/logging"
	"github.com/systmms/credvault/internal/manager"
	"github.com/systmms/credvault/internal/metrics"
	"github.com/systmms/credvault/pkg/audit"
	"github.com/systmms/credvault/pkg/credential"
)

// Config assembles a Controller.
type Config struct {
	Manager *manager.Manager
	Audit   audit.Logger
	Policy  *Policy

	// RateThreshold and RateWindow configure the limiter; zero values
	// select the defaults.
	RateThreshold int
	RateWindow    time.Duration

	Logger *logging.Logger
}

// Controller authorizes requests before delegating to the manager. Each
// request moves REQUESTED -> rate check -> policy check -> delegation, or
// stops at DENIED; every outcome produces an audit event. The active policy
// is swappable at runtime without affecting in-flight decisions.
type Controller struct {
	manager  *manager.Manager
	audit    audit.Logger
	limiter  *RateLimiter
	logger   *logging.SecureLogger
	recorder *metrics.Recorder

	policyMu sync.RWMutex
	policy   *Policy
}

// NewController wires the controller. A nil policy denies everything until
// SetPolicy installs one; a nil audit logger is rejected because an
// unauditable controller defeats its purpose.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("controller requires a manager")
	}
	if cfg.Audit == nil {
		return nil, fmt.Errorf("controller requires an audit logger")
	}

	policy := cfg.Policy
	if policy == nil {
		policy, _ = NewPolicy() // empty: deny by default
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(false, false)
	}

	return &Controller{
		manager:  cfg.Manager,
		audit:    cfg.Audit,
		limiter:  NewRateLimiter(cfg.RateThreshold, cfg.RateWindow),
		logger:   logging.NewSecureLogger(logger, nil),
		recorder: metrics.NewRecorder(),
		policy:   policy,
	}, nil
}

// SetPolicy swaps the active policy. Decisions already past their policy
// check are unaffected.
func (c *Controller) SetPolicy(p *Policy) {
	if p == nil {
		p, _ = NewPolicy()
	}
	c.policyMu.Lock()
	c.policy = p
	c.policyMu.Unlock()
}

// RateLimiter exposes the limiter for test clock injection.
func (c *Controller) RateLimiter() *RateLimiter {
	return c.limiter
}

// Authorize checks the rate limit and the active policy for (user, key,
// op). On success the attempt is counted toward the rate window and an
// access-granted event is recorded. Failures return RateLimitError or
// AccessDeniedError after the corresponding audit event.
func (c *Controller) Authorize(user, key string, op Operation, requestContext map[string]string) error {
	if err := c.limiter.Check(user, key); err != nil {
		c.recorder.RecordAuthorization(string(op), "rate_limited")
		c.logEvent(audit.Event{
			EventType:     audit.EventRateLimited,
			User:          user,
			CredentialKey: key,
			Outcome:       audit.OutcomeDenied,
			Context:       withOperation(requestContext, op),
		})
		return err
	}

	c.policyMu.RLock()
	policy := c.policy
	c.policyMu.RUnlock()

	granted := policy.Evaluate(key, user)
	if granted < op.Level() {
		c.limiter.Record(user, key)
		c.recorder.RecordAuthorization(string(op), "denied")
		ctx := withOperation(requestContext, op)
		ctx["granted_level"] = granted.String()
		c.logEvent(audit.Event{
			EventType:     audit.EventAccessDenied,
			User:          user,
			CredentialKey: key,
			Outcome:       audit.OutcomeDenied,
			Context:       ctx,
		})
		return credential.AccessDeniedError{
			User:           user,
			Key:            key,
			Operation:      string(op),
			EvaluatedLevel: granted.String(),
		}
	}

	// Successful accesses count toward the window too; otherwise
	// repeated legitimate reads could enumerate credentials freely.
	c.limiter.Record(user, key)
	c.recorder.RecordAuthorization(string(op), "allowed")
	c.logEvent(audit.Event{
		EventType:     audit.EventAccessGranted,
		User:          user,
		CredentialKey: key,
		Outcome:       audit.OutcomeSuccess,
		Context:       withOperation(requestContext, op),
	})
	return nil
}

// GetCredential authorizes a read and delegates to the manager. The manager
// outcome is audited either way; manager errors are forwarded, never
// swallowed.
func (c *Controller) GetCredential(ctx context.Context, user, key string) (credential.Credential, error) {
	if err := c.Authorize(user, key, OpRead, nil); err != nil {
		return credential.Credential{}, err
	}
	cred, err := c.manager.Get(ctx, key)
	c.logOperation(audit.EventRead, user, key, err)
	return cred, err
}

// GetCredentialOrDefault is GetCredential, except a chain-wide miss returns
// def instead of an error. The authorization check is not relaxed: denied
// callers do not receive the default.
func (c *Controller) GetCredentialOrDefault(ctx context.Context, user, key string, def credential.Value) (credential.Credential, error) {
	if err := c.Authorize(user, key, OpRead, nil); err != nil {
		return credential.Credential{}, err
	}
	cred, err := c.manager.GetOrDefault(ctx, key, def)
	c.logOperation(audit.EventRead, user, key, err)
	return cred, err
}

// GetTypedCredential is GetCredential with a credential-type tag.
func (c *Controller) GetTypedCredential(ctx context.Context, user, key, credentialType string) (credential.Credential, error) {
	if err := c.Authorize(user, key, OpRead, map[string]string{"credential_type": credentialType}); err != nil {
		return credential.Credential{}, err
	}
	cred, err := c.manager.GetTyped(ctx, key, credentialType)
	c.logOperation(audit.EventRead, user, key, err)
	return cred, err
}

// SetCredential authorizes a write and delegates to the manager.
func (c *Controller) SetCredential(ctx context.Context, user, key string, value credential.Value) error {
	if err := c.Authorize(user, key, OpWrite, nil); err != nil {
		return err
	}
	err := c.manager.Set(ctx, key, value)
	c.logOperation(audit.EventWrite, user, key, err)
	return err
}

// DeleteCredential authorizes a delete and delegates to the manager.
func (c *Controller) DeleteCredential(ctx context.Context, user, key string) error {
	if err := c.Authorize(user, key, OpDelete, nil); err != nil {
		return err
	}
	err := c.manager.Delete(ctx, key)
	c.logOperation(audit.EventDelete, user, key, err)
	return err
}

// ListCredentials authorizes a list over the wildcard key and delegates.
func (c *Controller) ListCredentials(ctx context.Context, user string) ([]string, error) {
	if err := c.Authorize(user, "*", OpList, nil); err != nil {
		return nil, err
	}
	keys, err := c.manager.List(ctx)
	c.logOperation(audit.EventList, user, "", err)
	return keys, err
}

func (c *Controller) logOperation(eventType, user, key string, opErr error) {
	e := audit.Event{
		EventType:     eventType,
		User:          user,
		CredentialKey: key,
		Outcome:       audit.OutcomeSuccess,
	}
	if opErr != nil {
		e.Outcome = audit.OutcomeError
		// Error text is sanitized before it lands in the trail.
		e.Context = map[string]string{"error": c.logger.Sanitize(opErr.Error())}
	}
	c.logEvent(e)
}

func (c *Controller) logEvent(e audit.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := c.audit.Log(e); err != nil {
		// The operation itself already happened; losing the trail is
		// loud but not fatal to the caller.
		c.logger.Error("failed to write audit event %s for user %s: %v", e.EventType, e.User, err)
		c.recorder.RecordAuditEvent(audit.OutcomeError)
		return
	}
	c.recorder.RecordAuditEvent(e.Outcome)
}

func withOperation(requestContext map[string]string, op Operation) map[string]string {
	ctx := make(map[string]string, len(requestContext)+1)
	for k, v := range requestContext {
		ctx[k] = v
	}
	ctx["operation"] = string(op)
	return ctx
}
