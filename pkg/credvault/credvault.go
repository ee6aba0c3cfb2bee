// Package credvault assembles the credential manager, access controller and
// audit trail into one service, and hosts the process-wide default
// instance.
//
// The intended shape is dependency injection: construct a Service with New
// (or NewFromConfigFile) and pass it through your call graph. The
// package-level accessor functions are a thin cache over a single default
// instance, built lazily on first use, with Reset as the test-isolation
// hook. Independent instances for tests come from New directly; nothing in
// the package forces the singleton on you.
package credvault

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/credvault/internal/access"
	"github.com/systmms/credvault/internal/config"
	"github.com/systmms/credvault/internal/logging"
	"github.com/systmms/credvault/internal/manager"
	"github.com/systmms/credvault/internal/metrics"
	"github.com/systmms/credvault/internal/providers"
	"github.com/systmms/credvault/pkg/audit"
	"github.com/systmms/credvault/pkg/credential"
)

// PolicyRule declares one access rule in evaluation order. Level is one of
// "none", "read", "write", "admin".
type PolicyRule struct {
	Credential string
	User       string
	Level      string
}

// Options assembles a Service.
type Options struct {
	// Providers in chain order; earlier providers shadow later ones.
	Providers []credential.Provider

	// CacheTTL for fetched credentials. Zero selects the default;
	// negative disables caching.
	CacheTTL time.Duration

	// Policy rules, first-match-wins. An empty policy denies everything.
	Policy []PolicyRule

	// RateThreshold attempts per RateWindow per (user, key); zero values
	// select the defaults.
	RateThreshold int
	RateWindow    time.Duration

	// AuditLogger receives every access decision and operation outcome.
	// Nil selects an in-memory sink; production deployments should set
	// AuditPath or provide a durable logger.
	AuditLogger audit.Logger

	// AuditPath, when non-empty and AuditLogger is nil, opens an
	// append-only file logger at this path.
	AuditPath string

	// Metrics registers the Prometheus collectors on the default registry.
	// Off by default so library consumers pollute no registry they did not
	// ask for.
	Metrics bool

	Debug bool
}

// Service bundles a Manager and its Controller. All methods are safe for
// concurrent use.
type Service struct {
	manager    *manager.Manager
	controller *access.Controller
	auditLog   audit.Logger
}

// New constructs a Service from options. Capability and policy problems
// surface here rather than at first use.
func New(opts Options) (*Service, error) {
	if opts.Metrics {
		metrics.InitMetrics()
	}
	logger := logging.New(opts.Debug, false)

	mgr, err := manager.New(manager.Config{
		Providers: opts.Providers,
		CacheTTL:  opts.CacheTTL,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	auditLog := opts.AuditLogger
	if auditLog == nil {
		if opts.AuditPath != "" {
			fileLog, err := audit.NewFileLogger(opts.AuditPath)
			if err != nil {
				return nil, err
			}
			auditLog = fileLog
		} else {
			auditLog = audit.NewMemoryLogger()
		}
	}

	policy, err := buildPolicy(opts.Policy)
	if err != nil {
		return nil, err
	}

	controller, err := access.NewController(access.Config{
		Manager:       mgr,
		Audit:         auditLog,
		Policy:        policy,
		RateThreshold: opts.RateThreshold,
		RateWindow:    opts.RateWindow,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &Service{manager: mgr, controller: controller, auditLog: auditLog}, nil
}

// NewFromConfigFile loads a credvault.yaml and constructs the Service it
// describes, building providers through the registry.
func NewFromConfigFile(path string) (*Service, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	registry := providers.NewRegistry()
	chain := make([]credential.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := registry.CreateProvider(pc.Name, pc.Type, pc.Config)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
		}
		chain = append(chain, p)
	}

	ttl, err := cfg.Cache.ParseTTL()
	if err != nil {
		return nil, err
	}
	window, err := cfg.Access.RateLimit.ParseWindow()
	if err != nil {
		return nil, err
	}

	rules := make([]PolicyRule, 0, len(cfg.Access.Policy))
	for _, r := range cfg.Access.Policy {
		rules = append(rules, PolicyRule{Credential: r.Credential, User: r.User, Level: r.Level})
	}

	return New(Options{
		Providers:     chain,
		CacheTTL:      ttl,
		Policy:        rules,
		RateThreshold: cfg.Access.RateLimit.Threshold,
		RateWindow:    window,
		AuditPath:     cfg.Audit.Path,
		Metrics:       cfg.Metrics,
		Debug:         cfg.Debug,
	})
}

// Manager returns the underlying credential manager for trusted in-process
// callers that bypass access control (for example the migrator).
func (s *Service) Manager() *manager.Manager {
	return s.manager
}

// Controller returns the access controller.
func (s *Service) Controller() *access.Controller {
	return s.controller
}

// AuditLogger returns the audit sink, so batch tools running beside the
// service can record into the same trail.
func (s *Service) AuditLogger() audit.Logger {
	return s.auditLog
}

// GetCredential authorizes user for a read and returns the credential.
func (s *Service) GetCredential(ctx context.Context, user, key string) (credential.Credential, error) {
	return s.controller.GetCredential(ctx, user, key)
}

// GetCredentialOrDefault is GetCredential with a fallback value for
// chain-wide misses. Authorization still applies.
func (s *Service) GetCredentialOrDefault(ctx context.Context, user, key string, def credential.Value) (credential.Credential, error) {
	return s.controller.GetCredentialOrDefault(ctx, user, key, def)
}

// GetTypedCredential is GetCredential with a credential-type tag; a
// registered validator for the type must accept freshly fetched values.
func (s *Service) GetTypedCredential(ctx context.Context, user, key, credentialType string) (credential.Credential, error) {
	return s.controller.GetTypedCredential(ctx, user, key, credentialType)
}

// SetCredential authorizes user for a write and stores the bundle.
func (s *Service) SetCredential(ctx context.Context, user, key string, value credential.Value) error {
	return s.controller.SetCredential(ctx, user, key, value)
}

// DeleteCredential authorizes user for a delete and removes the key.
func (s *Service) DeleteCredential(ctx context.Context, user, key string) error {
	return s.controller.DeleteCredential(ctx, user, key)
}

// ListCredentials authorizes user for a list and returns the key union
// across providers.
func (s *Service) ListCredentials(ctx context.Context, user string) ([]string, error) {
	return s.controller.ListCredentials(ctx, user)
}

// SetPolicy swaps the active access policy at runtime. In-flight
// authorization decisions are unaffected.
func (s *Service) SetPolicy(rules []PolicyRule) error {
	policy, err := buildPolicy(rules)
	if err != nil {
		return err
	}
	s.controller.SetPolicy(policy)
	return nil
}

// RegisterValidator associates a predicate with a credential type.
func (s *Service) RegisterValidator(credentialType string, v func(credential.Value) bool) {
	s.manager.RegisterValidator(credentialType, v)
}

// RegisterSchemaValidator compiles a JSON Schema as the validator for a
// credential type.
func (s *Service) RegisterSchemaValidator(credentialType string, schemaJSON []byte) error {
	return s.manager.RegisterSchemaValidator(credentialType, schemaJSON)
}

// QueryAudit returns audit events matching the filter in chronological
// order.
func (s *Service) QueryAudit(filter audit.Filter, limit int) ([]audit.Event, error) {
	return s.auditLog.Query(filter, limit)
}

func buildPolicy(rules []PolicyRule) (*access.Policy, error) {
	accessRules := make([]access.Rule, 0, len(rules))
	for i, r := range rules {
		level, err := access.ParseLevel(r.Level)
		if err != nil {
			return nil, fmt.Errorf("policy rule %d: %w", i, err)
		}
		accessRules = append(accessRules, access.Rule{
			CredentialPattern: r.Credential,
			UserPattern:       r.User,
			Level:             level,
		})
	}
	return access.NewPolicy(accessRules...)
}

// opaqueError collapses "not found" and "decryption failure" into the
// single unavailable outcome for callers outside the trust boundary, so the
// error cannot be used as an existence oracle. The audit trail retains the
// distinction.
func opaqueError(err error) error {
	if err == nil {
		return nil
	}
	if credential.IsNotFound(err) || credential.IsEncryptionFailure(err) {
		return credential.ErrUnavailable
	}
	return err
}
