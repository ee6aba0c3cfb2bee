// Package config loads the YAML configuration consumed by the credvault
// CLI. The library layer takes constructed values, not files; this package
// is the host-side loader that turns a credvault.yaml into those values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of a credvault.yaml.
type Config struct {
	Version   int              `yaml:"version"`
	Providers []ProviderConfig `yaml:"providers"`
	Cache     CacheConfig      `yaml:"cache"`
	Access    AccessConfig     `yaml:"access"`
	Audit     AuditConfig      `yaml:"audit"`
	Metrics   bool             `yaml:"metrics"`
	Debug     bool             `yaml:"debug"`
}

// ProviderConfig declares one provider in chain order. Order is
// significant: earlier providers shadow later ones.
type ProviderConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// CacheConfig bounds the credential cache.
type CacheConfig struct {
	// TTL is a Go duration string, e.g. "300s". Empty selects the
	// default; "0s" disables caching.
	TTL string `yaml:"ttl"`
}

// ParseTTL returns the configured TTL. Empty means zero (caller default);
// an explicit "0s" comes back negative so callers can distinguish
// "disabled" from "unset".
func (c CacheConfig) ParseTTL() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.TTL, err)
	}
	if d == 0 {
		return -1, nil
	}
	return d, nil
}

// AccessConfig declares the policy and rate limit.
type AccessConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Policy    []RuleConfig    `yaml:"policy"`
}

// RateLimitConfig bounds attempts per (user, key) per window.
type RateLimitConfig struct {
	Threshold int    `yaml:"threshold"`
	Window    string `yaml:"window"`
}

// ParseWindow returns the configured window duration, zero when unset.
func (c RateLimitConfig) ParseWindow() (time.Duration, error) {
	if c.Window == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Window)
	if err != nil {
		return 0, fmt.Errorf("invalid rate limit window %q: %w", c.Window, err)
	}
	return d, nil
}

// RuleConfig is one access rule. Rules apply first-match-wins in file
// order.
type RuleConfig struct {
	Credential string `yaml:"credential"`
	User       string `yaml:"user"`
	Level      string `yaml:"level"`
}

// AuditConfig locates the append-only audit log.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural requirements; provider-specific settings are
// validated by the provider factories at construction.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config declares no providers")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d has no name", i)
		}
		if p.Type == "" {
			return fmt.Errorf("provider %q has no type", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
	}

	if _, err := c.Cache.ParseTTL(); err != nil {
		return err
	}
	if _, err := c.Access.RateLimit.ParseWindow(); err != nil {
		return err
	}

	for i, r := range c.Access.Policy {
		if r.Credential == "" || r.User == "" {
			return fmt.Errorf("policy rule %d needs credential and user patterns", i)
		}
		switch r.Level {
		case "none", "read", "write", "admin":
		default:
			return fmt.Errorf("policy rule %d has unknown level %q", i, r.Level)
		}
	}
	return nil
}
