// Package migrate moves credentials out of legacy plaintext files and into
// a managed provider. It is a one-shot batch tool: it depends on the
// manager, nothing depends on it, and it never deletes the source file.
package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/systmms/credvault/internal/logging"
	"github.com/systmms/credvault/internal/manager"
	"github.com/systmms/credvault/pkg/audit"
	"github.com/systmms/credvault/pkg/credential"
)

// Report summarizes one migration run. Migrated and Skipped hold credential
// keys; Errors holds per-key failure descriptions with secrets already
// redacted.
type Report struct {
	Migrated []string `json:"migrated"`
	Skipped  []string `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Migrator writes legacy credentials through a Manager. Re-running against
// an already-migrated target overwrites each key with the identical value,
// so retries are safe.
type Migrator struct {
	manager *manager.Manager
	audit   audit.Logger
	logger  *logging.SecureLogger
	user    string
}

// Config assembles a Migrator. Audit may be nil when no trail is wanted
// (dry runs in local tooling); User tags the audit events and defaults to
// "migrator".
type Config struct {
	Manager *manager.Manager
	Audit   audit.Logger
	Logger  *logging.Logger
	User    string
}

// New constructs a Migrator.
func New(cfg Config) (*Migrator, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("migrator requires a manager")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(false, false)
	}
	user := cfg.User
	if user == "" {
		user = "migrator"
	}
	return &Migrator{
		manager: cfg.Manager,
		audit:   cfg.Audit,
		logger:  logging.NewSecureLogger(logger, nil),
		user:    user,
	}, nil
}

// Migrate reads the legacy file at sourcePath and writes every recognized
// entry through the manager. With dryRun set, nothing is written and the
// report lists what a real run would do. The source file is left untouched
// either way.
func (m *Migrator) Migrate(ctx context.Context, sourcePath string, dryRun bool) (*Report, error) {
	entries, err := parseSource(sourcePath)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, e := range entries {
		if e.value == nil {
			m.logger.Warn("skipping %s: empty value", e.key)
			report.Skipped = append(report.Skipped, e.key)
			continue
		}
		if dryRun {
			m.logger.Info("would migrate %s", e.key)
			report.Migrated = append(report.Migrated, e.key)
			continue
		}
		if err := m.manager.Set(ctx, e.key, e.value); err != nil {
			m.logger.Error("failed to migrate %s: %v", e.key, err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", e.key, m.logger.Sanitize(err.Error())))
			continue
		}
		m.logger.Info("migrated %s", e.key)
		report.Migrated = append(report.Migrated, e.key)
	}

	m.logRun(sourcePath, dryRun, report)
	return report, nil
}

func (m *Migrator) logRun(sourcePath string, dryRun bool, report *Report) {
	if m.audit == nil {
		return
	}
	outcome := audit.OutcomeSuccess
	if len(report.Errors) > 0 {
		outcome = audit.OutcomeError
	}
	e := audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: audit.EventMigration,
		User:      m.user,
		Outcome:   outcome,
		Context: map[string]string{
			"source":   sourcePath,
			"dry_run":  fmt.Sprintf("%t", dryRun),
			"migrated": fmt.Sprintf("%d", len(report.Migrated)),
			"skipped":  fmt.Sprintf("%d", len(report.Skipped)),
			"errors":   fmt.Sprintf("%d", len(report.Errors)),
		},
	}
	if err := m.audit.Log(e); err != nil {
		m.logger.Error("failed to write migration audit event: %v", err)
	}
}

type entry struct {
	key   string
	value credential.Value
}

// parseSource reads a legacy credential file. YAML mappings are the primary
// format; anything that is not valid YAML falls back to flat KEY=VALUE
// lines, the common shape of .env exports.
func parseSource(path string) ([]entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return parseYAML(data)
	case ".env":
		return parseEnvLines(data)
	}
	if entries, err := parseYAML(data); err == nil {
		return entries, nil
	}
	return parseEnvLines(data)
}

func parseYAML(data []byte) ([]entry, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse source as YAML mapping: %w", err)
	}

	entries := make([]entry, 0, len(raw))
	for key, v := range raw {
		entries = append(entries, entry{key: key, value: toValue(v)})
	}
	sortEntries(entries)
	return entries, nil
}

func parseEnvLines(data []byte) ([]entry, error) {
	var entries []entry
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE", i+1)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", i+1)
		}
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		var value credential.Value
		if val != "" {
			value = credential.Value{"value": val}
		}
		entries = append(entries, entry{key: strings.ToLower(key), value: value})
	}
	sortEntries(entries)
	return entries, nil
}

// toValue normalizes a parsed YAML node into a credential value bundle.
// Mappings keep their fields; scalars become a single "value" field.
func toValue(v interface{}) credential.Value {
	switch typed := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		if len(typed) == 0 {
			return nil
		}
		return credential.Value(typed)
	case string:
		if typed == "" {
			return nil
		}
		return credential.Value{"value": typed}
	default:
		return credential.Value{"value": typed}
	}
}

// sortEntries fixes the write order so repeated runs report identically.
func sortEntries(entries []entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
}
