// Package access wraps the credential manager with pattern-based access
// control, per-identity rate limiting, and audit emission. No provider is
// consulted until a request has passed both the rate limiter and the active
// policy.
package access

import (
	"fmt"
	"path"
)

// Level is an access level. Levels form a total order: a rule granting
// WRITE authorizes READ operations as well.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelWrite
	LevelAdmin
)

// String returns the level's canonical name.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseLevel converts a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "none":
		return LevelNone, nil
	case "read":
		return LevelRead, nil
	case "write":
		return LevelWrite, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return LevelNone, fmt.Errorf("unknown access level %q", s)
	}
}

// Operation names a requested action on a credential.
type Operation string

const (
	OpRead   Operation = "read"
	OpList   Operation = "list"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
	OpAdmin  Operation = "admin"
)

// Level returns the minimum access level the operation requires. Unknown
// operations require admin, erring on the side of denial.
func (o Operation) Level() Level {
	switch o {
	case OpRead, OpList:
		return LevelRead
	case OpWrite, OpDelete:
		return LevelWrite
	case OpAdmin:
		return LevelAdmin
	default:
		return LevelAdmin
	}
}

// Rule grants at most Level to users matching UserPattern on credentials
// matching CredentialPattern. Patterns are glob-style; `*` matches any
// sequence.
type Rule struct {
	CredentialPattern string
	UserPattern       string
	Level             Level
}

// Policy is an ordered rule set. Evaluation is first-match-wins in
// declaration order: authors control precedence by ordering rules, not by
// any specificity inference. No matching rule means LevelNone: deny by
// default.
type Policy struct {
	rules []Rule
}

// NewPolicy validates every pattern and returns the policy. Pattern errors
// surface here, at configuration time, not during evaluation.
func NewPolicy(rules ...Rule) (*Policy, error) {
	for i, r := range rules {
		if _, err := path.Match(r.CredentialPattern, "probe"); err != nil {
			return nil, fmt.Errorf("rule %d: bad credential pattern %q: %w", i, r.CredentialPattern, err)
		}
		if _, err := path.Match(r.UserPattern, "probe"); err != nil {
			return nil, fmt.Errorf("rule %d: bad user pattern %q: %w", i, r.UserPattern, err)
		}
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Policy{rules: copied}, nil
}

// Evaluate returns the level the first matching rule grants for the
// (credentialKey, user) pair, or LevelNone when nothing matches.
func (p *Policy) Evaluate(credentialKey, user string) Level {
	for _, r := range p.rules {
		if matchPattern(r.CredentialPattern, credentialKey) && matchPattern(r.UserPattern, user) {
			return r.Level
		}
	}
	return LevelNone
}

// Rules returns a copy of the rule list, for diagnostics and config dumps.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

func matchPattern(pattern, name string) bool {
	// Patterns were validated at construction; an error here can only
	// mean no match.
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
