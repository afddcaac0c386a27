// Package contract models enforceable audit rules: regex and path
// predicates matched against a directory tree or an in-memory proposed
// file state, loaded from project and user sources with precedence.
package contract

import (
	"fmt"
	"regexp"
)

// RuleType is the closed set of rule kinds.
type RuleType string

const (
	ForbidPattern   RuleType = "forbid_pattern"
	RequirePattern  RuleType = "require_pattern"
	FileExists      RuleType = "file_exists"
	FileNotExists   RuleType = "file_not_exists"
	FileContains    RuleType = "file_contains"
	FileNotContains RuleType = "file_not_contains"
)

// ruleTypes lists every valid rule type.
var ruleTypes = map[RuleType]bool{
	ForbidPattern: true, RequirePattern: true,
	FileExists: true, FileNotExists: true,
	FileContains: true, FileNotContains: true,
}

// NeedsPattern reports whether the type carries a pattern: a regex for the
// pattern rules, a literal string for the contains rules.
func (t RuleType) NeedsPattern() bool {
	switch t {
	case ForbidPattern, RequirePattern, FileContains, FileNotContains:
		return true
	}
	return false
}

// regexBased reports whether the pattern field compiles as a regex.
func (t RuleType) regexBased() bool {
	return t == ForbidPattern || t == RequirePattern
}

// Severity ranks a rule's violations.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ruleIDPattern constrains rule identifiers.
var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,63}$`)

// Rule is the matching core of a contract.
type Rule struct {
	ID        string
	Type      RuleType
	Severity  Severity
	Pattern   string // regex or literal; empty when the type takes none
	FileGlob  string
	Message   string
	Rationale string
}

// AuditSource identifies the audit a contract was distilled from.
type AuditSource struct {
	ID    string
	Slug  string
	Date  string
	Phase int
}

// Contract is a persisted, versioned rule with provenance.
type Contract struct {
	Version     int
	Enabled     bool
	CreatedAt   string
	AuditSource AuditSource
	Rule        Rule

	// compiled artifacts, populated on first use
	regex *regexp.Regexp
	glob  *Glob
}

// Validate checks the rule against the model invariants. It returns the
// first problem found.
func (c *Contract) Validate() error {
	r := &c.Rule
	if !ruleIDPattern.MatchString(r.ID) {
		return fmt.Errorf("invalid rule id %q", r.ID)
	}
	if !ruleTypes[r.Type] {
		return fmt.Errorf("rule %s: unknown type %q", r.ID, r.Type)
	}
	if r.Type.NeedsPattern() && r.Pattern == "" {
		return fmt.Errorf("rule %s: type %s requires a pattern", r.ID, r.Type)
	}
	if !r.Type.NeedsPattern() && r.Pattern != "" {
		return fmt.Errorf("rule %s: type %s takes no pattern", r.ID, r.Type)
	}
	if r.Type.regexBased() {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
	}
	if r.FileGlob == "" {
		return fmt.Errorf("rule %s: file_glob is required", r.ID)
	}
	if r.Severity != SeverityError && r.Severity != SeverityWarning {
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	}
	if r.Message == "" {
		return fmt.Errorf("rule %s: message is required", r.ID)
	}
	return nil
}

// Regex returns the compiled pattern, caching the result.
func (c *Contract) Regex() (*regexp.Regexp, error) {
	if c.regex != nil {
		return c.regex, nil
	}
	re, err := regexp.Compile(c.Rule.Pattern)
	if err != nil {
		return nil, err
	}
	c.regex = re
	return re, nil
}

// Glob returns the precompiled glob matcher, caching the result.
func (c *Contract) GlobMatcher() (*Glob, error) {
	if c.glob != nil {
		return c.glob, nil
	}
	g, err := CompileGlob(c.Rule.FileGlob)
	if err != nil {
		return nil, err
	}
	c.glob = g
	return g, nil
}

// Violation is one instance of a rule broken on a file.
type Violation struct {
	RuleID  string `json:"rule_id"`
	Path    string `json:"path"`
	Line    int    `json:"line,omitempty"` // 1-based; 0 = whole file
	Matched string `json:"matched,omitempty"`
	Message string `json:"message"`
}

// CheckResult is the outcome of checking one contract.
type CheckResult struct {
	Contract   *Contract
	Passed     bool
	Violations []Violation
}
