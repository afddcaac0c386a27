package enforce

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phaserhq/phaser/internal/contract"
)

// SeverityFilter selects which rule severities the gate enforces.
type SeverityFilter string

const (
	FilterError   SeverityFilter = "error"
	FilterWarning SeverityFilter = "warning"
	FilterAll     SeverityFilter = "all"
)

// admits reports whether the filter keeps a rule of the given severity.
func (f SeverityFilter) admits(s contract.Severity) bool {
	switch f {
	case FilterError:
		return s == contract.SeverityError
	case FilterWarning:
		return s == contract.SeverityWarning
	}
	return true
}

// Decision is the gate's verdict on one envelope.
type Decision struct {
	Allow      bool
	Reason     string
	SkipReason string // non-empty when reconstruction skipped
	Violations []contract.Violation
}

// Gate evaluates envelopes against a contract set.
type Gate struct {
	Contracts []*contract.Contract
	Filter    SeverityFilter
}

// NewGate loads contracts for the project root (project sources shadow
// user sources) and returns a gate with the given severity filter.
func NewGate(projectRoot string, filter SeverityFilter) *Gate {
	if filter == "" {
		filter = FilterAll
	}
	loaded := contract.Load(contract.SourceDirs(projectRoot)...)
	return &Gate{Contracts: loaded.Enabled(), Filter: filter}
}

// Evaluate reconstructs the proposed file and checks it. Ambiguity
// (skip) allows; only explicit contract matches deny.
func (g *Gate) Evaluate(env *Envelope) (*Decision, error) {
	proposed, skip, err := Reconstruct(env)
	if err != nil {
		return nil, err
	}
	if proposed == nil {
		return &Decision{Allow: true, SkipReason: skip}, nil
	}

	var filtered []*contract.Contract
	for _, c := range g.Contracts {
		if g.Filter.admits(c.Rule.Severity) {
			filtered = append(filtered, c)
		}
	}

	rel := relPath(env.CWD, proposed.Path)
	violations, err := contract.CheckProposed(filtered, rel, proposed.Content)
	if err != nil {
		// A broken rule must not block writes.
		return &Decision{Allow: true, SkipReason: fmt.Sprintf("contract check failed: %v", err)}, nil
	}
	if len(violations) == 0 {
		return &Decision{Allow: true}, nil
	}
	return &Decision{
		Allow:      false,
		Reason:     denyReason(violations),
		Violations: violations,
	}, nil
}

// denyReason enumerates the offending rule ids with their messages.
func denyReason(violations []contract.Violation) string {
	byRule := map[string]string{}
	var ids []string
	for _, v := range violations {
		if _, seen := byRule[v.RuleID]; !seen {
			byRule[v.RuleID] = v.Message
			ids = append(ids, v.RuleID)
		}
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %s", id, byRule[id])
	}
	return "contract violation: " + strings.Join(parts, "; ")
}

// relPath converts the proposed path to a slash-separated path relative
// to the working directory, falling back to the base name when the path
// escapes it.
func relPath(cwd, path string) string {
	if cwd != "" {
		if rel, err := filepath.Rel(cwd, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}

// preToolUseOutput is the PreToolUse response shape.
type preToolUseOutput struct {
	HookSpecificOutput preToolUseHookOutput `json:"hookSpecificOutput"`
}

type preToolUseHookOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

// postToolUseOutput is the PostToolUse deny shape; the allow case is an
// empty object for compatibility with the external agent.
type postToolUseOutput struct {
	Decision           string                `json:"decision"`
	Reason             string                `json:"reason"`
	HookSpecificOutput postToolUseHookOutput `json:"hookSpecificOutput"`
}

type postToolUseHookOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext"`
}

// Render serializes the decision into the hook response for the event.
func Render(event string, d *Decision) ([]byte, error) {
	switch event {
	case PreToolUse:
		decision := "allow"
		reason := d.Reason
		if !d.Allow {
			decision = "deny"
		} else if reason == "" {
			reason = d.SkipReason
		}
		return json.Marshal(preToolUseOutput{
			HookSpecificOutput: preToolUseHookOutput{
				HookEventName:            PreToolUse,
				PermissionDecision:       decision,
				PermissionDecisionReason: reason,
			},
		})
	case PostToolUse:
		if d.Allow {
			return []byte("{}"), nil
		}
		return json.Marshal(postToolUseOutput{
			Decision: "block",
			Reason:   d.Reason,
			HookSpecificOutput: postToolUseHookOutput{
				HookEventName:     PostToolUse,
				AdditionalContext: d.Reason,
			},
		})
	}
	return nil, fmt.Errorf("unknown hook event %q", event)
}
