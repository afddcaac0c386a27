package contract

import (
	"path"
	"regexp"
	"strings"
)

// IgnoreScope says which lines a directive covers.
type IgnoreScope string

const (
	ScopeLine     IgnoreScope = "line"
	ScopeNextLine IgnoreScope = "next-line"
)

// Ignore is one in-source suppression directive. An empty RuleIDs list
// matches every rule.
type Ignore struct {
	RuleIDs []string
	Line    int // 1-based line the directive appeared on
	Scope   IgnoreScope
	All     bool // phaser:ignore-all suppresses across the whole file
}

// commentExtensions maps file suffixes to a known comment style. Only
// files in this set are scanned for directives.
var commentExtensions = map[string]bool{
	// "#"
	".py": true, ".rb": true, ".sh": true, ".bash": true,
	".yaml": true, ".yml": true, ".toml": true,
	// "//" and "/* */"
	".go": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true,
	".cs": true, ".rs": true, ".swift": true, ".kt": true, ".scala": true,
	// "<!-- -->"
	".html": true, ".htm": true, ".xml": true, ".md": true, ".markdown": true,
	// "/* */"
	".css": true,
}

// directivePattern matches "phaser:ignore", "phaser:ignore-next-line", or
// "phaser:ignore-all", optionally followed by a comma-separated rule list.
var directivePattern = regexp.MustCompile(
	`phaser:ignore(-next-line|-all)?((?:[ \t]+[A-Za-z0-9][A-Za-z0-9-]*(?:[ \t]*,[ \t]*[A-Za-z0-9][A-Za-z0-9-]*)*)?)`)

// ParseIgnores scans content for suppression directives. Files outside the
// known comment-style set yield none.
func ParseIgnores(filePath, content string) []Ignore {
	if !commentExtensions[strings.ToLower(path.Ext(filePath))] {
		return nil
	}

	var out []Ignore
	for i, line := range strings.Split(content, "\n") {
		m := directivePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ig := Ignore{Line: i + 1, Scope: ScopeLine}
		switch m[1] {
		case "-next-line":
			ig.Scope = ScopeNextLine
		case "-all":
			ig.All = true
		}
		for _, id := range strings.FieldsFunc(m[2], func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			ig.RuleIDs = append(ig.RuleIDs, id)
		}
		out = append(out, ig)
	}
	return out
}

// covers reports whether the directive names the rule (or names none,
// matching all).
func (ig *Ignore) covers(ruleID string) bool {
	if len(ig.RuleIDs) == 0 {
		return true
	}
	for _, id := range ig.RuleIDs {
		if id == ruleID {
			return true
		}
	}
	return false
}

// Suppressed reports whether a violation is silenced by any directive:
// a same-line directive, a next-line directive on the preceding line, or
// a file-wide ignore-all.
func Suppressed(v Violation, ignores []Ignore) bool {
	for i := range ignores {
		ig := &ignores[i]
		if !ig.covers(v.RuleID) {
			continue
		}
		if ig.All {
			return true
		}
		if v.Line == 0 {
			continue
		}
		if ig.Scope == ScopeLine && ig.Line == v.Line {
			return true
		}
		if ig.Scope == ScopeNextLine && ig.Line == v.Line-1 {
			return true
		}
	}
	return false
}
