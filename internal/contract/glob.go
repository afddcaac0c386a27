package contract

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Glob matches POSIX-form relative paths. Patterns containing ** are
// precompiled to a regex (** crosses separators, * does not); simpler
// patterns fall back to fnmatch semantics or a literal comparison.
type Glob struct {
	Pattern string

	re      *regexp.Regexp // set for ** patterns
	literal bool           // no metacharacters at all
}

// CompileGlob precompiles a glob once, when the rule loads.
func CompileGlob(pattern string) (*Glob, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty glob pattern")
	}
	g := &Glob{Pattern: pattern}

	if strings.Contains(pattern, "**") {
		re, err := regexp.Compile(globToRegex(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		g.re = re
		return g, nil
	}

	if !strings.ContainsAny(pattern, "*?[") {
		g.literal = true
		return g, nil
	}

	// Validate the fnmatch pattern eagerly so bad globs fail at load.
	if _, err := path.Match(pattern, "probe"); err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return g, nil
}

// Match tests a forward-slash relative path against the glob.
func (g *Glob) Match(rel string) bool {
	switch {
	case g.re != nil:
		return g.re.MatchString(rel)
	case g.literal:
		return rel == g.Pattern
	default:
		ok, err := path.Match(g.Pattern, rel)
		return err == nil && ok
	}
}

// globToRegex translates a ** glob into an anchored regex:
// ** matches anything, * anything except /, and . is literal.
func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
				// Collapse "**/" so it also matches zero directories.
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					b.WriteString("/?")
					i++
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '.', '+', '(', ')', '|', '[', ']', '{', '}', '^', '$', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString("$")
	return b.String()
}
