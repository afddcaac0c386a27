package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phaserhq/phaser/internal/manifest"
)

// MaxCheckFileBytes is the size above which pattern checks skip a file.
// Capture still manifests such files; only scanning skips them.
const MaxCheckFileBytes = 1 << 20

// Checker runs contracts against a directory tree.
type Checker struct {
	Root string
	// Excludes prunes traversal; nil means the capture defaults.
	Excludes map[string]bool
}

// NewChecker returns a Checker rooted at dir.
func NewChecker(dir string) *Checker {
	return &Checker{Root: dir, Excludes: manifest.AuditExcludes()}
}

// Check runs one contract and returns its result. Disabled contracts
// short-circuit to a pass.
func (ck *Checker) Check(c *Contract) (*CheckResult, error) {
	result := &CheckResult{Contract: c, Passed: true}
	if !c.Enabled {
		return result, nil
	}

	g, err := c.GlobMatcher()
	if err != nil {
		return nil, err
	}

	var violations []Violation
	switch c.Rule.Type {
	case ForbidPattern:
		violations, err = ck.checkForbid(c, g)
	case RequirePattern:
		violations, err = ck.checkRequire(c, g)
	case FileExists:
		violations = ck.checkExists(c, g, true)
	case FileNotExists:
		violations = ck.checkExists(c, g, false)
	case FileContains:
		violations = ck.checkContains(c, true)
	case FileNotContains:
		violations = ck.checkContains(c, false)
	default:
		return nil, fmt.Errorf("rule %s: unknown type %q", c.Rule.ID, c.Rule.Type)
	}
	if err != nil {
		return nil, err
	}

	result.Violations = violations
	result.Passed = len(violations) == 0
	return result, nil
}

// CheckAll runs every enabled contract. With failFast set it stops at the
// first failing contract.
func (ck *Checker) CheckAll(contracts []*Contract, failFast bool) ([]*CheckResult, error) {
	var results []*CheckResult
	for _, c := range contracts {
		if !c.Enabled {
			continue
		}
		res, err := ck.Check(c)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if failFast && !res.Passed {
			break
		}
	}
	return results, nil
}

// checkForbid scans matching files line by line; every regex hit is a
// violation unless an in-source directive suppresses it.
func (ck *Checker) checkForbid(c *Contract, g *Glob) ([]Violation, error) {
	re, err := c.Regex()
	if err != nil {
		return nil, err
	}

	var out []Violation
	for _, rel := range ck.matchingFiles(g) {
		content, ok := ck.readText(rel)
		if !ok {
			continue
		}
		ignores := ParseIgnores(rel, content)
		for i, line := range strings.Split(content, "\n") {
			loc := re.FindString(line)
			if loc == "" && !re.MatchString(line) {
				continue
			}
			v := Violation{
				RuleID:  c.Rule.ID,
				Path:    rel,
				Line:    i + 1,
				Matched: loc,
				Message: c.Rule.Message,
			}
			if !Suppressed(v, ignores) {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

// checkRequire passes when any matching file contains the regex; no match
// anywhere yields one violation against the glob itself.
func (ck *Checker) checkRequire(c *Contract, g *Glob) ([]Violation, error) {
	re, err := c.Regex()
	if err != nil {
		return nil, err
	}
	for _, rel := range ck.matchingFiles(g) {
		content, ok := ck.readText(rel)
		if !ok {
			continue
		}
		if re.MatchString(content) {
			return nil, nil
		}
	}
	return []Violation{{
		RuleID:  c.Rule.ID,
		Path:    c.Rule.FileGlob,
		Message: c.Rule.Message,
	}}, nil
}

// checkExists runs the presence predicate at the glob path.
func (ck *Checker) checkExists(c *Contract, g *Glob, wantPresent bool) []Violation {
	present := false
	if g.literal {
		_, err := os.Stat(filepath.Join(ck.Root, filepath.FromSlash(g.Pattern)))
		present = err == nil
	} else {
		present = len(ck.matchingFiles(g)) > 0
	}
	if present == wantPresent {
		return nil
	}
	return []Violation{{
		RuleID:  c.Rule.ID,
		Path:    c.Rule.FileGlob,
		Message: c.Rule.Message,
	}}
}

// checkContains reads the glob as one file and scans for the literal
// pattern: a violation on absence (contains) or presence (not-contains).
func (ck *Checker) checkContains(c *Contract, wantPresent bool) []Violation {
	rel := c.Rule.FileGlob
	content, ok := ck.readText(rel)
	found := false
	var foundLine int
	var matched string
	if ok {
		for i, line := range strings.Split(content, "\n") {
			if strings.Contains(line, c.Rule.Pattern) {
				found = true
				foundLine = i + 1
				matched = c.Rule.Pattern
				break
			}
		}
	}
	if found == wantPresent {
		return nil
	}
	v := Violation{
		RuleID:  c.Rule.ID,
		Path:    rel,
		Message: c.Rule.Message,
	}
	if found {
		v.Line = foundLine
		v.Matched = matched
	}
	return []Violation{v}
}

// matchingFiles walks the tree and returns sorted relative paths matching
// the glob. Per-file stat failures skip silently.
func (ck *Checker) matchingFiles(g *Glob) []string {
	excludes := ck.Excludes
	if excludes == nil {
		excludes = manifest.DefaultExcludes()
	}
	var out []string
	var walk func(dir, rel string)
	walk = func(dir, rel string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			name := entry.Name()
			entryRel := name
			if rel != "" {
				entryRel = rel + "/" + name
			}
			if excludes[name] || excludes[entryRel] {
				continue
			}
			if entry.IsDir() {
				walk(filepath.Join(dir, name), entryRel)
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}
			if g.Match(entryRel) {
				out = append(out, entryRel)
			}
		}
	}
	walk(ck.Root, "")
	sort.Strings(out)
	return out
}

// readText loads a file for scanning. Non-regular, oversized, binary, or
// unreadable files are skipped silently.
func (ck *Checker) readText(rel string) (string, bool) {
	full := filepath.Join(ck.Root, filepath.FromSlash(rel))
	info, err := os.Lstat(full)
	if err != nil || !info.Mode().IsRegular() || info.Size() > MaxCheckFileBytes {
		return "", false
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", false
	}
	if manifest.IsBinary(rel, data) {
		return "", false
	}
	return string(data), true
}

// CheckProposed runs the glob-filtered rule set against an in-memory
// proposed file state instead of the tree. Presence rules consult the
// proposed path only: file_exists cannot fail for a file being written,
// and file_not_exists fails when the proposed path matches.
func CheckProposed(contracts []*Contract, relPath, content string) ([]Violation, error) {
	ignores := ParseIgnores(relPath, content)
	var out []Violation

	for _, c := range contracts {
		if !c.Enabled {
			continue
		}
		g, err := c.GlobMatcher()
		if err != nil {
			return nil, err
		}
		if !g.Match(relPath) {
			continue
		}

		var violations []Violation
		switch c.Rule.Type {
		case ForbidPattern:
			re, err := c.Regex()
			if err != nil {
				return nil, err
			}
			for i, line := range strings.Split(content, "\n") {
				if m := re.FindString(line); m != "" || re.MatchString(line) {
					violations = append(violations, Violation{
						RuleID: c.Rule.ID, Path: relPath, Line: i + 1,
						Matched: m, Message: c.Rule.Message,
					})
				}
			}
		case RequirePattern:
			re, err := c.Regex()
			if err != nil {
				return nil, err
			}
			if !re.MatchString(content) {
				violations = append(violations, Violation{
					RuleID: c.Rule.ID, Path: relPath, Message: c.Rule.Message,
				})
			}
		case FileContains:
			if !strings.Contains(content, c.Rule.Pattern) {
				violations = append(violations, Violation{
					RuleID: c.Rule.ID, Path: relPath, Message: c.Rule.Message,
				})
			}
		case FileNotContains:
			for i, line := range strings.Split(content, "\n") {
				if strings.Contains(line, c.Rule.Pattern) {
					violations = append(violations, Violation{
						RuleID: c.Rule.ID, Path: relPath, Line: i + 1,
						Matched: c.Rule.Pattern, Message: c.Rule.Message,
					})
				}
			}
		case FileNotExists:
			violations = append(violations, Violation{
				RuleID: c.Rule.ID, Path: relPath, Message: c.Rule.Message,
			})
		case FileExists:
			// The proposed write satisfies presence by definition.
		}

		for _, v := range violations {
			if !Suppressed(v, ignores) {
				out = append(out, v)
			}
		}
	}
	return out, nil
}
