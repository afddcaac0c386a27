package branch

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phaserhq/phaser/internal/store"
)

// MergeStrategy selects how phase branches land on the target.
type MergeStrategy string

const (
	// MergeSquash collapses the whole series into one commit (default).
	MergeSquash MergeStrategy = "squash"
	// MergeRebase replays the series onto the target and fast-forwards.
	MergeRebase MergeStrategy = "rebase"
	// MergeNoFF merges the last phase branch with an explicit merge commit.
	MergeNoFF MergeStrategy = "merge"
)

// ParseStrategy maps a config string to a strategy, defaulting to squash.
func ParseStrategy(s string) MergeStrategy {
	switch MergeStrategy(s) {
	case MergeRebase:
		return MergeRebase
	case MergeNoFF:
		return MergeNoFF
	}
	return MergeSquash
}

// BranchInfo records one phase branch. Merged is tracked here rather
// than read back from git, since squash merges are invisible to
// git's own merge detector.
type BranchInfo struct {
	Phase     int    `yaml:"phase"`
	Slug      string `yaml:"slug"`
	Name      string `yaml:"name"`
	CommitSHA string `yaml:"commit_sha,omitempty"`
	Merged    bool   `yaml:"merged"`
}

// Context is the persisted record of one branch-mode run.
type Context struct {
	AuditID   string       `yaml:"audit_id"`
	Slug      string       `yaml:"slug"`
	Root      string       `yaml:"root"`
	Base      string       `yaml:"base_branch"`
	StartedAt string       `yaml:"started_at"`
	Active    bool         `yaml:"active"`
	Branches  []BranchInfo `yaml:"branches"`
}

// Last returns the most recently created phase branch, or nil.
func (c *Context) Last() *BranchInfo {
	if len(c.Branches) == 0 {
		return nil
	}
	return &c.Branches[len(c.Branches)-1]
}

// PhaseBranchName computes the branch name for a phase:
// audit/{slug}/phase-{NN}-{phase-slug}.
func PhaseBranchName(auditSlug string, phase int, phaseSlug string) string {
	return fmt.Sprintf("audit/%s/phase-%02d-%s", Slugify(auditSlug), phase, Slugify(phaseSlug))
}

// Slugify converts a human-readable name into a valid git branch
// segment. Spaces become hyphens, disallowed characters are stripped,
// and runs of hyphens are collapsed.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '/':
			b.WriteRune('-')
		}
	}
	s := b.String()
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-.")
}

// LoadContext reads the persisted branch context, or nil when none
// exists.
func LoadContext(s *store.Store) (*Context, error) {
	data, err := store.ReadLocked(s.Path(store.BranchFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var c Context
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing branch context: %w", err)
	}
	return &c, nil
}

func saveContext(s *store.Store, c *Context) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling branch context: %w", err)
	}
	return store.WriteAtomic(s.Path(store.BranchFile), data)
}

func removeContext(s *store.Store) error {
	err := os.Remove(s.Path(store.BranchFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
