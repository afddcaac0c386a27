package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phaserhq/phaser/internal/store"
)

// Context is the persisted record of one sandbox run. Its presence with
// Active set is the mutual-exclusion token for the root.
type Context struct {
	AuditID   string   `yaml:"audit_id"`
	Root      string   `yaml:"root"`
	Branch    string   `yaml:"branch"`
	StashRef  string   `yaml:"stash_ref,omitempty"`
	StartedAt string   `yaml:"started_at"`
	Active    bool     `yaml:"active"`
	Created   []string `yaml:"created_files"`
	Modified  []string `yaml:"modified_files"`
	Deleted   []string `yaml:"deleted_files"`
}

// StashMessage returns the well-known stash message for an audit.
func StashMessage(prefix, auditID string) string {
	if prefix == "" {
		prefix = "phaser"
	}
	return fmt.Sprintf("%s-sim-%s", prefix, auditID)
}

// TrackedCount returns the total number of tracked paths across kinds.
func (c *Context) TrackedCount() int {
	return len(c.Created) + len(c.Modified) + len(c.Deleted)
}

// Track appends a path to the bucket for kind, keeping each bucket an
// insertion-ordered set. A path may appear in several buckets; rollback
// deduplicates across them.
func (c *Context) Track(path, kind string) {
	switch kind {
	case "created":
		c.Created = appendUnique(c.Created, path)
	case "modified":
		c.Modified = appendUnique(c.Modified, path)
	case "deleted":
		c.Deleted = appendUnique(c.Deleted, path)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}

// normalize converts an absolute or relative path to a slash-separated
// path relative to root. It returns false for paths outside the root.
func normalize(root, path string) (string, bool) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// LoadContext reads the persisted sandbox context, or nil when none
// exists.
func LoadContext(s *store.Store) (*Context, error) {
	data, err := store.ReadLocked(s.Path(store.SandboxFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var c Context
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing sandbox context: %w", err)
	}
	return &c, nil
}

// saveContext persists the context atomically.
func saveContext(s *store.Store, c *Context) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling sandbox context: %w", err)
	}
	return store.WriteAtomic(s.Path(store.SandboxFile), data)
}

// removeContext deletes the persisted context file.
func removeContext(s *store.Store) error {
	err := os.Remove(s.Path(store.SandboxFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
