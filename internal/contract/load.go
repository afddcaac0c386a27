package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phaserhq/phaser/internal/store"
)

// LoadResult carries the loaded contracts plus non-fatal warnings for
// files that failed to parse or validate.
type LoadResult struct {
	Contracts []*Contract
	Warnings  []string
}

// SourceDirs returns the ordered contract source directories for a project
// root: the project-local store's contracts directory first (higher
// precedence), then the user-home store's.
func SourceDirs(projectRoot string) []string {
	dirs := []string{
		filepath.Join(projectRoot, store.DirName, store.ContractsDir),
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, store.DirName, store.ContractsDir))
	}
	return dirs
}

// Load reads every contract from the given directories in order. A rule id
// seen in an earlier directory shadows the same id in later ones. Files
// that fail to parse become warnings; the load never aborts on them.
func Load(dirs ...string) *LoadResult {
	result := &LoadResult{}
	seen := map[string]bool{}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			// A missing source directory simply contributes nothing.
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
				continue
			}
			path := filepath.Join(dir, name)
			c, err := LoadFile(path)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			if seen[c.Rule.ID] {
				continue
			}
			seen[c.Rule.ID] = true
			result.Contracts = append(result.Contracts, c)
		}
	}
	return result
}

// Enabled returns only the contracts whose enabled flag is set.
func (r *LoadResult) Enabled() []*Contract {
	var out []*Contract
	for _, c := range r.Contracts {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the contract with the given rule id, or nil.
func (r *LoadResult) Get(ruleID string) *Contract {
	for _, c := range r.Contracts {
		if c.Rule.ID == ruleID {
			return c
		}
	}
	return nil
}
