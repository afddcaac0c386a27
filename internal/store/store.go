// Package store provides process-safe, file-backed storage for phaser
// artifacts: audit records, the event log, configuration, manifests,
// contracts, and the sandbox/branch context files.
//
// All mutations go through an atomic write (temp sibling + fsync + rename)
// guarded by advisory locks, so concurrent invocations sharing one store
// always observe a fully committed file.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvHome overrides store root resolution when set.
	EnvHome = "PHASER_HOME"

	// DirName is the store directory name, both as the project-local
	// marker and under the user home directory.
	DirName = ".phaser"

	// AuditsFile holds audit records.
	AuditsFile = "audits.json"

	// EventsFile holds the append-only event log.
	EventsFile = "events.json"

	// ReplaysFile holds replay run records.
	ReplaysFile = "replays.json"

	// ConfigFile holds user configuration merged over defaults.
	ConfigFile = "config.yaml"

	// ManifestsDir holds captured tree manifests, one YAML per audit stage.
	ManifestsDir = "manifests"

	// ContractsDir holds contract rules, one YAML per rule.
	ContractsDir = "contracts"

	// SandboxFile holds the active sandbox context; absent when none.
	SandboxFile = "simulation.yaml"

	// BranchFile holds the active branch-mode context; absent when none.
	BranchFile = "branches.yaml"
)

// Store is a directory-rooted artifact store.
type Store struct {
	// Root is the resolved store directory.
	Root string
}

// Resolve determines the store root: the PHASER_HOME override if set, the
// nearest ancestor of the working directory containing a .phaser marker, or
// .phaser under the user home directory.
func Resolve() (string, error) {
	if override := os.Getenv(EnvHome); override != "" {
		return override, nil
	}

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for {
			marker := filepath.Join(dir, DirName)
			if info, statErr := os.Stat(marker); statErr == nil && info.IsDir() {
				return marker, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving store root: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Open returns a Store rooted at dir. If dir is empty the root is resolved
// via Resolve. The directory is not created until Init or the first write.
func Open(dir string) (*Store, error) {
	if dir == "" {
		resolved, err := Resolve()
		if err != nil {
			return nil, err
		}
		dir = resolved
	}
	return &Store{Root: dir}, nil
}

// Init creates the store directory structure.
func (s *Store) Init() error {
	dirs := []string{
		s.Root,
		filepath.Join(s.Root, ManifestsDir),
		filepath.Join(s.Root, ContractsDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Path joins parts under the store root.
func (s *Store) Path(parts ...string) string {
	return filepath.Join(append([]string{s.Root}, parts...)...)
}

// ManifestPath returns the path for an audit's manifest at the given stage
// ("pre" or "post").
func (s *Store) ManifestPath(auditID, stage string) string {
	return s.Path(ManifestsDir, fmt.Sprintf("%s-%s.yaml", auditID, stage))
}

// ContractPath returns the path for a contract rule file.
func (s *Store) ContractPath(ruleID string) string {
	return s.Path(ContractsDir, ruleID+".yaml")
}
