package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phaserhq/phaser/internal/store"
)

// Manifest is a hashed snapshot of a directory tree: an ordered list of
// file entries plus aggregates over them.
type Manifest struct {
	Root           string // absolute, symlinks resolved
	CapturedAt     string // store.TimestampLayout
	FileCount      int
	TotalSizeBytes int64
	Files          []FileEntry // sorted by path ascending
}

// DefaultExcludes returns the directory names pruned during capture:
// version control, caches, virtualenvs, package trees, and editor state.
// Callers may override the set wholesale.
func DefaultExcludes() map[string]bool {
	return map[string]bool{
		".git": true, ".hg": true, ".svn": true,
		"__pycache__": true, ".pytest_cache": true, ".mypy_cache": true,
		".ruff_cache": true, ".cache": true, ".tox": true,
		".venv": true, "venv": true, "node_modules": true,
		"dist": true, "build": true, "target": true,
		".idea": true, ".vscode": true,
	}
}

// AuditExcludes is DefaultExcludes plus the store's own directory, so an
// audit never manifests its own bookkeeping.
func AuditExcludes() map[string]bool {
	ex := DefaultExcludes()
	ex[store.DirName] = true
	return ex
}

// Capture walks root depth-first with topdown pruning and returns a
// manifest of every regular file. Entries whose name or relative prefix is
// excluded are pruned before descent; symlinks and special files are
// skipped silently, as are files that fail to read.
func Capture(root string, excludes map[string]bool) (*Manifest, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	if excludes == nil {
		excludes = DefaultExcludes()
	}

	m := &Manifest{
		Root:       abs,
		CapturedAt: store.NowTimestamp(),
	}
	walkDir(abs, "", excludes, m)

	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	m.FileCount = len(m.Files)
	for i := range m.Files {
		m.TotalSizeBytes += m.Files[i].Size
	}
	return m, nil
}

// walkDir visits one directory level: excluded entries are removed before
// descent and the remainder visited in lexical order.
func walkDir(dir, rel string, excludes map[string]bool, m *Manifest) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		entryRel := name
		if rel != "" {
			entryRel = rel + "/" + name
		}
		if excludes[name] || excludes[entryRel] {
			continue
		}

		full := filepath.Join(dir, name)
		if entry.IsDir() {
			walkDir(full, entryRel, excludes, m)
			continue
		}
		// Only regular files: symlinks and device nodes are skipped.
		if !entry.Type().IsRegular() {
			continue
		}
		if fe, ok := captureFile(full, entryRel); ok {
			m.Files = append(m.Files, fe)
		}
	}
}

// captureFile reads and hashes a single file. Read or stat failures skip
// the file silently per the propagation policy.
func captureFile(full, rel string) (FileEntry, bool) {
	info, err := os.Lstat(full)
	if err != nil || !info.Mode().IsRegular() {
		return FileEntry{}, false
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return FileEntry{}, false
	}

	sum := sha256.Sum256(data)
	fe := FileEntry{
		Path:       rel,
		Size:       int64(len(data)),
		SHA256:     hex.EncodeToString(sum[:]),
		Executable: info.Mode().Perm()&0o111 != 0,
	}
	if IsBinary(rel, data) {
		fe.Kind = KindBinary
	} else {
		fe.Kind = KindText
		fe.Content = string(data)
	}
	return fe, true
}

// index maps entry paths to their entries for comparison.
func (m *Manifest) index() map[string]*FileEntry {
	idx := make(map[string]*FileEntry, len(m.Files))
	for i := range m.Files {
		idx[m.Files[i].Path] = &m.Files[i]
	}
	return idx
}

// Summary renders a short human description of the manifest.
func (m *Manifest) Summary() string {
	return fmt.Sprintf("%d files, %d bytes under %s", m.FileCount, m.TotalSizeBytes, m.Root)
}

// normalizeExcludeList converts a comma-separated override into an exclude
// set, for CLI callers.
func normalizeExcludeList(csv string) map[string]bool {
	out := map[string]bool{}
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[part] = true
		}
	}
	return out
}

// ExcludesFromList builds an exclude set from explicit names; empty input
// yields the defaults.
func ExcludesFromList(csv string) map[string]bool {
	if strings.TrimSpace(csv) == "" {
		return DefaultExcludes()
	}
	return normalizeExcludeList(csv)
}
