package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phaserhq/phaser/internal/store"
)

// Stage names the two snapshots kept per audit.
const (
	StagePre  = "pre"
	StagePost = "post"
)

// yamlEntry mirrors the on-disk entry shape; a nil Content is a binary node.
type yamlEntry struct {
	Path       string  `yaml:"path"`
	Type       string  `yaml:"type"`
	Size       int64   `yaml:"size"`
	SHA256     string  `yaml:"sha256"`
	Executable bool    `yaml:"executable"`
	Content    *string `yaml:"content"`
}

// yamlManifest mirrors the on-disk manifest shape.
type yamlManifest struct {
	Root           string      `yaml:"root"`
	CapturedAt     string      `yaml:"captured_at"`
	FileCount      int         `yaml:"file_count"`
	TotalSizeBytes int64       `yaml:"total_size_bytes"`
	Files          []yamlEntry `yaml:"files"`
}

// Save writes the manifest for an audit stage using the dependency-free
// encoder and the store's atomic write.
func Save(s *store.Store, auditID, stage string, m *Manifest) error {
	return store.WriteAtomic(s.ManifestPath(auditID, stage), []byte(EncodeYAML(m)))
}

// Load reads a stored manifest. A missing file returns (nil, nil).
func Load(s *store.Store, auditID, stage string) (*Manifest, error) {
	data, err := store.ReadLocked(s.ManifestPath(auditID, stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ym yamlManifest
	if err := yaml.Unmarshal(data, &ym); err != nil {
		return nil, fmt.Errorf("parsing manifest %s-%s: %w", auditID, stage, err)
	}

	m := &Manifest{
		Root:           ym.Root,
		CapturedAt:     ym.CapturedAt,
		FileCount:      ym.FileCount,
		TotalSizeBytes: ym.TotalSizeBytes,
	}
	for _, ye := range ym.Files {
		fe := FileEntry{
			Path:       ye.Path,
			Kind:       FileKind(ye.Type),
			Size:       ye.Size,
			SHA256:     ye.SHA256,
			Executable: ye.Executable,
		}
		if ye.Content != nil {
			fe.Content = *ye.Content
		}
		m.Files = append(m.Files, fe)
	}
	return m, nil
}

// CompareAudit loads both stages for an audit and compares them. If either
// stage is missing it returns (nil, nil).
func CompareAudit(s *store.Store, auditID string, opts CompareOptions) (*DiffResult, error) {
	before, err := Load(s, auditID, StagePre)
	if err != nil {
		return nil, err
	}
	after, err := Load(s, auditID, StagePost)
	if err != nil {
		return nil, err
	}
	if before == nil || after == nil {
		return nil, nil
	}
	return Compare(before, after, opts), nil
}
