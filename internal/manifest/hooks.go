package manifest

import (
	"fmt"

	"github.com/phaserhq/phaser/internal/event"
	"github.com/phaserhq/phaser/internal/store"
)

// Hooks bridges audit lifecycle to manifest capture: a pre snapshot at
// setup, and a post snapshot plus per-file change events at completion.
type Hooks struct {
	Store *store.Store
	Log   *event.Log
}

// OnAuditSetup captures the pre-audit manifest and records it.
func (h *Hooks) OnAuditSetup(auditID, root string) (*Manifest, error) {
	m, err := Capture(root, AuditExcludes())
	if err != nil {
		return nil, fmt.Errorf("capturing pre manifest: %w", err)
	}
	if err := Save(h.Store, auditID, StagePre, m); err != nil {
		return nil, err
	}
	_, err = h.Log.Emit(event.FileCreated, auditID, 0, map[string]any{
		"path":             h.Store.ManifestPath(auditID, StagePre),
		"file_count":       m.FileCount,
		"total_size_bytes": m.TotalSizeBytes,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// OnAuditComplete captures the post-audit manifest, diffs it against the
// pre snapshot, and emits one event per file change.
func (h *Hooks) OnAuditComplete(auditID, root string) (*DiffResult, error) {
	m, err := Capture(root, AuditExcludes())
	if err != nil {
		return nil, fmt.Errorf("capturing post manifest: %w", err)
	}
	if err := Save(h.Store, auditID, StagePost, m); err != nil {
		return nil, err
	}
	if _, err := h.Log.Emit(event.FileCreated, auditID, 0, map[string]any{
		"path":             h.Store.ManifestPath(auditID, StagePost),
		"file_count":       m.FileCount,
		"total_size_bytes": m.TotalSizeBytes,
	}); err != nil {
		return nil, err
	}

	diff, err := CompareAudit(h.Store, auditID, CompareOptions{})
	if err != nil {
		return nil, err
	}
	if diff == nil {
		return nil, nil
	}

	emit := func(kind event.Kind, changes []FileChange) error {
		for _, c := range changes {
			payload := map[string]any{"path": c.Path}
			if c.BeforeHash != "" {
				payload["before_hash"] = c.BeforeHash
			}
			if c.AfterHash != "" {
				payload["after_hash"] = c.AfterHash
			}
			if _, err := h.Log.Emit(kind, auditID, 0, payload); err != nil {
				return err
			}
		}
		return nil
	}
	if err := emit(event.FileCreated, diff.Added); err != nil {
		return nil, err
	}
	if err := emit(event.FileModified, diff.Modified); err != nil {
		return nil, err
	}
	if err := emit(event.FileDeleted, diff.Deleted); err != nil {
		return nil, err
	}
	return diff, nil
}
