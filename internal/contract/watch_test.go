package contract

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_DetectsRuleChange(t *testing.T) {
	dir := t.TempDir()
	c := testContract(Rule{ID: "watched", Type: FileExists, Severity: SeverityError,
		FileGlob: "x", Message: "m"})
	if err := Save(dir, c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := SetEnabled(dir, "watched", false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}

	select {
	case change := <-w.Changes:
		if change.RuleID != "watched" {
			t.Errorf("expected rule ID 'watched', got %q", change.RuleID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcher_IgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rule.yaml.tmp"), []byte("partial"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	select {
	case change := <-w.Changes:
		t.Errorf("unexpected change event: %+v", change)
	case <-time.After(300 * time.Millisecond):
		// Expected: no events for non-rule files.
	}
}

func TestWatcher_SkipsMissingDirectory(t *testing.T) {
	present := t.TempDir()
	missing := filepath.Join(present, "does-not-exist")

	w, err := NewWatcher(missing, present)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(present, "new-rule.yaml"), []byte("version: 1"), 0644); err != nil {
		t.Fatalf("failed to create rule file: %v", err)
	}

	select {
	case change := <-w.Changes:
		if change.RuleID != "new-rule" {
			t.Errorf("expected rule ID 'new-rule', got %q", change.RuleID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}
