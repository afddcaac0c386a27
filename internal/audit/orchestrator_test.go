package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phaserhq/phaser/internal/event"
	"github.com/phaserhq/phaser/internal/sandbox"
	"github.com/phaserhq/phaser/internal/store"
)

// stubExecutor fails the phases listed in failOn and records the order
// phases ran in.
type stubExecutor struct {
	failOn map[int]bool
	ran    []int
	write  func(phase PlanPhase) ([]string, error)
}

func (s *stubExecutor) ExecutePhase(ctx context.Context, cfg *Config, phase PlanPhase) ([]string, error) {
	s.ran = append(s.ran, phase.Number)
	if s.failOn[phase.Number] {
		return nil, fmt.Errorf("phase %d broke", phase.Number)
	}
	if s.write != nil {
		return s.write(phase)
	}
	return nil, nil
}

func testOrchestrator(t *testing.T) (*Orchestrator, *store.Store) {
	t.Helper()
	s := &store.Store{Root: t.TempDir()}
	return NewOrchestrator(s, event.NewLog(s)), s
}

func phases(nums ...int) []PlanPhase {
	out := make([]PlanPhase, len(nums))
	for i, n := range nums {
		out[i] = PlanPhase{Number: n, Slug: fmt.Sprintf("step-%d", n)}
	}
	return out
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "git", "init", "-b", "main")
	run(t, dir, "git", "config", "user.email", "test@test.com")
	run(t, dir, "git", "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run(t, dir, "git", "add", "-A")
	run(t, dir, "git", "commit", "-m", "initial")
	return dir
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v failed: %v\n%s", name, args, err, out)
	}
}

func eventTypes(t *testing.T, s *store.Store, auditID string) []string {
	t.Helper()
	events, err := s.QueryEvents(store.EventFilter{AuditID: auditID})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestRunDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("executes phases in order", func(t *testing.T) {
		o, s := testOrchestrator(t)
		ex := &stubExecutor{}
		o.Executor = ex

		result, err := o.Run(ctx, &Config{
			Root: t.TempDir(), AuditID: "a1", Mode: ModeDirect, Phases: phases(1, 2, 3),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !result.Success() || len(result.Phases) != 3 {
			t.Fatalf("result = %+v", result)
		}
		if len(ex.ran) != 3 || ex.ran[0] != 1 || ex.ran[2] != 3 {
			t.Errorf("ran = %v", ex.ran)
		}

		types := eventTypes(t, s, "a1")
		want := []string{
			"audit_started",
			"phase_started", "phase_completed",
			"phase_started", "phase_completed",
			"phase_started", "phase_completed",
			"audit_completed",
		}
		if len(types) != len(want) {
			t.Fatalf("events = %v", types)
		}
		for i := range want {
			if types[i] != want[i] {
				t.Errorf("event[%d] = %q, want %q", i, types[i], want[i])
			}
		}
	})

	t.Run("fail fast stops the run", func(t *testing.T) {
		o, s := testOrchestrator(t)
		ex := &stubExecutor{failOn: map[int]bool{2: true}}
		o.Executor = ex

		result, err := o.Run(ctx, &Config{
			Root: t.TempDir(), AuditID: "a2", Mode: ModeDirect,
			Phases: phases(1, 2, 3), FailFast: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Success() || len(result.Phases) != 2 {
			t.Fatalf("result = %+v", result)
		}
		if result.Phases[1].Error == "" {
			t.Error("failed phase has no error message")
		}

		types := eventTypes(t, s, "a2")
		if types[len(types)-1] != "audit_failed" {
			t.Errorf("final event = %q", types[len(types)-1])
		}
	})

	t.Run("without fail fast all phases run", func(t *testing.T) {
		o, _ := testOrchestrator(t)
		ex := &stubExecutor{failOn: map[int]bool{1: true}}
		o.Executor = ex

		result, err := o.Run(ctx, &Config{
			Root: t.TempDir(), AuditID: "a3", Mode: ModeDirect, Phases: phases(1, 2),
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Phases) != 2 {
			t.Fatalf("phases = %+v", result.Phases)
		}
	})

	t.Run("updates the audit record status", func(t *testing.T) {
		o, s := testOrchestrator(t)
		a := &store.Audit{Project: "proj", Slug: "slug", Date: "2026-08-24", Status: store.StatusPending}
		if err := s.InsertAudit(a); err != nil {
			t.Fatal(err)
		}

		if _, err := o.Run(ctx, &Config{
			Root: t.TempDir(), AuditID: a.ID, Mode: ModeDirect, Phases: phases(1),
		}); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetAudit(a.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != store.StatusCompleted {
			t.Errorf("status = %q", got.Status)
		}
	})

	t.Run("creates the audit record when absent", func(t *testing.T) {
		o, s := testOrchestrator(t)
		if _, err := o.Run(ctx, &Config{
			Root: t.TempDir(), AuditID: "fresh-1", Mode: ModeDirect, Phases: phases(1),
		}); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetAudit("fresh-1")
		if err != nil {
			t.Fatalf("no audit record after run: %v", err)
		}
		if got.Status != store.StatusCompleted {
			t.Errorf("status = %q", got.Status)
		}
		if got.Project == "" || got.Slug != "fresh-1" || got.Date == "" {
			t.Errorf("record = %+v", got)
		}
	})

	t.Run("unknown mode errors", func(t *testing.T) {
		o, _ := testOrchestrator(t)
		_, err := o.Run(ctx, &Config{Root: t.TempDir(), AuditID: "a4", Mode: "parallel"})
		if !errors.Is(err, ErrUnknownMode) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestRunSandboxed(t *testing.T) {
	ctx := context.Background()
	root := initTestRepo(t)
	o, s := testOrchestrator(t)
	o.Executor = &stubExecutor{write: func(phase PlanPhase) ([]string, error) {
		path := filepath.Join(root, "README.md")
		if err := os.WriteFile(path, []byte("# touched\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}}

	result, err := o.Run(ctx, &Config{
		Root: root, AuditID: "sb1", Mode: ModeSandboxed, Phases: phases(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success() {
		t.Fatalf("result = %+v", result)
	}
	if result.ChangeSummary == "" {
		t.Error("no change summary from sandboxed run")
	}

	// The rollback restored the tree.
	data, err := os.ReadFile(filepath.Join(root, "README.md"))
	if err != nil || string(data) != "# test\n" {
		t.Errorf("README.md = %q, err = %v", data, err)
	}
	// And removed the sandbox context.
	c, err := sandbox.LoadContext(s)
	if err != nil || c != nil {
		t.Errorf("sandbox context = %+v, err = %v", c, err)
	}
}

func TestRunSandboxedRestoresCreatedFiles(t *testing.T) {
	ctx := context.Background()
	root := initTestRepo(t)
	o, s := testOrchestrator(t)
	created := filepath.Join(root, "new_file.py")
	removed := filepath.Join(root, "README.md")
	o.Executor = &stubExecutor{write: func(phase PlanPhase) ([]string, error) {
		if err := os.WriteFile(created, []byte("print('new')\n"), 0o644); err != nil {
			return nil, err
		}
		if err := os.Remove(removed); err != nil {
			return nil, err
		}
		return []string{created, removed}, nil
	}}

	result, err := o.Run(ctx, &Config{
		Root: root, AuditID: "sb2", Mode: ModeSandboxed, Phases: phases(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success() {
		t.Fatalf("result = %+v", result)
	}

	if _, err := os.Stat(created); !os.IsNotExist(err) {
		t.Error("phase-created file survived the rollback")
	}
	data, err := os.ReadFile(removed)
	if err != nil || string(data) != "# test\n" {
		t.Errorf("README.md = %q, err = %v", data, err)
	}
	for _, want := range []string{"1 created", "1 deleted"} {
		if !strings.Contains(result.ChangeSummary, want) {
			t.Errorf("summary = %q, want it to mention %q", result.ChangeSummary, want)
		}
	}
	c, err := sandbox.LoadContext(s)
	if err != nil || c != nil {
		t.Errorf("sandbox context = %+v, err = %v", c, err)
	}
}

func TestRunBranched(t *testing.T) {
	ctx := context.Background()
	root := initTestRepo(t)
	o, _ := testOrchestrator(t)
	o.Executor = &stubExecutor{write: func(phase PlanPhase) ([]string, error) {
		name := fmt.Sprintf("phase%d.py", phase.Number)
		if err := os.WriteFile(filepath.Join(root, name), []byte("# x\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{name}, nil
	}}

	result, err := o.Run(ctx, &Config{
		Root: root, AuditID: "br1", Slug: "integration", Mode: ModeBranched, Phases: phases(1, 2),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success() {
		t.Fatalf("result = %+v", result)
	}

	// Each phase landed a commit on its own chained branch.
	cmd := exec.Command("git", "-C", root, "log", "--format=%s",
		"audit/integration/phase-02-step-2")
	out, err := cmd.Output()
	if err != nil {
		t.Fatal(err)
	}
	log := string(out)
	for _, want := range []string{"Phase 2: step-2", "Phase 1: step-1", "initial"} {
		if !containsLine(log, want) {
			t.Errorf("log missing %q:\n%s", want, log)
		}
	}
}

func containsLine(log, want string) bool {
	for _, line := range strings.Split(log, "\n") {
		if line == want {
			return true
		}
	}
	return false
}
