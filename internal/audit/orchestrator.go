// Package audit orchestrates audit runs: sequencing phases, wiring the
// sandbox and branch engines around them, and recording lifecycle events
// and results. What a phase actually does is behind the PhaseExecutor
// abstraction.
package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/phaserhq/phaser/internal/branch"
	"github.com/phaserhq/phaser/internal/event"
	"github.com/phaserhq/phaser/internal/sandbox"
	"github.com/phaserhq/phaser/internal/store"
)

// Mode selects how phases touch the working tree.
type Mode string

const (
	// ModeDirect executes phases against the tree with no isolation.
	ModeDirect Mode = "direct"
	// ModeSandboxed tracks every change and rolls back at the end.
	ModeSandboxed Mode = "sandboxed"
	// ModeBranched runs each phase on its own chained git branch.
	ModeBranched Mode = "branched"
)

// ErrUnknownMode indicates the mode selector is not one of the three.
var ErrUnknownMode = errors.New("unknown audit mode")

// Config describes one audit run.
type Config struct {
	Root     string
	AuditID  string
	Slug     string // defaults to AuditID
	Project  string
	Mode     Mode
	Phases   []PlanPhase
	FailFast bool
}

// PhaseResult records the outcome of one phase.
type PhaseResult struct {
	Phase       int           `json:"phase"`
	Description string        `json:"description,omitempty"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Touched     []string      `json:"touched,omitempty"`
}

// RunResult accumulates a whole run.
type RunResult struct {
	AuditID string        `json:"audit_id"`
	Mode    Mode          `json:"mode"`
	Phases  []PhaseResult `json:"phases"`
	// ChangeSummary is the sandbox diff summary; empty in other modes.
	ChangeSummary string `json:"change_summary,omitempty"`
}

// Success reports whether every executed phase succeeded.
func (r *RunResult) Success() bool {
	for _, p := range r.Phases {
		if !p.Success {
			return false
		}
	}
	return true
}

// PhaseExecutor performs the actual work of a phase. Touched lists the
// paths the phase wrote, for sandbox tracking.
type PhaseExecutor interface {
	ExecutePhase(ctx context.Context, cfg *Config, phase PlanPhase) (touched []string, err error)
}

// NoopExecutor succeeds immediately without touching anything. It is the
// default; real implementations bridge to the external audit-document
// executor.
type NoopExecutor struct{}

// ExecutePhase does nothing.
func (NoopExecutor) ExecutePhase(ctx context.Context, cfg *Config, phase PlanPhase) ([]string, error) {
	return nil, nil
}

// Orchestrator runs audits over a store, emitting lifecycle events.
type Orchestrator struct {
	Store    *store.Store
	Log      *event.Log
	Executor PhaseExecutor
}

// NewOrchestrator returns an Orchestrator with the no-op executor.
func NewOrchestrator(s *store.Store, log *event.Log) *Orchestrator {
	return &Orchestrator{Store: s, Log: log, Executor: NoopExecutor{}}
}

// Run executes the configured audit. The audit record moves to
// in_progress at the start and to completed or failed at the end; the
// run result is returned even when phases fail.
func (o *Orchestrator) Run(ctx context.Context, cfg *Config) (*RunResult, error) {
	if cfg.Slug == "" {
		cfg.Slug = cfg.AuditID
	}

	result := &RunResult{AuditID: cfg.AuditID, Mode: cfg.Mode}
	if err := o.start(cfg); err != nil {
		return nil, err
	}

	var runErr error
	switch cfg.Mode {
	case ModeDirect, "":
		runErr = o.runDirect(ctx, cfg, result)
	case ModeSandboxed:
		runErr = o.runSandboxed(ctx, cfg, result)
	case ModeBranched:
		runErr = o.runBranched(ctx, cfg, result)
	default:
		runErr = fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
	if runErr != nil {
		_ = o.finish(cfg, result, runErr)
		return result, runErr
	}
	if err := o.finish(cfg, result, nil); err != nil {
		return result, err
	}
	return result, nil
}

// start marks the audit in progress, creating the record when absent so
// that every emitted event references an existing audit, and emits
// audit_started.
func (o *Orchestrator) start(cfg *Config) error {
	err := o.Store.UpdateAudit(cfg.AuditID, func(a *store.Audit) error {
		a.Status = store.StatusInProgress
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		project := cfg.Project
		if project == "" && cfg.Root != "" {
			project = filepath.Base(cfg.Root)
		}
		if project == "" {
			project = cfg.Slug
		}
		err = o.Store.InsertAudit(&store.Audit{
			ID:      cfg.AuditID,
			Project: project,
			Slug:    cfg.Slug,
			Date:    time.Now().UTC().Format("2006-01-02"),
			Status:  store.StatusInProgress,
		})
	}
	if err != nil {
		return err
	}
	_, err = o.Log.Emit(event.AuditStarted, cfg.AuditID, 0, map[string]any{
		"mode": string(cfg.Mode),
	})
	return err
}

// finish records the terminal status and emits the matching event.
func (o *Orchestrator) finish(cfg *Config, result *RunResult, runErr error) error {
	status := store.StatusCompleted
	kind := event.AuditCompleted
	payload := map[string]any{"phases": len(result.Phases)}
	if runErr != nil || !result.Success() {
		status = store.StatusFailed
		kind = event.AuditFailed
		if runErr != nil {
			payload["error"] = runErr.Error()
		}
	}
	if err := o.Store.UpdateAudit(cfg.AuditID, func(a *store.Audit) error {
		a.Status = status
		return nil
	}); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	_, err := o.Log.Emit(kind, cfg.AuditID, 0, payload)
	return err
}

// runDirect executes phases in order against the bare tree.
func (o *Orchestrator) runDirect(ctx context.Context, cfg *Config, result *RunResult) error {
	for _, phase := range cfg.Phases {
		pr := o.executePhase(ctx, cfg, phase)
		result.Phases = append(result.Phases, pr)
		if !pr.Success && cfg.FailFast {
			return nil
		}
	}
	return nil
}

// runSandboxed wraps the direct loop in a sandbox and unconditionally
// rolls back on exit. Tracked changes surface as the change summary.
func (o *Orchestrator) runSandboxed(ctx context.Context, cfg *Config, result *RunResult) error {
	engine := sandbox.NewEngine(o.Store, cfg.Root)
	if _, err := engine.Begin(ctx, cfg.AuditID); err != nil {
		return err
	}
	defer func() {
		var summary string
		if c, err := engine.Active(); err == nil && c != nil {
			summary = fmt.Sprintf(
				"%d created, %d modified, %d deleted (rolled back)",
				len(c.Created), len(c.Modified), len(c.Deleted))
		}
		if res, rbErr := engine.Rollback(ctx); rbErr != nil {
			summary += fmt.Sprintf("; rollback failed: %v", rbErr)
		} else if !res.OK() {
			summary += fmt.Sprintf("; %d path(s) not restored (%s: %v)",
				len(res.Failures), res.Failures[0].Path, res.Failures[0].Err)
		}
		result.ChangeSummary = summary
	}()

	for _, phase := range cfg.Phases {
		pr := o.executePhase(ctx, cfg, phase)
		for _, path := range pr.Touched {
			if err := engine.TrackChange(ctx, path); err != nil {
				return err
			}
		}
		result.Phases = append(result.Phases, pr)
		if !pr.Success && cfg.FailFast {
			return nil
		}
	}
	return nil
}

// runBranched creates a branch per phase and commits successful phases.
func (o *Orchestrator) runBranched(ctx context.Context, cfg *Config, result *RunResult) error {
	engine := branch.NewEngine(o.Store, cfg.Root)
	if _, err := engine.Begin(ctx, cfg.AuditID, cfg.Slug, ""); err != nil {
		return err
	}

	for _, phase := range cfg.Phases {
		if _, err := engine.CreatePhaseBranch(ctx, phase.Number, phase.Slug); err != nil {
			return err
		}
		pr := o.executePhase(ctx, cfg, phase)
		if pr.Success {
			if _, err := engine.CommitPhase(ctx, phase.Number, ""); err != nil {
				pr.Success = false
				pr.Error = err.Error()
			}
		}
		result.Phases = append(result.Phases, pr)
		if !pr.Success && cfg.FailFast {
			return nil
		}
	}
	return nil
}

// executePhase runs one phase through the executor, timing it and
// emitting phase lifecycle events.
func (o *Orchestrator) executePhase(ctx context.Context, cfg *Config, phase PlanPhase) PhaseResult {
	pr := PhaseResult{Phase: phase.Number, Description: phase.Description}
	_, _ = o.Log.Emit(event.PhaseStarted, cfg.AuditID, phase.Number, map[string]any{
		"slug": phase.Slug,
	})

	start := time.Now()
	touched, err := o.Executor.ExecutePhase(ctx, cfg, phase)
	pr.Duration = time.Since(start)
	pr.Touched = touched

	if err != nil {
		pr.Error = err.Error()
		_, _ = o.Log.Emit(event.PhaseFailed, cfg.AuditID, phase.Number, map[string]any{
			"error": pr.Error,
		})
		return pr
	}
	pr.Success = true
	_, _ = o.Log.Emit(event.PhaseCompleted, cfg.AuditID, phase.Number, map[string]any{
		"duration_ms": pr.Duration.Milliseconds(),
	})
	return pr
}
