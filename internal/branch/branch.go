// Package branch provides branch-mode audits: each phase runs on its own
// chained git branch, merged back onto the base as one series when the
// audit completes.
package branch

import (
	"context"
	"fmt"

	"github.com/phaserhq/phaser/internal/git"
	"github.com/phaserhq/phaser/internal/store"
)

// Engine manages the branch-mode lifecycle for one project root.
type Engine struct {
	Store *store.Store
	Root  string

	ctx *Context
	git *git.Runner
}

// NewEngine returns an Engine over the given store and project root.
func NewEngine(s *store.Store, root string) *Engine {
	return &Engine{Store: s, Root: root}
}

// Active returns the in-memory context, loading the persisted one on
// first use.
func (e *Engine) Active() (*Context, error) {
	if e.ctx != nil {
		return e.ctx, nil
	}
	c, err := LoadContext(e.Store)
	if err != nil {
		return nil, err
	}
	if c != nil && c.Active {
		e.ctx = c
	}
	return e.ctx, nil
}

// Begin enters branch mode: it requires no other active branch context
// and a clean working tree, records the base branch, and persists the
// context. An empty base uses the currently checked-out branch.
func (e *Engine) Begin(ctx context.Context, auditID, slug, base string) (*Context, error) {
	existing, err := e.Active()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w (audit %s)", ErrActive, existing.AuditID)
	}

	runner, err := e.runner(ctx)
	if err != nil {
		return nil, err
	}
	dirty, err := runner.HasChanges(ctx)
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, ErrDirtyTree
	}
	if base == "" {
		base, err = runner.CurrentBranch(ctx)
		if err != nil {
			return nil, err
		}
	}
	if slug == "" {
		slug = auditID
	}

	c := &Context{
		AuditID:   auditID,
		Slug:      Slugify(slug),
		Root:      e.Root,
		Base:      base,
		StartedAt: store.NowTimestamp(),
		Active:    true,
	}
	if err := saveContext(e.Store, c); err != nil {
		return nil, err
	}
	e.ctx = c
	return c, nil
}

// CreatePhaseBranch creates and checks out the branch for a phase,
// chaining from the previous phase branch's tip, or the base for the
// first phase.
func (e *Engine) CreatePhaseBranch(ctx context.Context, phase int, phaseSlug string) (*BranchInfo, error) {
	c, err := e.Active()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotActive
	}
	runner, err := e.runner(ctx)
	if err != nil {
		return nil, err
	}

	name := PhaseBranchName(c.Slug, phase, phaseSlug)
	exists, err := runner.BranchExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	from := c.Base
	if last := c.Last(); last != nil {
		from = last.Name
	}
	if err := runner.CreateBranch(ctx, name, from); err != nil {
		return nil, err
	}

	c.Branches = append(c.Branches, BranchInfo{
		Phase: phase,
		Slug:  Slugify(phaseSlug),
		Name:  name,
	})
	if err := saveContext(e.Store, c); err != nil {
		return nil, err
	}
	return c.Last(), nil
}

// CommitPhase stages and commits the phase's work on the current branch.
// A clean tree short-circuits to a nil SHA, leaving the branch present.
// An empty message defaults to "Phase {n}: {phase-slug}".
func (e *Engine) CommitPhase(ctx context.Context, phase int, message string) (string, error) {
	c, err := e.Active()
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", ErrNotActive
	}
	info := c.findPhase(phase)
	if info == nil {
		return "", fmt.Errorf("no branch created for phase %d", phase)
	}
	runner, err := e.runner(ctx)
	if err != nil {
		return "", err
	}

	dirty, err := runner.HasChanges(ctx)
	if err != nil {
		return "", err
	}
	if !dirty {
		return "", nil
	}

	if err := runner.AddAll(ctx); err != nil {
		return "", err
	}
	if message == "" {
		message = fmt.Sprintf("Phase %d: %s", phase, info.Slug)
	}
	sha, err := runner.Commit(ctx, message)
	if err != nil {
		return "", err
	}
	info.CommitSHA = sha
	if err := saveContext(e.Store, c); err != nil {
		return "", err
	}
	return sha, nil
}

// MergeAll lands the phase series on the target (default = base).
// Because phase branches chain linearly, merging the last branch carries
// the whole series. On success every BranchInfo is marked merged.
func (e *Engine) MergeAll(ctx context.Context, strategy MergeStrategy, target, message string) error {
	c, err := e.Active()
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotActive
	}
	last := c.Last()
	if last == nil {
		return ErrNoPhases
	}
	runner, err := e.runner(ctx)
	if err != nil {
		return err
	}

	if target == "" {
		target = c.Base
	}
	if message == "" {
		message = fmt.Sprintf("Complete %s audit", c.Slug)
	}

	switch strategy {
	case MergeRebase:
		if err := runner.Checkout(ctx, last.Name); err != nil {
			return err
		}
		if err := runner.Rebase(ctx, target); err != nil {
			return err
		}
		if err := runner.Checkout(ctx, target); err != nil {
			return err
		}
		if err := runner.MergeFF(ctx, last.Name); err != nil {
			return err
		}
	case MergeNoFF:
		if err := runner.Checkout(ctx, target); err != nil {
			return err
		}
		if err := runner.MergeNoFF(ctx, last.Name, message); err != nil {
			return err
		}
	default:
		if err := runner.Checkout(ctx, target); err != nil {
			return err
		}
		if err := runner.MergeSquash(ctx, last.Name, message); err != nil {
			return err
		}
	}

	for i := range c.Branches {
		c.Branches[i].Merged = true
	}
	return saveContext(e.Store, c)
}

// Cleanup checks out the base and deletes every phase branch. Deletion
// always forces: squash merges never register with git's merge
// detector, so -d would refuse branches that are in fact landed.
func (e *Engine) Cleanup(ctx context.Context) (int, error) {
	c, err := e.Active()
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, ErrNotActive
	}
	runner, err := e.runner(ctx)
	if err != nil {
		return 0, err
	}

	if err := runner.Checkout(ctx, c.Base); err != nil {
		return 0, err
	}
	deleted := 0
	for _, info := range c.Branches {
		exists, err := runner.BranchExists(ctx, info.Name)
		if err != nil {
			return deleted, err
		}
		if !exists {
			continue
		}
		if err := runner.DeleteBranch(ctx, info.Name, true); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// End leaves branch mode: the context is deactivated and its persisted
// form removed. Cleanup is a separate call.
func (e *Engine) End() error {
	c, err := e.Active()
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotActive
	}
	c.Active = false
	e.ctx = nil
	return removeContext(e.Store)
}

func (c *Context) findPhase(phase int) *BranchInfo {
	for i := range c.Branches {
		if c.Branches[i].Phase == phase {
			return &c.Branches[i]
		}
	}
	return nil
}

func (e *Engine) runner(ctx context.Context) (*git.Runner, error) {
	if e.git != nil {
		return e.git, nil
	}
	runner, err := git.NewRunner(ctx, e.Root)
	if err != nil {
		return nil, err
	}
	e.git = runner
	return runner, nil
}
