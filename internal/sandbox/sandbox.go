// Package sandbox provides the execution sandbox: audit phases run
// against the real working tree, with every write tracked so the whole
// run can be rolled back to the pre-audit state or kept.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phaserhq/phaser/internal/git"
	"github.com/phaserhq/phaser/internal/store"
)

// Change kinds reported by write callers.
const (
	KindCreated  = "created"
	KindModified = "modified"
	KindDeleted  = "deleted"
)

// Engine manages the sandbox lifecycle for one project root.
type Engine struct {
	Store *store.Store
	Root  string
	// StashPrefix customizes the stash message; empty uses the default.
	StashPrefix string

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

// Begin starts a sandbox for the audit: it verifies the root is a git
// repository with no other active sandbox, records the current branch,
// stashes uncommitted changes, and persists the context.
func (e *Engine) Begin(ctx context.Context, auditID string) (*Context, error) {
	if !git.IsRepo(ctx, e.Root) {
		return nil, fmt.Errorf("%w: %s", ErrNotRepo, e.Root)
	}
	existing, err := e.Active()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w (audit %s)", ErrActive, existing.AuditID)
	}

	runner, err := git.NewRunner(ctx, e.Root)
	if err != nil {
		return nil, err
	}
	branch, err := runner.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	c := &Context{
		AuditID:   auditID,
		Root:      e.Root,
		Branch:    branch,
		StartedAt: store.NowTimestamp(),
		Active:    true,
	}

	message := StashMessage(e.StashPrefix, auditID)
	stashed, err := runner.StashPush(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("stashing working tree: %w", err)
	}
	if stashed {
		c.StashRef = message
	}

	if err := saveContext(e.Store, c); err != nil {
		if stashed {
			// Undo the stash so the tree is back where it started.
			_ = runner.StashPop(ctx, message)
		}
		return nil, err
	}
	e.ctx = c
	e.git = runner
	return c, nil
}

// Track records one write. Paths outside the root are silently ignored.
// The context is re-persisted after each track so a crash between tracks
// leaves a recoverable record.
func (e *Engine) Track(path, kind string) error {
	c, err := e.Active()
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotActive
	}
	rel, ok := normalize(c.Root, path)
	if !ok {
		return nil
	}
	c.Track(rel, kind)
	return saveContext(e.Store, c)
}

// TrackChange records one write, classifying it against the tree and
// HEAD: a missing path is a deletion, a path absent from HEAD is a
// creation, anything else a modification. For callers like the
// orchestrator that only learn which paths a phase touched, not how.
func (e *Engine) TrackChange(ctx context.Context, path string) error {
	c, err := e.Active()
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotActive
	}
	rel, ok := normalize(c.Root, path)
	if !ok {
		return nil
	}
	runner, err := e.runnerFor(ctx, c.Root)
	if err != nil {
		return err
	}

	kind := KindModified
	full := filepath.Join(c.Root, filepath.FromSlash(rel))
	if _, statErr := os.Lstat(full); os.IsNotExist(statErr) {
		kind = KindDeleted
	} else if !runner.InHead(ctx, rel) {
		kind = KindCreated
	}
	c.Track(rel, kind)
	return saveContext(e.Store, c)
}

// ItemError is one tolerated per-path failure during rollback.
type ItemError struct {
	Path string
	Err  error
}

// RollbackResult reports what a rollback restored and what it could not.
type RollbackResult struct {
	Restored int
	Failures []ItemError
}

// OK reports whether every step succeeded.
func (r *RollbackResult) OK() bool { return len(r.Failures) == 0 }

// Rollback restores the pre-audit tree: created files are unlinked and
// their emptied parent directories pruned, modified and deleted files
// are checked out from HEAD, and the begin-time stash is popped. Each
// step tolerates per-item failure and continues; the result's OK is the
// AND of every step. The context is then deactivated and removed.
func (e *Engine) Rollback(ctx context.Context) (*RollbackResult, error) {
	c, err := e.Active()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotActive
	}
	runner, err := e.runnerFor(ctx, c.Root)
	if err != nil {
		return nil, err
	}

	result := &RollbackResult{}
	for _, rel := range c.Created {
		// A path also tracked as modified or deleted takes that
		// bucket's handling instead.
		if contains(c.Modified, rel) || contains(c.Deleted, rel) {
			continue
		}
		full := filepath.Join(c.Root, filepath.FromSlash(rel))
		if _, statErr := os.Lstat(full); os.IsNotExist(statErr) {
			continue
		}
		if rmErr := os.Remove(full); rmErr != nil {
			result.Failures = append(result.Failures, ItemError{Path: rel, Err: rmErr})
			continue
		}
		pruneEmptyDirs(c.Root, filepath.Dir(full))
		result.Restored++
	}

	for _, rel := range c.Modified {
		if contains(c.Deleted, rel) {
			continue
		}
		if coErr := runner.CheckoutFile(ctx, rel); coErr != nil {
			result.Failures = append(result.Failures, ItemError{Path: rel, Err: coErr})
			continue
		}
		result.Restored++
	}

	for _, rel := range c.Deleted {
		if coErr := runner.CheckoutFile(ctx, rel); coErr != nil {
			result.Failures = append(result.Failures, ItemError{Path: rel, Err: coErr})
			continue
		}
		result.Restored++
	}

	if c.StashRef != "" {
		if popErr := runner.StashPop(ctx, c.StashRef); popErr != nil {
			result.Failures = append(result.Failures, ItemError{Path: c.StashRef, Err: popErr})
		}
	}

	if err := e.deactivate(); err != nil {
		return result, err
	}
	return result, nil
}

// Commit keeps the audit's changes: the begin-time stash is dropped
// without applying, so uncommitted changes that predated begin are
// discarded. The context is deactivated and removed.
func (e *Engine) Commit(ctx context.Context) error {
	c, err := e.Active()
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotActive
	}
	if c.StashRef != "" {
		runner, err := e.runnerFor(ctx, c.Root)
		if err != nil {
			return err
		}
		if err := runner.StashDrop(ctx, c.StashRef); err != nil {
			return fmt.Errorf("dropping stash: %w", err)
		}
	}
	return e.deactivate()
}

// Session runs fn inside a sandbox with guaranteed release: rollback on
// every exit path, including panics, unless fn returns keep=true, in
// which case the changes are committed.
func (e *Engine) Session(ctx context.Context, auditID string, fn func(c *Context) (keep bool, err error)) error {
	c, err := e.Begin(ctx, auditID)
	if err != nil {
		return err
	}

	keep := false
	defer func() {
		if keep {
			return
		}
		_, _ = e.Rollback(ctx)
	}()

	keep, err = fn(c)
	if err != nil {
		keep = false
		return err
	}
	if keep {
		return e.Commit(ctx)
	}
	return nil
}

func (e *Engine) runnerFor(ctx context.Context, root string) (*git.Runner, error) {
	if e.git != nil && e.git.Dir() == root {
		return e.git, nil
	}
	runner, err := git.NewRunner(ctx, root)
	if err != nil {
		return nil, err
	}
	e.git = runner
	return runner, nil
}

func (e *Engine) deactivate() error {
	e.ctx.Active = false
	e.ctx = nil
	return removeContext(e.Store)
}

// pruneEmptyDirs removes now-empty parent directories walking upward,
// stopping at the root.
func pruneEmptyDirs(root, dir string) {
	for dir != root && len(dir) > len(root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
