// Package git wraps the git CLI for the sandbox and branch engines.
// Every operation shells out with -C so the caller never has to chdir.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes git commands in a fixed working directory.
type Runner struct {
	dir string
}

// NewRunner creates a Runner for the given directory. It returns an error
// if git is unavailable or the directory is not inside a repository.
func NewRunner(ctx context.Context, dir string) (*Runner, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git not available: %w", err)
	}
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--git-dir")
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("not a git repository: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return &Runner{dir: dir}, nil
}

// Dir returns the working directory commands run in.
func (r *Runner) Dir() string { return r.dir }

// run executes git with the given arguments and returns trimmed stdout.
// Stderr is folded into the error.
func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	cmdArgs := append([]string{"-C", r.dir}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether a directory is inside a git work tree.
func IsRepo(ctx context.Context, dir string) bool {
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

// CurrentBranch returns the checked-out branch name, or the short commit
// SHA when HEAD is detached.
func (r *Runner) CurrentBranch(ctx context.Context) (string, error) {
	name, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if name == "HEAD" {
		return r.run(ctx, "rev-parse", "--short", "HEAD")
	}
	return name, nil
}

// HeadSHA returns the full commit hash of HEAD.
func (r *Runner) HeadSHA(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "HEAD")
}

// HasChanges reports whether the working tree has staged, unstaged, or
// untracked changes.
func (r *Runner) HasChanges(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// StashPush saves the working tree, including untracked files, under the
// given message. It returns false when there was nothing to stash.
func (r *Runner) StashPush(ctx context.Context, message string) (bool, error) {
	dirty, err := r.HasChanges(ctx)
	if err != nil {
		return false, err
	}
	if !dirty {
		return false, nil
	}
	if _, err := r.run(ctx, "stash", "push", "--include-untracked", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

// StashPop restores the most recent stash whose message matches and drops
// it. A missing stash is not an error.
func (r *Runner) StashPop(ctx context.Context, message string) error {
	ref, err := r.findStash(ctx, message)
	if err != nil || ref == "" {
		return err
	}
	_, err = r.run(ctx, "stash", "pop", ref)
	return err
}

// StashDrop discards the most recent stash whose message matches. A
// missing stash is not an error.
func (r *Runner) StashDrop(ctx context.Context, message string) error {
	ref, err := r.findStash(ctx, message)
	if err != nil || ref == "" {
		return err
	}
	_, err = r.run(ctx, "stash", "drop", ref)
	return err
}

// findStash returns the stash ref whose message contains the given text,
// or empty when none does.
func (r *Runner) findStash(ctx context.Context, message string) (string, error) {
	out, err := r.run(ctx, "stash", "list", "--format=%gd %gs")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		ref, subject, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		if strings.Contains(subject, message) {
			return ref, nil
		}
	}
	return "", nil
}

// CheckoutFile restores one path from HEAD, discarding working tree
// changes to it.
func (r *Runner) CheckoutFile(ctx context.Context, path string) error {
	_, err := r.run(ctx, "checkout", "HEAD", "--", path)
	return err
}

// InHead reports whether the repo-relative slash path exists in the HEAD
// tree.
func (r *Runner) InHead(ctx context.Context, path string) bool {
	_, err := r.run(ctx, "cat-file", "-e", "HEAD:"+path)
	return err == nil
}

// BranchExists reports whether a local branch with the given name exists.
func (r *Runner) BranchExists(ctx context.Context, name string) (bool, error) {
	out, err := r.run(ctx, "branch", "--list", name)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CreateBranch creates a branch at the given start point and checks it
// out. An empty start point branches from HEAD.
func (r *Runner) CreateBranch(ctx context.Context, name, startPoint string) error {
	args := []string{"checkout", "-b", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	_, err := r.run(ctx, args...)
	return err
}

// Checkout switches to an existing branch.
func (r *Runner) Checkout(ctx context.Context, name string) error {
	_, err := r.run(ctx, "checkout", name)
	return err
}

// DeleteBranch removes a local branch. With force set it deletes branches
// whose commits are not reachable from the current HEAD.
func (r *Runner) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.run(ctx, "branch", flag, name)
	return err
}

// AddAll stages every change in the working tree.
func (r *Runner) AddAll(ctx context.Context) error {
	_, err := r.run(ctx, "add", "-A")
	return err
}

// Commit creates a commit with the given message and returns its SHA.
func (r *Runner) Commit(ctx context.Context, message string) (string, error) {
	if _, err := r.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	return r.HeadSHA(ctx)
}

// MergeSquash squash-merges a branch into the current one and commits the
// result with the given message.
func (r *Runner) MergeSquash(ctx context.Context, branch, message string) error {
	if _, err := r.run(ctx, "merge", "--squash", branch); err != nil {
		return err
	}
	_, err := r.run(ctx, "commit", "-m", message)
	return err
}

// MergeFF fast-forwards the current branch to another. It fails rather
// than creating a merge commit when fast-forward is impossible.
func (r *Runner) MergeFF(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "merge", "--ff-only", branch)
	return err
}

// MergeNoFF merges a branch into the current one with an explicit merge
// commit.
func (r *Runner) MergeNoFF(ctx context.Context, branch, message string) error {
	_, err := r.run(ctx, "merge", "--no-ff", "-m", message, branch)
	return err
}

// Rebase replays the current branch onto the given base.
func (r *Runner) Rebase(ctx context.Context, onto string) error {
	_, err := r.run(ctx, "rebase", onto)
	return err
}

// Log returns the subject lines of the most recent commits, newest first.
func (r *Runner) Log(ctx context.Context, limit int) ([]string, error) {
	out, err := r.run(ctx, "log", fmt.Sprintf("-%d", limit), "--format=%s")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
