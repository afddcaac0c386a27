package branch

import "errors"

// Sentinel errors for the branch package, matched with errors.Is.
var (
	// ErrActive indicates another branch context is already active.
	ErrActive = errors.New("branch mode is already active for this root")
	// ErrNotActive indicates no branch context exists to operate on.
	ErrNotActive = errors.New("branch mode is not active")
	// ErrDirtyTree indicates uncommitted changes block entering branch mode.
	ErrDirtyTree = errors.New("working tree has uncommitted changes")
	// ErrBranchExists indicates the phase branch name is already taken.
	ErrBranchExists = errors.New("branch already exists")
	// ErrNoPhases indicates an operation needs at least one phase branch.
	ErrNoPhases = errors.New("no phase branches created")
)
