package sandbox

import "errors"

// Sentinel errors for the sandbox package, matched with errors.Is.
var (
	// ErrNotRepo indicates the audit root is not a git working tree.
	ErrNotRepo = errors.New("root is not a git repository")
	// ErrActive indicates another sandbox context is already active.
	ErrActive = errors.New("a sandbox is already active for this root")
	// ErrNotActive indicates no sandbox context exists to operate on.
	ErrNotActive = errors.New("no active sandbox")
)
