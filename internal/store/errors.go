package store

import "errors"

// Sentinel errors for the store package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable error handling.
var (
	// ErrStoreBusy indicates an advisory lock could not be acquired after retries.
	ErrStoreBusy = errors.New("store is locked by another process")
	// ErrInvalidContent indicates a store file is corrupt or has an unexpected shape.
	ErrInvalidContent = errors.New("invalid store file content")
	// ErrMissingField indicates a required record field is empty.
	ErrMissingField = errors.New("required field missing")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)
