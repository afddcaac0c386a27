package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// lockRetryDelays is the back-off schedule applied to contended lock
// acquisition before surfacing ErrStoreBusy.
var lockRetryDelays = []time.Duration{
	100 * time.Millisecond,
	300 * time.Millisecond,
	1 * time.Second,
}

// WriteAtomic writes data to path atomically: the bytes go to a sibling temp
// file under an exclusive advisory lock, are fsynced, and the temp is renamed
// over the target. On any failure the temp file is removed and the target is
// left untouched.
func WriteAtomic(path string, data []byte) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Errorf("create directory %s: %w", dir, mkErr)
		}
	}

	// The temp path is shared between writers, so O_TRUNC here would
	// clobber a concurrent writer's locked, half-written temp. Open the
	// file intact, take the exclusive lock, then truncate.
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if err = lockWithRetry(f, lockExclusive); err != nil {
		// The temp may belong to the writer holding the lock; leave it.
		f.Close()
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if err = f.Truncate(0); err != nil {
		unlock(f)
		return fmt.Errorf("truncate temp file: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		unlock(f)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		unlock(f)
		return fmt.Errorf("sync temp file: %w", err)
	}

	// Release before rename: the rename publishes the new content and
	// readers lock the target, not the temp.
	unlock(f)
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// ReadLocked reads path under a shared advisory lock. A missing file is
// reported via the underlying os error so callers can check os.IsNotExist.
func ReadLocked(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := lockWithRetry(f, lockShared); err != nil {
		return nil, err
	}
	defer unlock(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// lockWithRetry attempts to acquire the advisory lock, backing off on
// contention. Exhausted retries surface ErrStoreBusy.
func lockWithRetry(f *os.File, mode lockMode) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = tryLock(f, mode)
		if err == nil {
			return nil
		}
		if err != errLockContended || attempt >= len(lockRetryDelays) {
			break
		}
		time.Sleep(lockRetryDelays[attempt])
	}
	if err == errLockContended {
		return fmt.Errorf("%w: %s", ErrStoreBusy, f.Name())
	}
	return fmt.Errorf("lock %s: %w", f.Name(), err)
}
