//go:build !unix

package store

import (
	"errors"
	"os"
)

// On platforms without flock(2) semantics the store falls back to an
// exclusive-create .lock sibling: O_EXCL gives the compare-and-swap, and the
// atomic-rename contract is unchanged. Shared locks degrade to exclusive.

type lockMode int

const (
	lockShared lockMode = iota
	lockExclusive
)

var errLockContended = errors.New("lock contended")

func tryLock(f *os.File, _ lockMode) error {
	lf, err := os.OpenFile(f.Name()+".lock", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errLockContended
		}
		return err
	}
	return lf.Close()
}

func unlock(f *os.File) {
	_ = os.Remove(f.Name() + ".lock")
}
