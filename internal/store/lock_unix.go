//go:build unix

package store

import (
	"errors"
	"os"
	"syscall"
)

// lockMode selects between shared (read) and exclusive (write) advisory locks.
type lockMode int

const (
	lockShared lockMode = iota
	lockExclusive
)

// errLockContended reports that another process holds a conflicting lock.
var errLockContended = errors.New("lock contended")

// tryLock acquires a non-blocking flock(2) advisory lock on f.
func tryLock(f *os.File, mode lockMode) error {
	how := syscall.LOCK_SH
	if mode == lockExclusive {
		how = syscall.LOCK_EX
	}
	err := syscall.Flock(int(f.Fd()), how|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK {
		return errLockContended
	}
	return err
}

// unlock releases the advisory lock. Safe to call when not locked.
func unlock(f *os.File) {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
