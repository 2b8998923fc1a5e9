package tx

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/arloliu/tsdb/errs"
)

const compactLockFileName = ".compact"

// CompactLock is the exclusive advisory file lock named `.compact` that
// coordinates compactors against one transaction directory (§5, §6): "two
// compactors cannot race". Grounded on golang.org/x/sys/unix.Flock, the
// same mechanism selfstack reaches for where it needs a cross-process
// mutex on a shared directory.
type CompactLock struct {
	file *os.File
}

// AcquireCompactLock takes an exclusive, non-blocking lock on dir's
// `.compact` file. It returns errs.ErrCompactionLocked if another
// compactor already holds it.
func AcquireCompactLock(dir string) (*CompactLock, error) {
	path := filepath.Join(dir, compactLockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errs.Wrap("open", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, errs.ErrCompactionLocked
		}
		return nil, errs.Wrap("flock", path, err)
	}

	return &CompactLock{file: f}, nil
}

// Release drops the lock and closes the underlying file descriptor. The
// `.compact` file itself is left in place; only the lock is released.
func (l *CompactLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}
