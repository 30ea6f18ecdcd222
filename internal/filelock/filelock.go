// Package filelock provides named, non-blocking process-wide locks and
// advisory locked file reads and writes, built on flock(2).
package filelock

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Names of the locks that gate multi-file operations.
const (
	Build  = "build"
	Deploy = "deploy"
)

// ErrLocked is returned when a named lock is held by someone else.
var ErrLocked = errors.New("lock is held")

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// acquireAttempts bounds retries when the lock file is replaced while we
// wait for it.
const acquireAttempts = 3

// Manager hands out named locks stored as <dir>/<name>.lock.
type Manager struct {
	dir string
	log *zap.SugaredLogger
}

// NewManager creates a lock manager for dir.
func NewManager(dir string, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{dir: dir, log: log}
}

// Lock is a held named lock.
type Lock struct {
	name string
	path string
	f    *os.File
}

// Name returns the lock name.
func (l *Lock) Name() string {
	return l.name
}

// Acquire takes the named lock without waiting. If the lock is held the
// returned error wraps ErrLocked.
func (m *Manager) Acquire(name string) (*Lock, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid lock name %q", name)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := filepath.Join(m.dir, name+".lock")

	for attempt := 0; attempt < acquireAttempts; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open lock file: %w", err)
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				m.log.Infow("lock busy", "lock", name)
				return nil, fmt.Errorf("%w: %s", ErrLocked, name)
			}
			return nil, fmt.Errorf("failed to lock %s: %w", name, err)
		}

		// The previous holder removes the file on release. A lock on an
		// unlinked file protects nothing, so try again on the new file.
		if !samePath(f, path) {
			unix.Flock(int(f.Fd()), unix.LOCK_UN)
			f.Close()
			continue
		}

		if err := f.Truncate(0); err == nil {
			f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
		}
		m.log.Debugw("lock acquired", "lock", name)
		return &Lock{name: name, path: path, f: f}, nil
	}
	return nil, fmt.Errorf("%w: %s (lock file keeps changing)", ErrLocked, name)
}

func samePath(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}

// Release removes the lock file and drops the lock. It is safe to call more
// than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	var errs []error
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		errs = append(errs, err)
	}
	if err := l.f.Close(); err != nil {
		errs = append(errs, err)
	}
	l.f = nil
	return errors.Join(errs...)
}

// With runs fn while holding the named lock. The lock is released on every
// exit path, including a panic in fn.
func (m *Manager) With(name string, fn func() error) (err error) {
	lock, err := m.Acquire(name)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			m.log.Warnw("failed to release lock", "lock", name, "error", rerr)
			if err == nil {
				err = fmt.Errorf("failed to release lock %s: %w", name, rerr)
			}
		}
	}()
	return fn()
}

// ReadFile reads path under a shared advisory lock.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("failed to lock %s for reading: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return io.ReadAll(f)
}

// WriteFile replaces the content of path under an exclusive advisory lock,
// creating parent directories as needed. Readers that take the shared lock
// never see a partial write.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock %s for writing: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
