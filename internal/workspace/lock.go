// Package workspace provides project-level file utilities: path
// normalization, atomic writes and the process lock that keeps two fixsync
// runs from synchronizing the same project at once.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

const lockFileName = ".fixsync.lock"

// ErrLocked is returned by AcquireLock when another process holds the lock.
var ErrLocked = errors.New("project is locked by another fixsync process")

// Lock represents an acquired project lock.
type Lock struct {
	file        *os.File
	lockPath    string
	sigChan     chan os.Signal
	mu          sync.Mutex
	cleanupOnce sync.Once
}

// AcquireLock takes an exclusive, non-blocking flock on <stateDir>/.fixsync.lock.
// Apply and undo rewrite sources, patches and the issue store in sequence; a
// second process interleaving with that sequence would corrupt the snapshot.
// The returned Lock must be released with Release.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	lockPath := filepath.Join(stateDir, lockFileName)

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		if pid := LockHolder(stateDir); pid > 0 {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
		}
		return nil, ErrLocked
	}

	// PID for LockHolder and for humans.
	lockFile.Truncate(0)
	lockFile.Seek(0, 0)
	fmt.Fprintf(lockFile, "%d\n", os.Getpid())

	lock := &Lock{
		file:     lockFile,
		lockPath: lockPath,
		sigChan:  make(chan os.Signal, 1),
	}

	signal.Notify(lock.sigChan, syscall.SIGINT, syscall.SIGTERM)
	sigChan := lock.sigChan // Release sets the field to nil
	go func() {
		sig, ok := <-sigChan
		if ok && sig != nil {
			lock.cleanup()
			os.Exit(130)
		}
	}()

	return lock, nil
}

// LockHolder returns the PID recorded in the lock file, or 0.
func LockHolder(stateDir string) int {
	data, err := os.ReadFile(filepath.Join(stateDir, lockFileName))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// Release releases the lock and removes the lock file. Safe to call twice.
func (l *Lock) Release() {
	l.mu.Lock()
	if l.file == nil {
		l.mu.Unlock()
		return
	}
	if l.sigChan != nil {
		signal.Stop(l.sigChan)
		close(l.sigChan)
		l.sigChan = nil
	}
	l.mu.Unlock()
	l.cleanup()
}

func (l *Lock) cleanup() {
	l.cleanupOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.file == nil {
			return
		}
		syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		l.file.Close()
		os.Remove(l.lockPath)
		l.file = nil
	})
}
