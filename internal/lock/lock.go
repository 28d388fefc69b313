// Package lock provides an advisory file lock for resources that must have
// a single writer across foreman processes, such as the decision journal.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// FileLock is a held flock. The holder's PID is written into the lock file
// so an operator can see who owns it.
type FileLock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive lock on path without blocking. It fails when
// another process already holds the lock.
func Acquire(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s held elsewhere: %w", filepath.Base(path), err)
	}

	if err := stampPID(f); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, err
	}

	return &FileLock{path: path, file: f}, nil
}

func stampPID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("record holder pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

// Release drops the lock and removes the lock file. Releasing an unheld or
// nil lock is a no-op.
func (fl *FileLock) Release() error {
	if fl == nil || fl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		fl.file.Close()
		return fmt.Errorf("unlock %s: %w", filepath.Base(fl.path), err)
	}

	err := fl.file.Close()
	os.Remove(fl.path)
	fl.file = nil
	if err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}
