package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquire_RecordsHolderPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.lock")

	fl, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer fl.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("lock file does not contain a PID: %q", data)
	}
	if pid != os.Getpid() {
		t.Errorf("expected PID %d in lock file, got %d", os.Getpid(), pid)
	}
}

func TestAcquire_HeldLockRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer first.Release()

	if second, err := Acquire(path); err == nil {
		second.Release()
		t.Fatal("expected second Acquire to fail while lock is held")
	}
}

func TestRelease_FreesLockAndRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still exists after Release")
	}

	second, err := Acquire(path)
	if err != nil {
		t.Fatalf("re-acquire after release failed: %v", err)
	}
	second.Release()
}

func TestRelease_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.lock")

	fl, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := fl.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := fl.Release(); err != nil {
		t.Fatalf("second Release should be a no-op, got: %v", err)
	}

	var nilLock *FileLock
	if err := nilLock.Release(); err != nil {
		t.Fatalf("nil Release should be a no-op, got: %v", err)
	}
}
