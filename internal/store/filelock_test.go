package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fastLockConfig() *FileLockConfig {
	return &FileLockConfig{
		LockTimeout:  500 * time.Millisecond,
		LockRetry:    10 * time.Millisecond,
		LockMaxRetry: 3,
	}
}

func TestFileLockAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	fl, err := NewFileLock(dir, fastLockConfig())
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if !fl.IsLocked() {
		t.Error("Lock should report held")
	}

	fl.Unlock()
	if fl.IsLocked() {
		t.Error("Lock should report released")
	}

	// Double unlock is harmless.
	fl.Unlock()
}

func TestFileLockSecondInstanceFails(t *testing.T) {
	dir := t.TempDir()

	fl, err := NewFileLock(dir, fastLockConfig())
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer fl.Unlock()

	if _, err := NewFileLock(dir, fastLockConfig()); err == nil {
		t.Error("Second instance should fail to acquire the lock")
	}
}

func TestFileLockReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	fl, err := NewFileLock(dir, fastLockConfig())
	if err != nil {
		t.Fatal(err)
	}
	fl.Unlock()

	fl2, err := NewFileLock(dir, fastLockConfig())
	if err != nil {
		t.Fatalf("Reacquire after release failed: %v", err)
	}
	fl2.Unlock()
}

func TestCleanupStaleLocks(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "regent.lock")
	if err := os.WriteFile(lockPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	// Without force the stale lock is reported but kept.
	if err := CleanupStaleLocks(dir, 15*time.Minute, false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Errorf("Lock removed without force: %v", err)
	}

	if err := CleanupStaleLocks(dir, 15*time.Minute, true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("Stale lock not removed with force")
	}
}

func TestCleanupStaleLocksKeepsFreshLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "regent.lock")
	if err := os.WriteFile(lockPath, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if err := CleanupStaleLocks(dir, 15*time.Minute, true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Errorf("Fresh lock should survive cleanup: %v", err)
	}
}

func TestCleanupStaleLocksMissingFile(t *testing.T) {
	if err := CleanupStaleLocks(t.TempDir(), time.Minute, true); err != nil {
		t.Errorf("Missing lock file should not error: %v", err)
	}
}
