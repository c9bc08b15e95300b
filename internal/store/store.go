package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/regnantlabs/regent/internal/config"

	"go.etcd.io/bbolt"
)

// Bucket names in bbolt
var (
	bucketCommands   = []byte("commands")
	bucketEvents     = []byte("events")
	bucketExecutions = []byte("executions")
	bucketSettings   = []byte("settings")
	bucketSchedules  = []byte("schedules")
	bucketQuota      = []byte("quota")
)

// Store is the durable state of the core: command records, the append-only
// event log, execution traces, workspace settings, and schedules. A file lock
// guards the data directory against a second instance.
type Store struct {
	db       *bbolt.DB
	fileLock *FileLock
	path     string
}

type RuntimeConfig struct {
	LockTimeout  time.Duration
	LockRetry    time.Duration
	LockMaxRetry int
}

func Open(path string, runtimeCfg RuntimeConfig) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", path, err)
	}

	if runtimeCfg.LockTimeout <= 0 {
		d, err := config.DurationOrDefault("", config.DefaultStoreLockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse default store lock timeout: %w", err)
		}
		runtimeCfg.LockTimeout = d
	}
	if runtimeCfg.LockRetry <= 0 {
		d, err := config.DurationOrDefault("", config.DefaultStoreLockRetry)
		if err != nil {
			return nil, fmt.Errorf("parse default store lock retry: %w", err)
		}
		runtimeCfg.LockRetry = d
	}
	if runtimeCfg.LockMaxRetry <= 0 {
		runtimeCfg.LockMaxRetry = config.DefaultStoreLockMaxRetry
	}

	fileLock, err := NewFileLock(path, &FileLockConfig{
		LockTimeout:  runtimeCfg.LockTimeout,
		LockRetry:    runtimeCfg.LockRetry,
		LockMaxRetry: runtimeCfg.LockMaxRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	dbPath := filepath.Join(path, "regent.db")
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: runtimeCfg.LockTimeout})
	if err != nil {
		fileLock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketCommands, bucketEvents, bucketExecutions, bucketSettings, bucketSchedules, bucketQuota}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		fileLock.Unlock()
		return nil, fmt.Errorf("failed to init buckets: %w", err)
	}

	slog.Info("Store opened", "path", dbPath)
	return &Store{db: db, fileLock: fileLock, path: path}, nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.fileLock.IsLocked() {
		s.fileLock.Unlock()
	}
	return err
}

func (s *Store) IsLockHeld() bool {
	return s.fileLock.IsLocked()
}

func (s *Store) Path() string {
	return s.path
}
