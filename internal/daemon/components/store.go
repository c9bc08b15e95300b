package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/daemon"
	"github.com/regnantlabs/regent/internal/store"
)

// StoreComponent owns the bbolt database and its exclusive file lock.
type StoreComponent struct {
	cfg         *config.StoreConfig
	store       *store.Store
	initialized bool
	mu          sync.RWMutex
}

func NewStoreComponent(cfg *config.StoreConfig) *StoreComponent {
	return &StoreComponent{cfg: cfg}
}

func (s *StoreComponent) Name() string {
	return "Store"
}

func (s *StoreComponent) Dependencies() []string {
	return []string{}
}

func (s *StoreComponent) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockTimeout, err := config.DurationOrDefault(s.cfg.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return fmt.Errorf("parse store lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(s.cfg.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return fmt.Errorf("parse store lock retry: %w", err)
	}
	lockMaxRetry := s.cfg.LockMaxRetry
	if lockMaxRetry <= 0 {
		lockMaxRetry = config.DefaultStoreLockMaxRetry
	}

	db, err := store.Open(s.cfg.Path, store.RuntimeConfig{
		LockTimeout:  lockTimeout,
		LockRetry:    lockRetry,
		LockMaxRetry: lockMaxRetry,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	s.store = db
	s.initialized = true
	slog.Info("store initialized", "component", s.Name(), "path", s.cfg.Path)
	return nil
}

func (s *StoreComponent) Start(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return fmt.Errorf("store not initialized")
	}
	return nil
}

func (s *StoreComponent) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	s.store = nil
	s.initialized = false
	slog.Info("store closed", "component", s.Name())
	return nil
}

func (s *StoreComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized || s.store == nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if !s.store.IsLockHeld() {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("lock not held")}, nil
	}
	return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
}

func (s *StoreComponent) Store() *store.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}
