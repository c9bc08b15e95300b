package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/daemon"
	"github.com/regnantlabs/regent/internal/scheduler"
)

// SchedulerComponent runs the cron engine when scheduling is enabled.
type SchedulerComponent struct {
	cfg          *config.SchedulerConfig
	storeComp    *StoreComponent
	govComp      *GovernanceComponent
	adaptersComp *AdaptersComponent
	engine       *scheduler.Engine
	cancel       context.CancelFunc
	mu           sync.RWMutex
}

// NewSchedulerComponent builds the scheduler. adaptersComp may be nil; when
// present, the first running chat adapter carries approval notifications.
func NewSchedulerComponent(cfg *config.SchedulerConfig, storeComp *StoreComponent, govComp *GovernanceComponent, adaptersComp *AdaptersComponent) *SchedulerComponent {
	return &SchedulerComponent{cfg: cfg, storeComp: storeComp, govComp: govComp, adaptersComp: adaptersComp}
}

func (s *SchedulerComponent) Name() string {
	return "Scheduler"
}

func (s *SchedulerComponent) Dependencies() []string {
	deps := []string{"Store", "Governance"}
	if s.adaptersComp != nil {
		deps = append(deps, s.adaptersComp.Name())
	}
	return deps
}

func (s *SchedulerComponent) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		slog.Info("scheduler disabled", "component", s.Name())
		return nil
	}

	engine, err := scheduler.NewEngine(s.storeComp.Store(), s.govComp.Bus(), *s.cfg)
	if err != nil {
		return fmt.Errorf("build scheduler engine: %w", err)
	}

	if s.adaptersComp != nil {
		if manager := s.adaptersComp.Manager(); manager != nil {
			if outputs := manager.OutputAdapters(); len(outputs) > 0 {
				engine.SetNotifier(outputs[0])
				slog.Info("scheduler approval notifications routed", "adapter", outputs[0].Name())
			}
		}
	}

	s.engine = engine
	slog.Info("scheduler initialized", "component", s.Name())
	return nil
}

func (s *SchedulerComponent) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	return s.engine.Start(runCtx)
}

func (s *SchedulerComponent) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	return s.engine.Stop(ctx)
}

func (s *SchedulerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.engine == nil {
		// Disabled schedulers are healthy, there is nothing to run.
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
	}
	if err := s.engine.Health(ctx); err != nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
}

func (s *SchedulerComponent) Engine() *scheduler.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}
