package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/regnantlabs/regent/internal/adapter"
	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/daemon"
)

// AdaptersComponent runs the enabled chat adapters.
type AdaptersComponent struct {
	cfg         *config.AdaptersConfig
	workspaceID string
	govComp     *GovernanceComponent
	regComp     *RegistryComponent
	manager     *adapter.RuntimeManager
	cancel      context.CancelFunc
	mu          sync.RWMutex
}

func NewAdaptersComponent(cfg *config.AdaptersConfig, workspaceID string, govComp *GovernanceComponent, regComp *RegistryComponent) *AdaptersComponent {
	return &AdaptersComponent{
		cfg:         cfg,
		workspaceID: workspaceID,
		govComp:     govComp,
		regComp:     regComp,
	}
}

func (a *AdaptersComponent) Name() string {
	return "Adapters"
}

func (a *AdaptersComponent) Dependencies() []string {
	return []string{"Governance", "SurfaceRegistry"}
}

func (a *AdaptersComponent) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	commander := adapter.NewCommander(a.govComp.Bus(), a.workspaceID)
	manager, err := adapter.NewRuntimeManager(*a.cfg, commander, a.regComp.Registry())
	if err != nil {
		return fmt.Errorf("build adapter manager: %w", err)
	}

	a.manager = manager
	slog.Info("adapters initialized", "component", a.Name())
	return nil
}

func (a *AdaptersComponent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.manager == nil {
		return fmt.Errorf("adapters not initialized")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	return a.manager.Start(runCtx)
}

func (a *AdaptersComponent) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.manager == nil {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	return a.manager.Stop(ctx)
}

func (a *AdaptersComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.manager == nil {
		return &daemon.ComponentHealth{Name: a.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if err := a.manager.Health(ctx); err != nil {
		return &daemon.ComponentHealth{Name: a.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: a.Name(), Healthy: true}, nil
}

func (a *AdaptersComponent) Manager() *adapter.RuntimeManager {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.manager
}
