package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/daemon"
	"github.com/regnantlabs/regent/internal/surface"
)

// RegistryComponent loads the surface registry and applies configured seeds.
type RegistryComponent struct {
	basePath string
	seeds    []config.SurfaceSeed
	registry *surface.Registry
	mu       sync.RWMutex
}

func NewRegistryComponent(basePath string, seeds []config.SurfaceSeed) *RegistryComponent {
	return &RegistryComponent{basePath: basePath, seeds: seeds}
}

func (r *RegistryComponent) Name() string {
	return "SurfaceRegistry"
}

func (r *RegistryComponent) Dependencies() []string {
	return []string{}
}

func (r *RegistryComponent) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	registry, err := surface.NewRegistry(r.basePath)
	if err != nil {
		return fmt.Errorf("failed to load surface registry: %w", err)
	}

	for _, seed := range r.seeds {
		err := registry.Register(surface.Definition{
			ID:           seed.ID,
			Type:         surface.Type(seed.Type),
			Name:         seed.Name,
			Capabilities: seed.Capabilities,
			Permission:   surface.PermissionLevel(seed.Permission),
		})
		if err != nil {
			return fmt.Errorf("failed to seed surface %s: %w", seed.ID, err)
		}
	}

	r.registry = registry
	slog.Info("surface registry initialized", "component", r.Name(), "surfaces", len(registry.List()))
	return nil
}

func (r *RegistryComponent) Start(ctx context.Context) error {
	return nil
}

func (r *RegistryComponent) Stop(ctx context.Context) error {
	return nil
}

func (r *RegistryComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.registry == nil {
		return &daemon.ComponentHealth{Name: r.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: r.Name(), Healthy: true}, nil
}

func (r *RegistryComponent) Registry() *surface.Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registry
}
