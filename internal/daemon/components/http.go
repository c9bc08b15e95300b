package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/daemon"
	"github.com/regnantlabs/regent/internal/ingress"
)

// HTTPServerComponent runs the governance API.
type HTTPServerComponent struct {
	cfg         *config.ServerConfig
	storeComp   *StoreComponent
	regComp     *RegistryComponent
	govComp     *GovernanceComponent
	server      *ingress.Server
	shutdownTTL time.Duration
	initialized bool
	started     bool
	mu          sync.RWMutex
}

func NewHTTPServerComponent(cfg *config.ServerConfig, storeComp *StoreComponent, regComp *RegistryComponent, govComp *GovernanceComponent) *HTTPServerComponent {
	return &HTTPServerComponent{
		cfg:       cfg,
		storeComp: storeComp,
		regComp:   regComp,
		govComp:   govComp,
	}
}

func (h *HTTPServerComponent) Name() string {
	return "HTTPServer"
}

func (h *HTTPServerComponent) Dependencies() []string {
	return []string{"Store", "SurfaceRegistry", "Governance"}
}

func (h *HTTPServerComponent) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	shutdownTimeout, err := config.DurationOrDefault(h.cfg.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse server shutdown timeout: %w", err)
	}

	server, err := ingress.NewServer(
		*h.cfg,
		h.govComp.Bus(),
		h.govComp.Stream(),
		h.regComp.Registry(),
		h.storeComp.Store(),
		slog.Default(),
	)
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	h.server = server
	h.shutdownTTL = shutdownTimeout
	h.initialized = true
	slog.Info("http server initialized", "component", h.Name(), "port", h.cfg.Port)
	return nil
}

func (h *HTTPServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return fmt.Errorf("http server not initialized")
	}

	h.server.Start()
	h.started = true
	return nil
}

func (h *HTTPServerComponent) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, h.shutdownTTL)
	defer cancel()

	if err := h.server.Stop(shutdownCtx); err != nil {
		return err
	}
	h.started = false
	return nil
}

func (h *HTTPServerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.initialized {
		return &daemon.ComponentHealth{Name: h.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if !h.started {
		return &daemon.ComponentHealth{Name: h.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	return &daemon.ComponentHealth{Name: h.Name(), Healthy: true}, nil
}
