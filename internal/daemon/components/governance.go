package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/regnantlabs/regent/internal/bus"
	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/daemon"
	"github.com/regnantlabs/regent/internal/decision"
	"github.com/regnantlabs/regent/internal/executor"
	"github.com/regnantlabs/regent/internal/stream"
)

// GovernanceComponent wires the event stream, the policy evaluators, the
// decision coordinator, the intent runner, and the command bus together.
type GovernanceComponent struct {
	cfg       *config.GovernanceConfig
	storeComp *StoreComponent
	regComp   *RegistryComponent

	stream *stream.Stream
	runner *executor.IntentRunner
	bus    *bus.Bus
	mu     sync.RWMutex
}

func NewGovernanceComponent(cfg *config.GovernanceConfig, storeComp *StoreComponent, regComp *RegistryComponent) *GovernanceComponent {
	return &GovernanceComponent{cfg: cfg, storeComp: storeComp, regComp: regComp}
}

func (g *GovernanceComponent) Name() string {
	return "Governance"
}

func (g *GovernanceComponent) Dependencies() []string {
	return []string{"Store", "SurfaceRegistry"}
}

func (g *GovernanceComponent) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	db := g.storeComp.Store()
	registry := g.regComp.Registry()
	if db == nil || registry == nil {
		return fmt.Errorf("store and registry must initialize first")
	}

	evaluatorTimeout, err := config.DurationOrDefault(g.cfg.EvaluatorTimeout, config.DefaultGovernanceEvaluatorTimeout)
	if err != nil {
		return fmt.Errorf("parse evaluator timeout: %w", err)
	}

	evstream := stream.New(db)

	evaluators := []decision.Evaluator{
		decision.NewIntentPolicyEvaluator(g.cfg.AutoAllow, g.cfg.Blocked),
		decision.NewCredentialGateEvaluator(g.cfg.Credentials),
		decision.NewQuotaEvaluator(db, g.cfg.DailyCommandLimit),
		decision.NewPermissionEvaluator(registry, g.cfg.IntentLevels),
	}

	modes := decision.NewStoreModeSource(db, decision.Mode(g.cfg.DefaultMode))
	coordinator := decision.NewCoordinator(evaluators, evstream, modes, evaluatorTimeout)

	runner := executor.NewIntentRunner(slog.Default())
	executor.RegisterBuiltins(runner)
	g.stream = evstream
	g.runner = runner
	g.bus = bus.New(db, registry, coordinator, evstream, runner, g.cfg.RequireApproval, slog.Default())

	slog.Info("governance initialized", "component", g.Name(), "evaluators", len(evaluators), "default_mode", g.cfg.DefaultMode)
	return nil
}

func (g *GovernanceComponent) Start(ctx context.Context) error {
	return nil
}

func (g *GovernanceComponent) Stop(ctx context.Context) error {
	return nil
}

func (g *GovernanceComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.bus == nil {
		return &daemon.ComponentHealth{Name: g.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: g.Name(), Healthy: true}, nil
}

func (g *GovernanceComponent) Bus() *bus.Bus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bus
}

func (g *GovernanceComponent) Stream() *stream.Stream {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stream
}

// Runner exposes the intent runner so callers can register handlers before
// the daemon starts accepting commands.
func (g *GovernanceComponent) Runner() *executor.IntentRunner {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.runner
}
