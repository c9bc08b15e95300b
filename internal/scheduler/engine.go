package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"

	"github.com/regnantlabs/regent/internal/adapter"
	"github.com/regnantlabs/regent/internal/bus"
	"github.com/regnantlabs/regent/internal/config"
	regentErrors "github.com/regnantlabs/regent/internal/errors"
	"github.com/regnantlabs/regent/internal/store"
)

// SurfaceID is the registered surface scheduled dispatches arrive through.
const SurfaceID = "scheduler"

// Planner manages stored schedules without running them. The HTTP API uses
// it directly so schedules can be edited while the engine is disabled.
type Planner struct {
	store *store.Store
}

func NewPlanner(st *store.Store) *Planner {
	return &Planner{store: st}
}

// Add validates the cron expression, computes the first fire time, and
// stores the schedule.
func (p *Planner) Add(schedule *store.Schedule) error {
	if schedule == nil {
		return regentErrors.InvalidInput("schedule is required")
	}
	if strings.TrimSpace(schedule.WorkspaceID) == "" || strings.TrimSpace(schedule.Intent) == "" {
		return regentErrors.InvalidInput("schedule workspace_id and intent are required")
	}

	spec, err := cron.ParseStandard(schedule.CronExpr)
	if err != nil {
		return regentErrors.InvalidInput("invalid cron expression: " + err.Error())
	}

	now := time.Now().UTC()
	if schedule.ID == "" {
		schedule.ID = ulid.Make().String()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	schedule.NextRun = spec.Next(now)
	return p.store.PutSchedule(schedule)
}

// Remove deletes a schedule by id.
func (p *Planner) Remove(id string) error {
	return p.store.DeleteSchedule(id)
}

// List returns schedules, optionally scoped to one workspace.
func (p *Planner) List(workspaceID string) ([]*store.Schedule, error) {
	return p.store.ListSchedules(workspaceID)
}

// Engine fires stored cron schedules into the command bus. A schedule is an
// ordinary dispatch request plus a cron expression; governance applies to
// scheduled commands exactly as it does to interactive ones.
type Engine struct {
	*Planner
	store    *store.Store
	bus      *bus.Bus
	notifier adapter.OutputAdapter

	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	ticker   *time.Ticker
	inFlight sync.WaitGroup

	tickInterval    time.Duration
	shutdownTimeout time.Duration
}

func NewEngine(st *store.Store, b *bus.Bus, cfg config.SchedulerConfig) (*Engine, error) {
	tickInterval, err := config.DurationOrDefault(cfg.TickInterval, config.DefaultSchedulerTickInterval)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler tick interval: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultSchedulerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler shutdown timeout: %w", err)
	}

	return &Engine{
		Planner:         NewPlanner(st),
		store:           st,
		bus:             b,
		notifier:        adapter.NewNullAdapter(SurfaceID),
		tickInterval:    tickInterval,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// SetNotifier routes pending-approval announcements through out. The engine
// has no delivery channel of its own, so the default notifier swallows them.
func (e *Engine) SetNotifier(out adapter.OutputAdapter) {
	if out == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = out
}

func (e *Engine) notify(ctx context.Context, schedule *store.Schedule, commandID string) {
	e.mu.RLock()
	out := e.notifier
	e.mu.RUnlock()

	msg := fmt.Sprintf("scheduled command %s (schedule %s, intent %s) is waiting for approval", commandID, schedule.ID, schedule.Intent)
	if err := out.Send(ctx, "", msg); err != nil {
		slog.Warn("approval notification failed", "schedule_id", schedule.ID, "adapter", out.Name(), "error", err)
	}
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.ticker = time.NewTicker(e.tickInterval)
	e.mu.Unlock()

	go e.run()

	slog.Info("scheduler started", "tick_interval", e.tickInterval)
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	e.ticker.Stop()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("scheduler stopped")
		return nil
	case <-time.After(e.shutdownTimeout):
		slog.Warn("scheduler shutdown timeout")
		return regentErrors.Internal("scheduler shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Health(ctx context.Context) error {
	if !e.IsRunning() {
		return regentErrors.Internal("scheduler not running")
	}
	if _, err := e.store.ListSchedules(""); err != nil {
		return regentErrors.Transient("schedule store unavailable")
	}
	return nil
}

func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func (e *Engine) run() {
	for {
		select {
		case <-e.ticker.C:
			e.Tick(e.ctx, time.Now().UTC())
		case <-e.ctx.Done():
			return
		}
	}
}

// Tick fires every due schedule. Exported so tests can drive the engine
// without waiting on wall-clock time.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	schedules, err := e.store.ListSchedules("")
	if err != nil {
		slog.Error("failed to load schedules", "error", err)
		return
	}

	for _, schedule := range schedules {
		if !schedule.Enabled || schedule.NextRun.IsZero() || schedule.NextRun.After(now) {
			continue
		}
		e.fire(ctx, schedule, now)
	}
}

func (e *Engine) fire(ctx context.Context, schedule *store.Schedule, now time.Time) {
	spec, err := cron.ParseStandard(schedule.CronExpr)
	if err != nil {
		// Expression went bad after storage, likely a manual edit. Disable
		// rather than retrying forever.
		slog.Error("disabling schedule with invalid cron expression", "schedule_id", schedule.ID, "error", err)
		schedule.Enabled = false
		schedule.UpdatedAt = now
		if putErr := e.store.PutSchedule(schedule); putErr != nil {
			slog.Error("failed to disable schedule", "schedule_id", schedule.ID, "error", putErr)
		}
		return
	}

	// Advance NextRun before dispatching so a slow execution cannot cause
	// the same occurrence to fire twice.
	schedule.LastRun = now
	schedule.NextRun = spec.Next(now)
	schedule.UpdatedAt = now
	if err := e.store.PutSchedule(schedule); err != nil {
		slog.Error("failed to advance schedule", "schedule_id", schedule.ID, "error", err)
		return
	}

	e.inFlight.Add(1)
	go func() {
		defer e.inFlight.Done()

		result, err := e.bus.Dispatch(ctx, bus.DispatchRequest{
			WorkspaceID:      schedule.WorkspaceID,
			ActorID:          schedule.ActorID,
			SourceSurface:    SurfaceID,
			Intent:           schedule.Intent,
			Parameters:       schedule.Parameters,
			RequiresApproval: schedule.RequiresApproval,
			CorrelationID:    "schedule:" + schedule.ID,
		})
		if err != nil {
			slog.Error("scheduled dispatch failed", "schedule_id", schedule.ID, "error", err)
			return
		}
		slog.Info("scheduled dispatch",
			"schedule_id", schedule.ID,
			"command_id", result.CommandID,
			"status", result.Status)

		// Nobody is watching a cron fire, so a command parked for approval
		// needs an explicit nudge to whatever channel is listening.
		if result.Status == bus.ResultPendingApproval {
			e.notify(ctx, schedule, result.CommandID)
		}
	}()
}
