package scheduler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/regnantlabs/regent/internal/bus"
	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/decision"
	regentErrors "github.com/regnantlabs/regent/internal/errors"
	"github.com/regnantlabs/regent/internal/executor"
	"github.com/regnantlabs/regent/internal/store"
	"github.com/regnantlabs/regent/internal/stream"
	"github.com/regnantlabs/regent/internal/surface"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, *bus.Bus) {
	t.Helper()

	db, err := store.Open(t.TempDir(), store.RuntimeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	registry, err := surface.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(surface.Definition{ID: SurfaceID, Permission: surface.PermissionOperator}); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evstream := stream.New(db)
	coordinator := decision.NewCoordinator(nil, evstream, decision.StaticModeSource{Mode: decision.ModeStrict}, 0)
	runner := executor.NewIntentRunner(logger)
	executor.RegisterBuiltins(runner)

	b := bus.New(db, registry, coordinator, evstream, runner, nil, logger)

	engine, err := NewEngine(db, b, config.SchedulerConfig{TickInterval: "1h", ShutdownTimeout: "5s"})
	if err != nil {
		t.Fatal(err)
	}
	return engine, db, b
}

func TestPlannerAddValidation(t *testing.T) {
	db, err := store.Open(t.TempDir(), store.RuntimeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	p := NewPlanner(db)

	err = p.Add(&store.Schedule{WorkspaceID: "", Intent: "echo", CronExpr: "* * * * *"})
	if !regentErrors.IsCategory(err, regentErrors.ErrInvalidInput) {
		t.Errorf("Expected invalid input for missing workspace, got %v", err)
	}

	err = p.Add(&store.Schedule{WorkspaceID: "ws-1", Intent: "echo", CronExpr: "not a cron"})
	if !regentErrors.IsCategory(err, regentErrors.ErrInvalidInput) {
		t.Errorf("Expected invalid input for bad cron, got %v", err)
	}
}

func TestPlannerAddAssignsIDAndNextRun(t *testing.T) {
	db, err := store.Open(t.TempDir(), store.RuntimeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	p := NewPlanner(db)

	schedule := &store.Schedule{
		WorkspaceID: "ws-1",
		ActorID:     "actor-1",
		Intent:      "echo",
		CronExpr:    "*/10 * * * *",
		Enabled:     true,
	}
	if err := p.Add(schedule); err != nil {
		t.Fatal(err)
	}
	if schedule.ID == "" {
		t.Error("Schedule id not assigned")
	}
	if !schedule.NextRun.After(time.Now().UTC().Add(-time.Minute)) {
		t.Errorf("NextRun not computed: %v", schedule.NextRun)
	}

	listed, err := p.List("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Fatalf("Expected 1 schedule, got %d", len(listed))
	}

	if err := p.Remove(schedule.ID); err != nil {
		t.Fatal(err)
	}
	listed, err = p.List("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 0 {
		t.Errorf("Schedule not removed")
	}
}

func TestTickFiresDueSchedule(t *testing.T) {
	engine, db, b := newTestEngine(t)

	now := time.Now().UTC()
	schedule := &store.Schedule{
		ID:          "sched-1",
		WorkspaceID: "ws-1",
		ActorID:     "cron",
		Intent:      "echo",
		CronExpr:    "*/5 * * * *",
		Enabled:     true,
		NextRun:     now.Add(-time.Minute),
	}
	if err := db.PutSchedule(schedule); err != nil {
		t.Fatal(err)
	}

	engine.Tick(context.Background(), now)

	// The dispatch itself runs in a goroutine; poll for the command.
	var commands []*store.Command
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		commands, err = b.List(store.CommandFilter{WorkspaceID: "ws-1"})
		if err != nil {
			t.Fatal(err)
		}
		if len(commands) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(commands) != 1 {
		t.Fatalf("Expected 1 dispatched command, got %d", len(commands))
	}
	cmd := commands[0]
	if cmd.SourceSurface != SurfaceID || cmd.Intent != "echo" {
		t.Errorf("Unexpected command %+v", cmd)
	}
	if cmd.CorrelationID != "schedule:sched-1" {
		t.Errorf("Correlation id not set: %q", cmd.CorrelationID)
	}

	// NextRun advanced past now, so an immediate second tick is a no-op.
	updated, err := db.GetSchedule("sched-1")
	if err != nil {
		t.Fatal(err)
	}
	if !updated.NextRun.After(now) {
		t.Errorf("NextRun not advanced: %v", updated.NextRun)
	}
	if updated.LastRun.IsZero() {
		t.Error("LastRun not recorded")
	}

	engine.Tick(context.Background(), now)
	time.Sleep(50 * time.Millisecond)
	commands, err = b.List(store.CommandFilter{WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(commands) != 1 {
		t.Errorf("Same occurrence fired twice: %d commands", len(commands))
	}
}

func TestTickSkipsDisabledAndFutureSchedules(t *testing.T) {
	engine, db, b := newTestEngine(t)
	now := time.Now().UTC()

	disabled := &store.Schedule{
		ID: "disabled", WorkspaceID: "ws-1", ActorID: "cron", Intent: "echo",
		CronExpr: "* * * * *", Enabled: false, NextRun: now.Add(-time.Minute),
	}
	future := &store.Schedule{
		ID: "future", WorkspaceID: "ws-1", ActorID: "cron", Intent: "echo",
		CronExpr: "* * * * *", Enabled: true, NextRun: now.Add(time.Hour),
	}
	for _, s := range []*store.Schedule{disabled, future} {
		if err := db.PutSchedule(s); err != nil {
			t.Fatal(err)
		}
	}

	engine.Tick(context.Background(), now)
	time.Sleep(100 * time.Millisecond)

	commands, err := b.List(store.CommandFilter{WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(commands) != 0 {
		t.Errorf("Expected no dispatches, got %d", len(commands))
	}
}

func TestTickDisablesBadCronExpression(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	now := time.Now().UTC()

	// Bypass Planner validation to simulate a record that went bad in place.
	bad := &store.Schedule{
		ID: "bad", WorkspaceID: "ws-1", ActorID: "cron", Intent: "echo",
		CronExpr: "mangled", Enabled: true, NextRun: now.Add(-time.Minute),
	}
	if err := db.PutSchedule(bad); err != nil {
		t.Fatal(err)
	}

	engine.Tick(context.Background(), now)

	updated, err := db.GetSchedule("bad")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Enabled {
		t.Error("Schedule with bad cron expression should be disabled")
	}
}

func TestEngineStartStop(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !engine.IsRunning() {
		t.Error("Engine should report running")
	}
	if err := engine.Health(context.Background()); err != nil {
		t.Errorf("Healthy engine reported %v", err)
	}

	if err := engine.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if engine.IsRunning() {
		t.Error("Engine should report stopped")
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(ctx context.Context, threadID string, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, content)
	return nil
}

func (n *recordingNotifier) Health(ctx context.Context) error { return nil }

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func TestFireNotifiesOnPendingApproval(t *testing.T) {
	engine, db, b := newTestEngine(t)
	notifier := &recordingNotifier{}
	engine.SetNotifier(notifier)

	now := time.Now().UTC()
	schedule := &store.Schedule{
		ID:               "sched-approve",
		WorkspaceID:      "ws-1",
		ActorID:          "cron",
		Intent:           "echo",
		CronExpr:         "*/5 * * * *",
		Enabled:          true,
		RequiresApproval: true,
		NextRun:          now.Add(-time.Minute),
	}
	if err := db.PutSchedule(schedule); err != nil {
		t.Fatal(err)
	}

	engine.Tick(context.Background(), now)

	var messages []string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		messages = notifier.snapshot()
		if len(messages) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 approval notification, got %d", len(messages))
	}

	commands, err := b.List(store.CommandFilter{WorkspaceID: "ws-1", Status: store.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(commands) != 1 {
		t.Fatalf("Expected 1 pending command, got %d", len(commands))
	}
	if !strings.Contains(messages[0], commands[0].ID) {
		t.Errorf("Notification %q does not name command %s", messages[0], commands[0].ID)
	}
	if !strings.Contains(messages[0], "sched-approve") {
		t.Errorf("Notification %q does not name the schedule", messages[0])
	}
}

func TestFireDoesNotNotifyOnImmediateCompletion(t *testing.T) {
	engine, db, b := newTestEngine(t)
	notifier := &recordingNotifier{}
	engine.SetNotifier(notifier)

	now := time.Now().UTC()
	schedule := &store.Schedule{
		ID:          "sched-clean",
		WorkspaceID: "ws-1",
		ActorID:     "cron",
		Intent:      "echo",
		CronExpr:    "*/5 * * * *",
		Enabled:     true,
		NextRun:     now.Add(-time.Minute),
	}
	if err := db.PutSchedule(schedule); err != nil {
		t.Fatal(err)
	}

	engine.Tick(context.Background(), now)

	var commands []*store.Command
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		commands, err = b.List(store.CommandFilter{WorkspaceID: "ws-1", Status: store.StatusCompleted})
		if err != nil {
			t.Fatal(err)
		}
		if len(commands) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(commands) != 1 {
		t.Fatalf("Expected 1 completed command, got %d", len(commands))
	}
	if got := notifier.snapshot(); len(got) != 0 {
		t.Errorf("Completed dispatch should not notify, got %v", got)
	}
}
