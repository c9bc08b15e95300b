package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/regnantlabs/regent/internal/concurrency"
	"github.com/regnantlabs/regent/internal/decision"
	"github.com/regnantlabs/regent/internal/errors"
	"github.com/regnantlabs/regent/internal/executor"
	"github.com/regnantlabs/regent/internal/store"
	"github.com/regnantlabs/regent/internal/stream"
	"github.com/regnantlabs/regent/internal/surface"
)

// Lifecycle event types emitted by the bus. The coordinator's
// governance.decision event doubles as the admission record, so the bus only
// emits events for states a command actually lands in.
const (
	EventCommandPending   = "command.pending"
	EventCommandRejected  = "command.rejected"
	EventCommandCompleted = "command.completed"
	EventCommandFailed    = "command.failed"
)

// DispatchRequest carries everything a surface knows about a command it
// wants run. Provenance tags travel inside Parameters and are lifted into
// command metadata by the bus.
type DispatchRequest struct {
	WorkspaceID      string
	ActorID          string
	SourceSurface    string
	Intent           string
	Parameters       map[string]interface{}
	RequiresApproval bool
	ThreadID         string
	CorrelationID    string
	ParentCommandID  string
}

// DispatchResult reports where a command ended up after dispatch.
type DispatchResult struct {
	CommandID   string           `json:"command_id"`
	Status      string           `json:"status"`
	ExecutionID string           `json:"execution_id,omitempty"`
	Message     string           `json:"message,omitempty"`
	Decision    *decision.Result `json:"decision,omitempty"`
}

// ApproveResult reports the terminal state an approved command reached.
type ApproveResult struct {
	CommandID   string `json:"command_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// RejectResult confirms a manual rejection.
type RejectResult struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Status values surfaced to callers, distinct from the stored state machine.
const (
	ResultPendingApproval = "pending_approval"
	ResultRejected        = "rejected"
	ResultCompleted       = "completed"
	ResultFailed          = "failed"
)

// Bus owns the command state machine. All writes to command records go
// through it; per-command locks serialize approve/reject races on a single
// id while unrelated commands proceed in parallel.
type Bus struct {
	store           *store.Store
	registry        *surface.Registry
	coordinator     *decision.Coordinator
	stream          *stream.Stream
	runner          executor.Runner
	locks           *concurrency.KeyedLockManager
	requireApproval map[string]bool
	logger          *slog.Logger
}

func New(
	st *store.Store,
	registry *surface.Registry,
	coordinator *decision.Coordinator,
	evstream *stream.Stream,
	runner executor.Runner,
	requireApproval []string,
	logger *slog.Logger,
) *Bus {
	approvalIntents := make(map[string]bool, len(requireApproval))
	for _, intent := range requireApproval {
		approvalIntents[strings.TrimSpace(intent)] = true
	}
	return &Bus{
		store:           st,
		registry:        registry,
		coordinator:     coordinator,
		stream:          evstream,
		runner:          runner,
		locks:           concurrency.NewKeyedLockManager(),
		requireApproval: approvalIntents,
		logger:          logger,
	}
}

// Dispatch admits a command: validates it, runs the governance check, and
// either executes it immediately, parks it pending approval, or rejects it.
func (b *Bus) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if err := b.validate(req); err != nil {
		return nil, err
	}

	// Configured sensitive intents always go through manual approval, even
	// when the caller did not ask for it.
	if b.requireApproval[req.Intent] {
		req.RequiresApproval = true
	}

	now := time.Now().UTC()
	cmd := &store.Command{
		ID:               ulid.Make().String(),
		WorkspaceID:      req.WorkspaceID,
		ActorID:          req.ActorID,
		SourceSurface:    req.SourceSurface,
		Intent:           req.Intent,
		Parameters:       req.Parameters,
		RequiresApproval: req.RequiresApproval,
		Status:           store.StatusPending,
		ParentCommandID:  req.ParentCommandID,
		ThreadID:         req.ThreadID,
		CorrelationID:    req.CorrelationID,
		Metadata:         liftProvenance(req.Parameters),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := b.store.CreateCommand(cmd); err != nil {
		return nil, err
	}
	if _, err := b.store.IncrDailyCount(cmd.WorkspaceID, cmd.ActorID); err != nil {
		b.logger.Warn("quota counter update failed", "command_id", cmd.ID, "error", err)
	}

	b.logger.Info("command dispatched",
		"command_id", cmd.ID,
		"workspace_id", cmd.WorkspaceID,
		"actor_id", cmd.ActorID,
		"surface", cmd.SourceSurface,
		"intent", cmd.Intent)

	dec, err := b.coordinator.Check(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch {
	case dec.OverallStatus == decision.StatusRejected:
		reason := dec.Reason()
		if err := b.transition(cmd.ID, []store.CommandStatus{store.StatusPending}, store.StatusRejected, nil); err != nil {
			return nil, err
		}
		b.emit(ctx, cmd, EventCommandRejected, map[string]interface{}{
			"reason":      reason,
			"decision_id": dec.ID,
		})
		return &DispatchResult{
			CommandID: cmd.ID,
			Status:    ResultRejected,
			Message:   reason,
			Decision:  dec,
		}, nil

	case dec.OverallStatus == decision.StatusPending || cmd.RequiresApproval:
		// Command stays PENDING. Execution waits for an explicit approve.
		b.emit(ctx, cmd, EventCommandPending, map[string]interface{}{
			"requires_user_decision": dec.RequiresUserDecision,
			"reason":                 dec.Reason(),
			"decision_id":            dec.ID,
		})
		return &DispatchResult{
			CommandID: cmd.ID,
			Status:    ResultPendingApproval,
			Message:   dec.Reason(),
			Decision:  dec,
		}, nil

	default:
		result, err := b.execute(ctx, cmd)
		if err != nil {
			return nil, err
		}
		result.Decision = dec
		return result, nil
	}
}

// Approve releases a pending command into execution. Races between
// concurrent approvals of the same id are resolved by the per-command lock
// plus the status precondition; exactly one caller wins.
func (b *Bus) Approve(ctx context.Context, commandID string) (*ApproveResult, error) {
	b.locks.Lock(commandID)
	defer b.locks.Unlock(commandID)

	cmd, err := b.store.GetCommand(commandID)
	if err != nil {
		return nil, err
	}
	if cmd.Status != store.StatusPending {
		return nil, errors.Conflict(fmt.Sprintf("command %s is %s, not pending", commandID, cmd.Status))
	}

	b.logger.Info("command approved", "command_id", commandID, "workspace_id", cmd.WorkspaceID)

	result, err := b.execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &ApproveResult{
		CommandID:   result.CommandID,
		ExecutionID: result.ExecutionID,
		Status:      result.Status,
		Message:     result.Message,
	}, nil
}

// Reject terminally declines a pending command without executing it.
func (b *Bus) Reject(ctx context.Context, commandID, reason string) (*RejectResult, error) {
	b.locks.Lock(commandID)
	defer b.locks.Unlock(commandID)

	cmd, err := b.store.GetCommand(commandID)
	if err != nil {
		return nil, err
	}
	if cmd.Status != store.StatusPending {
		return nil, errors.Conflict(fmt.Sprintf("command %s is %s, not pending", commandID, cmd.Status))
	}

	if err := b.transition(commandID, []store.CommandStatus{store.StatusPending}, store.StatusRejected, nil); err != nil {
		return nil, err
	}

	b.logger.Info("command rejected", "command_id", commandID, "reason", reason)
	b.emit(ctx, cmd, EventCommandRejected, map[string]interface{}{
		"reason":      reason,
		"rejected_by": "manual",
	})
	return &RejectResult{CommandID: commandID, Status: ResultRejected, Reason: reason}, nil
}

// Get returns a stored command by id.
func (b *Bus) Get(commandID string) (*store.Command, error) {
	return b.store.GetCommand(commandID)
}

// List returns commands matching the filter, newest first.
func (b *Bus) List(filter store.CommandFilter) ([]*store.Command, error) {
	return b.store.ListCommands(filter)
}

// execute drives a command through RUNNING to a terminal state and emits
// the matching lifecycle event. The caller must hold the command in PENDING.
func (b *Bus) execute(ctx context.Context, cmd *store.Command) (*DispatchResult, error) {
	if err := b.transition(cmd.ID, []store.CommandStatus{store.StatusPending}, store.StatusRunning, nil); err != nil {
		return nil, err
	}

	rec, execErr := b.runner.Execute(ctx, cmd)

	var execID string
	if rec != nil {
		execID = rec.ID
		if err := b.store.PutExecution(rec); err != nil {
			b.logger.Error("execution record write failed", "command_id", cmd.ID, "error", err)
		}
	}
	// The terminal event has to carry the execution id too, so the command
	// and event streams stay joinable on it.
	cmd.ExecutionID = execID

	if execErr != nil {
		if err := b.transition(cmd.ID, []store.CommandStatus{store.StatusRunning}, store.StatusFailed, func(c *store.Command) {
			c.ExecutionID = execID
		}); err != nil {
			return nil, err
		}
		b.emit(ctx, cmd, EventCommandFailed, map[string]interface{}{
			"execution_id": execID,
			"error":        execErr.Error(),
		})
		return &DispatchResult{
			CommandID:   cmd.ID,
			Status:      ResultFailed,
			ExecutionID: execID,
			Message:     execErr.Error(),
		}, nil
	}

	if err := b.transition(cmd.ID, []store.CommandStatus{store.StatusRunning}, store.StatusCompleted, func(c *store.Command) {
		c.ExecutionID = execID
	}); err != nil {
		return nil, err
	}
	b.emit(ctx, cmd, EventCommandCompleted, map[string]interface{}{
		"execution_id": execID,
	})
	return &DispatchResult{
		CommandID:   cmd.ID,
		Status:      ResultCompleted,
		ExecutionID: execID,
	}, nil
}

func (b *Bus) transition(id string, from []store.CommandStatus, to store.CommandStatus, mutate func(*store.Command)) error {
	_, err := b.store.TransitionCommand(id, from, to, mutate)
	return err
}

// emit writes a lifecycle event. Event-log failures are logged, not
// propagated; the command transition already happened and stands.
func (b *Bus) emit(ctx context.Context, cmd *store.Command, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	for key, value := range cmd.Metadata {
		if isProvenanceKey(key) {
			payload[key] = value
		}
	}
	_, err := b.stream.Collect(ctx, stream.Record{
		WorkspaceID:   cmd.WorkspaceID,
		SourceSurface: cmd.SourceSurface,
		EventType:     eventType,
		ActorID:       cmd.ActorID,
		Payload:       payload,
		CommandID:     cmd.ID,
		ThreadID:      cmd.ThreadID,
		CorrelationID: cmd.CorrelationID,
		ExecutionID:   cmd.ExecutionID,
	})
	if err != nil {
		b.logger.Error("lifecycle event write failed",
			"command_id", cmd.ID,
			"event_type", eventType,
			"error", err)
	}
}

func (b *Bus) validate(req DispatchRequest) error {
	if strings.TrimSpace(req.WorkspaceID) == "" {
		return errors.InvalidInput("workspace_id is required")
	}
	if strings.TrimSpace(req.ActorID) == "" {
		return errors.InvalidInput("actor_id is required")
	}
	if strings.TrimSpace(req.Intent) == "" {
		return errors.InvalidInput("intent is required")
	}
	if strings.TrimSpace(req.SourceSurface) == "" {
		return errors.InvalidInput("source_surface is required")
	}
	if _, err := b.registry.Get(req.SourceSurface); err != nil {
		if errors.IsCategory(err, errors.ErrNotFound) {
			return errors.InvalidInput("unknown surface " + req.SourceSurface)
		}
		return err
	}
	return nil
}

// liftProvenance copies the opaque caller tags out of parameters so they
// survive on the command record without the bus interpreting them.
func liftProvenance(params map[string]interface{}) map[string]string {
	meta := make(map[string]string)
	for _, key := range store.ProvenanceKeys {
		if v, ok := params[key]; ok {
			if s, isString := v.(string); isString && s != "" {
				meta[key] = s
			}
		}
	}
	return meta
}

func isProvenanceKey(key string) bool {
	for _, k := range store.ProvenanceKeys {
		if k == key {
			return true
		}
	}
	return false
}
