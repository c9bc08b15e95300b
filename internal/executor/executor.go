package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/regnantlabs/regent/internal/errors"
	"github.com/regnantlabs/regent/internal/store"
)

// Handler executes one intent. Implementations must be safe for concurrent
// use; the bus may run handlers for different commands in parallel.
type Handler func(ctx context.Context, cmd *store.Command) (output string, err error)

// Runner turns an approved command into an execution record.
type Runner interface {
	Execute(ctx context.Context, cmd *store.Command) (*store.ExecutionRecord, error)
}

// IntentRunner dispatches commands to handlers registered per intent code.
type IntentRunner struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewIntentRunner(logger *slog.Logger) *IntentRunner {
	return &IntentRunner{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a handler to an intent code, replacing any previous binding.
func (r *IntentRunner) Register(intent string, h Handler) {
	r.handlers[intent] = h
}

func (r *IntentRunner) Execute(ctx context.Context, cmd *store.Command) (*store.ExecutionRecord, error) {
	handler, ok := r.handlers[cmd.Intent]
	if !ok {
		return nil, errors.NotFound("no handler registered for intent " + cmd.Intent)
	}

	rec := &store.ExecutionRecord{
		ID:          ulid.Make().String(),
		CommandID:   cmd.ID,
		WorkspaceID: cmd.WorkspaceID,
		Provenance:  provenanceOf(cmd),
		StartedAt:   time.Now().UTC(),
	}

	output, err := runHandler(ctx, handler, cmd)
	rec.FinishedAt = time.Now().UTC()
	rec.Output = output
	if err != nil {
		rec.Error = err.Error()
		r.logger.Warn("execution failed",
			"command_id", cmd.ID,
			"intent", cmd.Intent,
			"execution_id", rec.ID,
			"error", err)
		return rec, err
	}

	rec.Success = true
	r.logger.Info("execution finished",
		"command_id", cmd.ID,
		"intent", cmd.Intent,
		"execution_id", rec.ID,
		"duration", rec.FinishedAt.Sub(rec.StartedAt))
	return rec, nil
}

// runHandler contains handler panics so a misbehaving intent cannot take the
// bus down with it.
func runHandler(ctx context.Context, h Handler, cmd *store.Command) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal("intent handler panicked")
		}
	}()
	return h(ctx, cmd)
}

func provenanceOf(cmd *store.Command) map[string]string {
	prov := make(map[string]string)
	for _, key := range store.ProvenanceKeys {
		if v, ok := cmd.Metadata[key]; ok && v != "" {
			prov[key] = v
		}
	}
	return prov
}
