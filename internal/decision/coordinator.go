package decision

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/regnantlabs/regent/internal/store"
	"github.com/regnantlabs/regent/internal/stream"

	"github.com/oklog/ulid/v2"
)

const DefaultEvaluatorTimeout = 3 * time.Second

// Coordinator fans an admission check out to every registered evaluator,
// joins the results, and merges them under the workspace's governance mode.
// This fan-out is the only intentionally parallel operation in the core.
type Coordinator struct {
	evaluators       []Evaluator
	stream           *stream.Stream
	modes            ModeSource
	evaluatorTimeout time.Duration
}

func NewCoordinator(evaluators []Evaluator, st *stream.Stream, modes ModeSource, evaluatorTimeout time.Duration) *Coordinator {
	if evaluatorTimeout <= 0 {
		evaluatorTimeout = DefaultEvaluatorTimeout
	}
	return &Coordinator{
		evaluators:       evaluators,
		stream:           st,
		modes:            modes,
		evaluatorTimeout: evaluatorTimeout,
	}
}

// Check runs all evaluators concurrently against cmd and merges their layer
// results. Exactly one governance-decision event is published per call. With
// zero evaluators registered the command is approved trivially; governance is
// opt-in infrastructure, not a hard dependency.
func (c *Coordinator) Check(ctx context.Context, cmd *store.Command) (*Result, error) {
	mode := c.modes.ModeFor(ctx, cmd.WorkspaceID)

	layers := make(map[string]LayerResult, len(c.evaluators))
	if len(c.evaluators) > 0 {
		results := make([]LayerResult, len(c.evaluators))
		var wg sync.WaitGroup
		for i, evaluator := range c.evaluators {
			wg.Add(1)
			go func(i int, evaluator Evaluator) {
				defer wg.Done()
				results[i] = c.runEvaluator(ctx, evaluator, cmd)
			}(i, evaluator)
		}
		wg.Wait()

		for _, layer := range results {
			layers[layer.Layer] = layer
		}
	}

	result := merge(cmd, mode, layers)

	if err := c.publishDecision(ctx, cmd, result); err != nil {
		return nil, err
	}

	slog.Info("Admission check complete",
		"command", cmd.ID,
		"workspace", cmd.WorkspaceID,
		"mode", mode,
		"status", result.OverallStatus,
		"layers", len(layers))
	return result, nil
}

// runEvaluator contains one evaluator call: independent timeout, panic
// recovery, and error-to-fail conversion.
func (c *Coordinator) runEvaluator(ctx context.Context, evaluator Evaluator, cmd *store.Command) LayerResult {
	evalCtx, cancel := context.WithTimeout(ctx, c.evaluatorTimeout)
	defer cancel()

	type outcome struct {
		layer LayerResult
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Evaluator panicked",
					"layer", evaluator.Name(), "panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("evaluator panic: %v", r)}
			}
		}()
		layer, err := evaluator.Check(evalCtx, cmd)
		done <- outcome{layer: layer, err: err}
	}()

	select {
	case <-evalCtx.Done():
		// A cancelled parent context is not the evaluator's fault; the audit
		// record should say which one happened.
		reason := "evaluator timeout"
		if err := ctx.Err(); err != nil {
			reason = "admission check aborted: " + err.Error()
		}
		return LayerResult{
			Layer:  evaluator.Name(),
			Status: LayerFail,
			Reason: reason,
		}
	case out := <-done:
		if out.err != nil {
			return LayerResult{
				Layer:  evaluator.Name(),
				Status: LayerFail,
				Reason: out.err.Error(),
			}
		}
		layer := out.layer
		layer.Layer = evaluator.Name()
		if layer.Status == "" {
			layer.Status = LayerFail
			layer.Reason = "evaluator returned no status"
		}
		return layer
	}
}

// merge is deterministic and order-independent over the set of layers:
// needs_clarification outranks everything, then fail under strict mode
// rejects, fail under warning mode approves with the failing layers recorded,
// and pass/warning approve.
func merge(cmd *store.Command, mode Mode, layers map[string]LayerResult) *Result {
	result := &Result{
		ID:            ulid.Make().String(),
		CommandID:     cmd.ID,
		WorkspaceID:   cmd.WorkspaceID,
		Mode:          mode,
		Layers:        layers,
		OverallStatus: StatusApproved,
		CreatedAt:     time.Now(),
	}

	anyFail := false
	for _, layer := range layers {
		switch layer.Status {
		case LayerNeedsClarification:
			result.OverallStatus = StatusPending
			result.RequiresUserDecision = true
			return result
		case LayerFail:
			anyFail = true
		}
	}

	if anyFail && mode == ModeStrict {
		result.OverallStatus = StatusRejected
	}
	return result
}

func (c *Coordinator) publishDecision(ctx context.Context, cmd *store.Command, result *Result) error {
	payload := map[string]interface{}{
		"decision_id":            result.ID,
		"overall_status":         string(result.OverallStatus),
		"mode":                   string(result.Mode),
		"requires_user_decision": result.RequiresUserDecision,
		"layers":                 result.Layers,
	}
	// The decision event carries the command's provenance tags so the audit
	// trail stays filterable by pack/card without joining against commands.
	for _, key := range store.ProvenanceKeys {
		if v, ok := cmd.Metadata[key]; ok && v != "" {
			payload[key] = v
		}
	}

	_, err := c.stream.Collect(ctx, stream.Record{
		WorkspaceID:   cmd.WorkspaceID,
		SourceSurface: cmd.SourceSurface,
		EventType:     "governance.decision",
		ActorID:       cmd.ActorID,
		Payload:       payload,
		CommandID:     cmd.ID,
		ThreadID:      cmd.ThreadID,
		CorrelationID: cmd.CorrelationID,
	})
	return err
}
