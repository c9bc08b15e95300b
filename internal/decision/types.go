package decision

import "time"

// LayerStatus is the verdict of a single policy evaluator.
type LayerStatus string

const (
	LayerPass               LayerStatus = "pass"
	LayerFail               LayerStatus = "fail"
	LayerWarning            LayerStatus = "warning"
	LayerNeedsClarification LayerStatus = "needs_clarification"
)

// OverallStatus is the merged verdict for one admission check.
type OverallStatus string

const (
	StatusApproved OverallStatus = "approved"
	StatusRejected OverallStatus = "rejected"
	StatusPending  OverallStatus = "pending"
)

// Mode controls whether a failed policy layer blocks execution or only warns.
type Mode string

const (
	ModeStrict  Mode = "strict"
	ModeWarning Mode = "warning"
)

// LayerResult is the output of one evaluator. It is a pure value owned by the
// check call that produced it.
type LayerResult struct {
	Layer    string                 `json:"layer"`
	Status   LayerStatus            `json:"status"`
	Reason   string                 `json:"reason,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Result is the aggregate outcome of running all evaluators against one
// command.
type Result struct {
	ID                   string                 `json:"id"`
	CommandID            string                 `json:"command_id"`
	WorkspaceID          string                 `json:"workspace_id"`
	OverallStatus        OverallStatus          `json:"overall_status"`
	Mode                 Mode                   `json:"mode"`
	Layers               map[string]LayerResult `json:"layers"`
	RequiresUserDecision bool                   `json:"requires_user_decision"`
	CreatedAt            time.Time              `json:"created_at"`
}

// FailedLayers returns the names of layers that failed, in no particular
// order. In warning mode these are surfaced to the caller as warnings.
func (r *Result) FailedLayers() []string {
	var failed []string
	for name, layer := range r.Layers {
		if layer.Status == LayerFail {
			failed = append(failed, name)
		}
	}
	return failed
}

// Reason builds a human-readable summary of why the check did not pass
// cleanly, drawing on the first non-empty layer reason.
func (r *Result) Reason() string {
	for _, layer := range r.Layers {
		if layer.Status != LayerPass && layer.Reason != "" {
			return layer.Reason
		}
	}
	return ""
}
