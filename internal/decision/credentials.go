package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/regnantlabs/regent/internal/store"
)

// CredentialGateEvaluator verifies that every parameter the intent declares
// as required is present and non-empty. Missing inputs are not a rejection:
// they produce needs_clarification so the caller can be asked to supply them.
type CredentialGateEvaluator struct {
	required map[string][]string // intent -> required parameter keys
}

func NewCredentialGateEvaluator(required map[string][]string) *CredentialGateEvaluator {
	return &CredentialGateEvaluator{required: required}
}

func (e *CredentialGateEvaluator) Name() string {
	return "credential_gate"
}

func (e *CredentialGateEvaluator) Check(ctx context.Context, cmd *store.Command) (LayerResult, error) {
	required, ok := e.required[cmd.Intent]
	if !ok || len(required) == 0 {
		return LayerResult{Status: LayerPass}, nil
	}

	var missing []string
	for _, key := range required {
		value, present := cmd.Parameters[key]
		if !present {
			missing = append(missing, key)
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) == 0 {
		return LayerResult{Status: LayerPass}, nil
	}

	return LayerResult{
		Status: LayerNeedsClarification,
		Reason: fmt.Sprintf("intent %q is missing required inputs: %s", cmd.Intent, strings.Join(missing, ", ")),
		Metadata: map[string]interface{}{
			"missing_inputs": missing,
		},
	}, nil
}
