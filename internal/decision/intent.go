package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/regnantlabs/regent/internal/store"
)

// IntentPolicyEvaluator checks the command's intent code against the
// workspace blocklist. Intents on the auto-allow list pass outright; unknown
// intents pass with a warning so operators can spot unreviewed capabilities.
type IntentPolicyEvaluator struct {
	autoAllow []string
	blocked   []string
}

func NewIntentPolicyEvaluator(autoAllow, blocked []string) *IntentPolicyEvaluator {
	return &IntentPolicyEvaluator{autoAllow: autoAllow, blocked: blocked}
}

func (e *IntentPolicyEvaluator) Name() string {
	return "intent_policy"
}

func (e *IntentPolicyEvaluator) Check(ctx context.Context, cmd *store.Command) (LayerResult, error) {
	intent := strings.TrimSpace(cmd.Intent)

	for _, blocked := range e.blocked {
		if strings.EqualFold(strings.TrimSpace(blocked), intent) {
			return LayerResult{
				Status: LayerFail,
				Reason: fmt.Sprintf("intent %q is blocked", intent),
				Metadata: map[string]interface{}{
					"blocked_by_blacklist": true,
				},
			}, nil
		}
	}

	for _, allowed := range e.autoAllow {
		if strings.EqualFold(strings.TrimSpace(allowed), intent) {
			return LayerResult{Status: LayerPass}, nil
		}
	}

	return LayerResult{
		Status: LayerWarning,
		Reason: fmt.Sprintf("intent %q is not on the auto-allow list", intent),
	}, nil
}
