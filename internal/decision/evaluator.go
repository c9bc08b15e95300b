package decision

import (
	"context"

	"github.com/regnantlabs/regent/internal/store"
)

// Evaluator is one independent policy layer. Check must be side-effect-free
// with respect to command and event state; read-only lookups against external
// systems are fine. An evaluator that cannot complete its check should return
// a fail result with the cause as Reason rather than an error. The
// coordinator converts a returned error (or a panic) to a fail layer either
// way, so one broken evaluator can never abort the others.
type Evaluator interface {
	Name() string
	Check(ctx context.Context, cmd *store.Command) (LayerResult, error)
}
