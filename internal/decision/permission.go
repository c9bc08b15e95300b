package decision

import (
	"context"
	"fmt"

	"github.com/regnantlabs/regent/internal/store"
	"github.com/regnantlabs/regent/internal/surface"
)

// PermissionEvaluator gates intents on the permission level of the surface a
// command arrived through. The registry itself enforces nothing; this layer
// is where permission checks actually happen.
type PermissionEvaluator struct {
	registry     *surface.Registry
	intentLevels map[string]string // intent -> minimum permission level
}

func NewPermissionEvaluator(registry *surface.Registry, intentLevels map[string]string) *PermissionEvaluator {
	return &PermissionEvaluator{registry: registry, intentLevels: intentLevels}
}

func (e *PermissionEvaluator) Name() string {
	return "surface_permission"
}

func (e *PermissionEvaluator) Check(ctx context.Context, cmd *store.Command) (LayerResult, error) {
	required, ok := e.intentLevels[cmd.Intent]
	if !ok {
		return LayerResult{Status: LayerPass}, nil
	}

	def, err := e.registry.Get(cmd.SourceSurface)
	if err != nil {
		// The bus validates surface existence before the check runs, so a
		// miss here means the surface was unregistered mid-flight.
		return LayerResult{}, err
	}

	requiredLevel := surface.PermissionLevel(required)
	if def.Permission.Rank() < requiredLevel.Rank() {
		return LayerResult{
			Status: LayerFail,
			Reason: fmt.Sprintf("intent %q requires %s, surface %q is %s",
				cmd.Intent, requiredLevel, def.ID, def.Permission),
			Metadata: map[string]interface{}{
				"required_permission": string(requiredLevel),
				"surface_permission":  string(def.Permission),
			},
		}, nil
	}
	return LayerResult{Status: LayerPass}, nil
}
