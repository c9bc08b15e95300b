package decision

import (
	"context"
	"log/slog"

	"github.com/regnantlabs/regent/internal/store"
)

// ModeSource resolves the governance mode for a workspace. It is consulted on
// every check call so a mode change is observed by the very next check.
type ModeSource interface {
	ModeFor(ctx context.Context, workspaceID string) Mode
}

// StoreModeSource reads the per-workspace override from the store and falls
// back to a configured default.
type StoreModeSource struct {
	store       *store.Store
	defaultMode Mode
}

func NewStoreModeSource(st *store.Store, defaultMode Mode) *StoreModeSource {
	if defaultMode != ModeStrict && defaultMode != ModeWarning {
		defaultMode = ModeStrict
	}
	return &StoreModeSource{store: st, defaultMode: defaultMode}
}

func (s *StoreModeSource) ModeFor(ctx context.Context, workspaceID string) Mode {
	mode, err := s.store.GovernanceMode(workspaceID)
	if err != nil {
		slog.Warn("Failed to read governance mode, using default",
			"workspace", workspaceID, "default", s.defaultMode, "error", err)
		return s.defaultMode
	}
	switch Mode(mode) {
	case ModeStrict, ModeWarning:
		return Mode(mode)
	}
	return s.defaultMode
}

// StaticModeSource returns a fixed mode. Used in tests and single-tenant
// deployments without stored overrides.
type StaticModeSource struct {
	Mode Mode
}

func (s StaticModeSource) ModeFor(ctx context.Context, workspaceID string) Mode {
	return s.Mode
}
