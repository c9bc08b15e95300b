package adapter

import (
	"context"
)

// InputAdapter receives commands from an external chat platform and relays
// replies back. Each adapter owns one registered surface.
type InputAdapter interface {
	// Name returns the surface id the adapter dispatches under.
	Name() string

	// Start begins listening (server or long-poll). Must respect context
	// cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts the adapter down.
	Stop(ctx context.Context) error

	// Health reports whether the adapter is connected.
	Health(ctx context.Context) error
}

// OutputAdapter delivers text to a platform destination. threadID maps to
// the platform-specific identifier (channel ID, chat ID).
type OutputAdapter interface {
	Name() string
	Send(ctx context.Context, threadID string, content string) error
	Health(ctx context.Context) error
}
