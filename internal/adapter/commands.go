package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"github.com/regnantlabs/regent/internal/bus"
	"github.com/regnantlabs/regent/internal/store"
)

// Commander parses chat slash commands and drives the bus with them. All
// chat adapters share one instance so Slack and Telegram speak the same
// command language.
type Commander struct {
	bus         *bus.Bus
	workspaceID string
}

func NewCommander(b *bus.Bus, workspaceID string) *Commander {
	return &Commander{bus: b, workspaceID: workspaceID}
}

// Handle parses one message and returns the reply text. Non-command text
// returns ("", false) so adapters can ignore ordinary chatter.
func (c *Commander) Handle(ctx context.Context, surfaceID, actorID, threadID, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	args, err := shlex.Split(text)
	if err != nil {
		return "parse error: " + err.Error(), true
	}
	if len(args) == 0 {
		return "", false
	}

	switch args[0] {
	case "/dispatch":
		return c.dispatch(ctx, surfaceID, actorID, threadID, args[1:]), true
	case "/approve":
		return c.approve(ctx, args[1:]), true
	case "/reject":
		return c.reject(ctx, args[1:]), true
	case "/commands":
		return c.list(args[1:]), true
	case "/help":
		return helpText, true
	default:
		return "unknown command " + args[0] + " (try /help)", true
	}
}

const helpText = `commands:
/dispatch <intent> [key=value ...] [--approval]
/approve <command_id>
/reject <command_id> [reason]
/commands [pending|running|completed|failed|rejected]
/help`

func (c *Commander) dispatch(ctx context.Context, surfaceID, actorID, threadID string, args []string) string {
	if len(args) == 0 {
		return "usage: /dispatch <intent> [key=value ...] [--approval]"
	}

	intent := args[0]
	params := make(map[string]interface{})
	requiresApproval := false
	for _, arg := range args[1:] {
		if arg == "--approval" {
			requiresApproval = true
			continue
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Sprintf("bad argument %q, expected key=value", arg)
		}
		params[key] = value
	}

	result, err := c.bus.Dispatch(ctx, bus.DispatchRequest{
		WorkspaceID:      c.workspaceID,
		ActorID:          actorID,
		SourceSurface:    surfaceID,
		Intent:           intent,
		Parameters:       params,
		RequiresApproval: requiresApproval,
		ThreadID:         threadID,
	})
	if err != nil {
		return "dispatch failed: " + err.Error()
	}

	switch result.Status {
	case bus.ResultPendingApproval:
		return fmt.Sprintf("command %s pending approval: %s", result.CommandID, result.Message)
	case bus.ResultRejected:
		return fmt.Sprintf("command %s rejected: %s", result.CommandID, result.Message)
	case bus.ResultFailed:
		return fmt.Sprintf("command %s failed: %s", result.CommandID, result.Message)
	default:
		return fmt.Sprintf("command %s completed (execution %s)", result.CommandID, result.ExecutionID)
	}
}

func (c *Commander) approve(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "usage: /approve <command_id>"
	}
	result, err := c.bus.Approve(ctx, args[0])
	if err != nil {
		return "approve failed: " + err.Error()
	}
	return fmt.Sprintf("command %s %s (execution %s)", result.CommandID, result.Status, result.ExecutionID)
}

func (c *Commander) reject(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "usage: /reject <command_id> [reason]"
	}
	reason := strings.Join(args[1:], " ")
	result, err := c.bus.Reject(ctx, args[0], reason)
	if err != nil {
		return "reject failed: " + err.Error()
	}
	return fmt.Sprintf("command %s rejected", result.CommandID)
}

func (c *Commander) list(args []string) string {
	filter := store.CommandFilter{WorkspaceID: c.workspaceID, Limit: 10}
	if len(args) > 0 {
		filter.Status = store.CommandStatus(strings.ToUpper(args[0]))
	}

	commands, err := c.bus.List(filter)
	if err != nil {
		return "list failed: " + err.Error()
	}
	if len(commands) == 0 {
		return "no commands"
	}

	var sb strings.Builder
	for _, cmd := range commands {
		fmt.Fprintf(&sb, "%s  %-9s  %s\n", cmd.ID, cmd.Status, cmd.Intent)
	}
	return strings.TrimRight(sb.String(), "\n")
}
