package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/regnantlabs/regent/internal/errors"
	"github.com/regnantlabs/regent/internal/store"
)

// EchoHandler returns the command parameters as JSON. Useful for verifying
// the governance pipeline end to end without side effects.
func EchoHandler(ctx context.Context, cmd *store.Command) (string, error) {
	data, err := json.Marshal(cmd.Parameters)
	if err != nil {
		return "", errors.Internal("failed to marshal parameters")
	}
	return string(data), nil
}

// ShellHandler runs the "line" parameter as a local process. It is
// deliberately gated behind governance; operators should blocklist or
// require approval for the shell.run intent in untrusted workspaces.
func ShellHandler(ctx context.Context, cmd *store.Command) (string, error) {
	raw, ok := cmd.Parameters["line"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errors.InvalidInput("shell.run requires a line parameter")
	}

	argv, err := shlex.Split(raw)
	if err != nil {
		return "", errors.InvalidInput("failed to parse command line: " + err.Error())
	}
	if len(argv) == 0 {
		return "", errors.InvalidInput("empty command line")
	}

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", argv[0], err)
	}
	return string(out), nil
}

// RegisterBuiltins installs the handlers every deployment gets.
func RegisterBuiltins(r *IntentRunner) {
	r.Register("echo", EchoHandler)
	r.Register("shell.run", ShellHandler)
}
