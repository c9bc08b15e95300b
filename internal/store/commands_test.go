package store

import (
	"testing"
	"time"

	regentErrors "github.com/regnantlabs/regent/internal/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), RuntimeConfig{})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCommand(id, workspaceID string) *Command {
	now := time.Now().UTC()
	return &Command{
		ID:            id,
		WorkspaceID:   workspaceID,
		ActorID:       "actor-1",
		SourceSurface: "cli",
		Intent:        "echo",
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestCreateAndGetCommand(t *testing.T) {
	s := openTestStore(t)

	cmd := testCommand("cmd-1", "ws-1")
	cmd.Metadata = map[string]string{"pack_id": "pack-7"}
	if err := s.CreateCommand(cmd); err != nil {
		t.Fatalf("CreateCommand failed: %v", err)
	}

	got, err := s.GetCommand("cmd-1")
	if err != nil {
		t.Fatalf("GetCommand failed: %v", err)
	}
	if got.Intent != "echo" || got.Status != StatusPending {
		t.Errorf("Unexpected command %+v", got)
	}
	if got.Metadata["pack_id"] != "pack-7" {
		t.Errorf("Metadata not round-tripped: %+v", got.Metadata)
	}
}

func TestCreateCommandDuplicate(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateCommand(testCommand("cmd-1", "ws-1")); err != nil {
		t.Fatal(err)
	}
	err := s.CreateCommand(testCommand("cmd-1", "ws-1"))
	if !regentErrors.IsCategory(err, regentErrors.ErrConflict) {
		t.Errorf("Expected conflict, got %v", err)
	}
}

func TestGetCommandNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetCommand("missing")
	if !regentErrors.IsCategory(err, regentErrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestTransitionCommand(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateCommand(testCommand("cmd-1", "ws-1")); err != nil {
		t.Fatal(err)
	}

	updated, err := s.TransitionCommand("cmd-1", []CommandStatus{StatusPending}, StatusRunning, nil)
	if err != nil {
		t.Fatalf("PENDING->RUNNING failed: %v", err)
	}
	if updated.Status != StatusRunning {
		t.Errorf("Expected RUNNING, got %s", updated.Status)
	}

	updated, err = s.TransitionCommand("cmd-1", []CommandStatus{StatusRunning}, StatusCompleted, func(c *Command) {
		c.ExecutionID = "exec-1"
	})
	if err != nil {
		t.Fatalf("RUNNING->COMPLETED failed: %v", err)
	}
	if updated.ExecutionID != "exec-1" {
		t.Errorf("Mutate not applied: %+v", updated)
	}
}

func TestTransitionFromTerminalIsConflict(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateCommand(testCommand("cmd-1", "ws-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransitionCommand("cmd-1", []CommandStatus{StatusPending}, StatusRejected, nil); err != nil {
		t.Fatal(err)
	}

	_, err := s.TransitionCommand("cmd-1", []CommandStatus{StatusPending}, StatusRunning, nil)
	if !regentErrors.IsCategory(err, regentErrors.ErrConflict) {
		t.Errorf("Expected conflict, got %v", err)
	}

	// The record is untouched by the failed attempt.
	got, err := s.GetCommand("cmd-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusRejected {
		t.Errorf("Record changed by failed transition: %s", got.Status)
	}
}

func TestTransitionCommandNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.TransitionCommand("missing", []CommandStatus{StatusPending}, StatusRunning, nil)
	if !regentErrors.IsCategory(err, regentErrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestListCommandsFilterAndOrder(t *testing.T) {
	s := openTestStore(t)

	older := testCommand("cmd-old", "ws-1")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testCommand("cmd-new", "ws-1")
	other := testCommand("cmd-other", "ws-2")
	other.ActorID = "actor-2"

	for _, cmd := range []*Command{older, newer, other} {
		if err := s.CreateCommand(cmd); err != nil {
			t.Fatal(err)
		}
	}

	commands, err := s.ListCommands(CommandFilter{WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(commands))
	}
	if commands[0].ID != "cmd-new" || commands[1].ID != "cmd-old" {
		t.Errorf("Expected newest first, got %s then %s", commands[0].ID, commands[1].ID)
	}

	commands, err = s.ListCommands(CommandFilter{ActorID: "actor-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(commands) != 1 || commands[0].ID != "cmd-other" {
		t.Errorf("Actor filter failed: %+v", commands)
	}

	commands, err = s.ListCommands(CommandFilter{WorkspaceID: "ws-1", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(commands) != 1 {
		t.Errorf("Limit not applied, got %d", len(commands))
	}
}

func TestCommandStatusTerminal(t *testing.T) {
	terminal := []CommandStatus{StatusCompleted, StatusFailed, StatusRejected}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
	for _, status := range []CommandStatus{StatusPending, StatusRunning} {
		if status.Terminal() {
			t.Errorf("%s should not be terminal", status)
		}
	}
}
