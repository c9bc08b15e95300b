package store

import (
	"fmt"
	"testing"
	"time"

	regentErrors "github.com/regnantlabs/regent/internal/errors"
)

func testEvent(workspaceID, eventType string) *SurfaceEvent {
	return &SurfaceEvent{
		ID:            fmt.Sprintf("ev-%d", time.Now().UnixNano()),
		WorkspaceID:   workspaceID,
		SourceSurface: "cli",
		EventType:     eventType,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestAppendEventAssignsMonotonicSeq(t *testing.T) {
	s := openTestStore(t)

	var last uint64
	for i := 0; i < 5; i++ {
		event := testEvent("ws-1", "command.pending")
		if err := s.AppendEvent(event); err != nil {
			t.Fatal(err)
		}
		if event.Seq <= last {
			t.Errorf("Seq not monotonic: %d after %d", event.Seq, last)
		}
		last = event.Seq
	}
}

func TestAppendEventSeqIsPerWorkspace(t *testing.T) {
	s := openTestStore(t)

	a := testEvent("ws-a", "command.pending")
	if err := s.AppendEvent(a); err != nil {
		t.Fatal(err)
	}
	b := testEvent("ws-b", "command.pending")
	if err := s.AppendEvent(b); err != nil {
		t.Fatal(err)
	}

	// Each workspace gets its own counter starting at 1.
	if a.Seq != 1 || b.Seq != 1 {
		t.Errorf("Expected independent sequences, got %d and %d", a.Seq, b.Seq)
	}
}

func TestAppendEventRequiresWorkspace(t *testing.T) {
	s := openTestStore(t)

	err := s.AppendEvent(&SurfaceEvent{ID: "ev-1"})
	if !regentErrors.IsCategory(err, regentErrors.ErrInvalidInput) {
		t.Errorf("Expected invalid input, got %v", err)
	}
}

func TestQueryEventsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		event := testEvent("ws-1", fmt.Sprintf("type-%d", i))
		if err := s.AppendEvent(event); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.QueryEvents("ws-1", EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].EventType != "type-2" || events[2].EventType != "type-0" {
		t.Errorf("Expected newest first, got %s .. %s", events[0].EventType, events[2].EventType)
	}
}

func TestQueryEventsFilters(t *testing.T) {
	s := openTestStore(t)

	matching := testEvent("ws-1", "command.completed")
	matching.CommandID = "cmd-1"
	matching.ActorID = "actor-1"
	matching.PackID = "pack-7"
	if err := s.AppendEvent(matching); err != nil {
		t.Fatal(err)
	}

	other := testEvent("ws-1", "command.completed")
	other.CommandID = "cmd-2"
	if err := s.AppendEvent(other); err != nil {
		t.Fatal(err)
	}

	events, err := s.QueryEvents("ws-1", EventFilter{CommandID: "cmd-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].CommandID != "cmd-1" {
		t.Errorf("Command filter failed: %+v", events)
	}

	events, err = s.QueryEvents("ws-1", EventFilter{PackID: "pack-7"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].PackID != "pack-7" {
		t.Errorf("Pack filter failed: %+v", events)
	}

	events, err = s.QueryEvents("ws-1", EventFilter{EventType: "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no matches, got %d", len(events))
	}
}

func TestQueryEventsLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 10; i++ {
		if err := s.AppendEvent(testEvent("ws-1", "command.pending")); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.QueryEvents("ws-1", EventFilter{Limit: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Errorf("Expected 4 events, got %d", len(events))
	}
	if events[0].Seq != 10 {
		t.Errorf("Expected newest seq 10 first, got %d", events[0].Seq)
	}
}

func TestQueryEventsUnknownWorkspace(t *testing.T) {
	s := openTestStore(t)

	events, err := s.QueryEvents("never-seen", EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("Expected empty result, got %d", len(events))
	}
}
