package stream

import (
	"context"
	"fmt"
	"testing"

	regentErrors "github.com/regnantlabs/regent/internal/errors"
	"github.com/regnantlabs/regent/internal/store"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	db, err := store.Open(t.TempDir(), store.RuntimeConfig{})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestCollectValidation(t *testing.T) {
	s := newTestStream(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		record Record
	}{
		{"missing workspace", Record{SourceSurface: "cli", EventType: "x"}},
		{"missing surface", Record{WorkspaceID: "ws-1", EventType: "x"}},
		{"missing event type", Record{WorkspaceID: "ws-1", SourceSurface: "cli"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Collect(ctx, tc.record)
			if !regentErrors.IsCategory(err, regentErrors.ErrInvalidInput) {
				t.Errorf("Expected invalid input, got %v", err)
			}
		})
	}
}

func TestCollectAssignsIDAndSeq(t *testing.T) {
	s := newTestStream(t)

	event, err := s.Collect(context.Background(), Record{
		WorkspaceID:   "ws-1",
		SourceSurface: "cli",
		EventType:     "command.pending",
		ActorID:       "actor-1",
		CommandID:     "cmd-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if event.ID == "" {
		t.Error("Event id not assigned")
	}
	if event.Seq != 1 {
		t.Errorf("Expected seq 1, got %d", event.Seq)
	}
	if event.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCollectFlattensProvenance(t *testing.T) {
	s := newTestStream(t)

	event, err := s.Collect(context.Background(), Record{
		WorkspaceID:   "ws-1",
		SourceSurface: "cli",
		EventType:     "governance.decision",
		Payload: map[string]interface{}{
			"pack_id":          "pack-7",
			"card_id":          "card-3",
			"scope":            "billing",
			"playbook_version": "v2",
			"other":            "ignored",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if event.PackID != "pack-7" || event.CardID != "card-3" || event.Scope != "billing" || event.PlaybookVersion != "v2" {
		t.Errorf("Provenance not flattened: %+v", event)
	}
	// The payload keeps the tags verbatim.
	if event.Payload["pack_id"] != "pack-7" {
		t.Errorf("Payload mutated: %+v", event.Payload)
	}
}

func TestQueryNewestFirstWithDefaultLimit(t *testing.T) {
	s := newTestStream(t)
	ctx := context.Background()

	total := DefaultQueryLimit + 10
	for i := 0; i < total; i++ {
		_, err := s.Collect(ctx, Record{
			WorkspaceID:   "ws-1",
			SourceSurface: "cli",
			EventType:     fmt.Sprintf("type-%d", i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.Query(ctx, "ws-1", store.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != DefaultQueryLimit {
		t.Fatalf("Expected default limit %d, got %d", DefaultQueryLimit, len(events))
	}
	if events[0].Seq != uint64(total) {
		t.Errorf("Expected newest seq %d first, got %d", total, events[0].Seq)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq >= events[i-1].Seq {
			t.Fatalf("Events not strictly newest-first at index %d", i)
		}
	}
}
