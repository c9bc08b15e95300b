package stream

import (
	"context"
	"log/slog"
	"time"

	regentErrors "github.com/regnantlabs/regent/internal/errors"
	"github.com/regnantlabs/regent/internal/store"

	"github.com/oklog/ulid/v2"
)

const DefaultQueryLimit = 100

// Stream is the append-only audit log of the core. Every component records
// what happened here; nothing ever reads an event back to make a decision, so
// event writes never block or get blocked by command state transitions.
type Stream struct {
	store *store.Store
}

func New(st *store.Store) *Stream {
	return &Stream{store: st}
}

// Record describes an event to collect. WorkspaceID, SourceSurface and
// EventType are required; everything else is optional correlation.
type Record struct {
	WorkspaceID   string
	SourceSurface string
	EventType     string
	ActorID       string
	Payload       map[string]interface{}
	CommandID     string
	ThreadID      string
	CorrelationID string
	ParentEventID string
	ExecutionID   string
}

// Collect appends one immutable event. Provenance tags found in the payload
// are flattened onto first-class fields for indexed filtering; the payload
// keeps them verbatim. A storage failure is returned as an explicit error,
// never a silently-dropped write.
func (s *Stream) Collect(ctx context.Context, record Record) (*store.SurfaceEvent, error) {
	if record.WorkspaceID == "" {
		return nil, regentErrors.InvalidInput("workspace id is required")
	}
	if record.SourceSurface == "" {
		return nil, regentErrors.InvalidInput("source surface is required")
	}
	if record.EventType == "" {
		return nil, regentErrors.InvalidInput("event type is required")
	}

	event := &store.SurfaceEvent{
		ID:            ulid.Make().String(),
		WorkspaceID:   record.WorkspaceID,
		SourceSurface: record.SourceSurface,
		EventType:     record.EventType,
		ActorID:       record.ActorID,
		Payload:       record.Payload,
		CommandID:     record.CommandID,
		ThreadID:      record.ThreadID,
		CorrelationID: record.CorrelationID,
		ParentEventID: record.ParentEventID,
		ExecutionID:   record.ExecutionID,
		CreatedAt:     time.Now(),
	}
	flattenProvenance(event)

	if err := s.store.AppendEvent(event); err != nil {
		return nil, err
	}

	slog.Debug("Event collected",
		"id", event.ID,
		"workspace", event.WorkspaceID,
		"type", event.EventType,
		"command", event.CommandID)
	return event, nil
}

// Query returns matching events newest-first. A zero limit applies
// DefaultQueryLimit.
func (s *Stream) Query(ctx context.Context, workspaceID string, filter store.EventFilter) ([]*store.SurfaceEvent, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultQueryLimit
	}
	return s.store.QueryEvents(workspaceID, filter)
}

// flattenProvenance lifts well-known opaque tags out of the payload. The core
// never interprets them; they exist as columns purely so queries can filter.
func flattenProvenance(event *store.SurfaceEvent) {
	if event.Payload == nil {
		return
	}
	if v, ok := event.Payload["pack_id"].(string); ok {
		event.PackID = v
	}
	if v, ok := event.Payload["card_id"].(string); ok {
		event.CardID = v
	}
	if v, ok := event.Payload["scope"].(string); ok {
		event.Scope = v
	}
	if v, ok := event.Payload["playbook_version"].(string); ok {
		event.PlaybookVersion = v
	}
}
