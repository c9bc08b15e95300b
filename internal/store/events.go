package store

import (
	"encoding/binary"
	"encoding/json"

	regentErrors "github.com/regnantlabs/regent/internal/errors"

	"go.etcd.io/bbolt"
)

// AppendEvent writes an event to the workspace's append-only log. The store
// assigns the per-workspace sequence number; events are never updated or
// deleted afterwards.
func (s *Store) AppendEvent(event *SurfaceEvent) error {
	if event == nil || event.WorkspaceID == "" {
		return regentErrors.InvalidInput("event workspace id is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		workspace, err := tx.Bucket(bucketEvents).CreateBucketIfNotExists([]byte(event.WorkspaceID))
		if err != nil {
			return err
		}

		seq, err := workspace.NextSequence()
		if err != nil {
			return err
		}
		event.Seq = seq

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return workspace.Put(seqKey(seq), data)
	})
	if err != nil {
		return regentErrors.Storage(err)
	}
	return nil
}

// EventFilter narrows QueryEvents results. Zero-valued fields are ignored.
type EventFilter struct {
	SourceSurface string
	EventType     string
	ActorID       string
	CommandID     string
	ThreadID      string
	CorrelationID string
	ExecutionID   string
	PackID        string
	CardID        string
	Limit         int
}

// QueryEvents scans a workspace's log newest-first and returns events that
// match every set filter field, up to Limit (unbounded when <= 0).
func (s *Store) QueryEvents(workspaceID string, filter EventFilter) ([]*SurfaceEvent, error) {
	if workspaceID == "" {
		return nil, regentErrors.InvalidInput("workspace id is required")
	}

	var events []*SurfaceEvent
	err := s.db.View(func(tx *bbolt.Tx) error {
		workspace := tx.Bucket(bucketEvents).Bucket([]byte(workspaceID))
		if workspace == nil {
			return nil
		}

		c := workspace.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var event SurfaceEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			if !filter.matches(&event) {
				continue
			}
			events = append(events, &event)
			if filter.Limit > 0 && len(events) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, regentErrors.Storage(err)
	}
	return events, nil
}

func (f EventFilter) matches(event *SurfaceEvent) bool {
	if f.SourceSurface != "" && event.SourceSurface != f.SourceSurface {
		return false
	}
	if f.EventType != "" && event.EventType != f.EventType {
		return false
	}
	if f.ActorID != "" && event.ActorID != f.ActorID {
		return false
	}
	if f.CommandID != "" && event.CommandID != f.CommandID {
		return false
	}
	if f.ThreadID != "" && event.ThreadID != f.ThreadID {
		return false
	}
	if f.CorrelationID != "" && event.CorrelationID != f.CorrelationID {
		return false
	}
	if f.ExecutionID != "" && event.ExecutionID != f.ExecutionID {
		return false
	}
	if f.PackID != "" && event.PackID != f.PackID {
		return false
	}
	if f.CardID != "" && event.CardID != f.CardID {
		return false
	}
	return true
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
