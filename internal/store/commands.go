package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	regentErrors "github.com/regnantlabs/regent/internal/errors"

	"go.etcd.io/bbolt"
)

// CreateCommand persists a new command record. The id must not exist yet.
func (s *Store) CreateCommand(cmd *Command) error {
	if cmd == nil || cmd.ID == "" {
		return regentErrors.InvalidInput("command id is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCommands)
		if bucket.Get([]byte(cmd.ID)) != nil {
			return regentErrors.Conflict(fmt.Sprintf("command %s already exists", cmd.ID))
		}
		data, err := json.Marshal(cmd)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(cmd.ID), data)
	})
	if err != nil {
		if regentErrors.IsCategory(err, regentErrors.ErrConflict) {
			return err
		}
		return regentErrors.Storage(err)
	}
	return nil
}

// GetCommand loads a command record by id.
func (s *Store) GetCommand(id string) (*Command, error) {
	var cmd *Command
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCommands).Get([]byte(id))
		if data == nil {
			return nil
		}
		cmd = &Command{}
		return json.Unmarshal(data, cmd)
	})
	if err != nil {
		return nil, regentErrors.Storage(err)
	}
	if cmd == nil {
		return nil, regentErrors.NotFound(fmt.Sprintf("command %s", id))
	}
	return cmd, nil
}

// CommandFilter narrows ListCommands results.
type CommandFilter struct {
	WorkspaceID string
	Status      CommandStatus
	ActorID     string
	Limit       int
}

// ListCommands returns matching commands, newest-first by creation time.
func (s *Store) ListCommands(filter CommandFilter) ([]*Command, error) {
	var commands []*Command
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCommands).ForEach(func(k, v []byte) error {
			var cmd Command
			if err := json.Unmarshal(v, &cmd); err != nil {
				return err
			}
			if filter.WorkspaceID != "" && cmd.WorkspaceID != filter.WorkspaceID {
				return nil
			}
			if filter.Status != "" && cmd.Status != filter.Status {
				return nil
			}
			if filter.ActorID != "" && cmd.ActorID != filter.ActorID {
				return nil
			}
			commands = append(commands, &cmd)
			return nil
		})
	})
	if err != nil {
		return nil, regentErrors.Storage(err)
	}

	// Newest first. Sort on the timestamp rather than the key so
	// caller-supplied ids stay correctly ordered.
	sort.Slice(commands, func(i, j int) bool {
		return commands[i].CreatedAt.After(commands[j].CreatedAt)
	})
	if filter.Limit > 0 && len(commands) > filter.Limit {
		commands = commands[:filter.Limit]
	}
	return commands, nil
}

// TransitionCommand performs an atomic status check-and-swap. The command must
// currently be in one of the from statuses; mutate may adjust other fields
// before the record is written back with a bumped UpdatedAt. A transition
// attempted from a terminal state is a hard error and leaves the record
// untouched.
func (s *Store) TransitionCommand(id string, from []CommandStatus, to CommandStatus, mutate func(*Command)) (*Command, error) {
	var updated *Command
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCommands)
		data := bucket.Get([]byte(id))
		if data == nil {
			return regentErrors.NotFound(fmt.Sprintf("command %s", id))
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			return err
		}

		allowed := false
		for _, status := range from {
			if cmd.Status == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return regentErrors.Conflict(fmt.Sprintf(
				"command %s is %s, expected %s", id, cmd.Status, statusNames(from)))
		}

		cmd.Status = to
		cmd.UpdatedAt = time.Now()
		if mutate != nil {
			mutate(&cmd)
		}

		out, err := json.Marshal(&cmd)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(id), out); err != nil {
			return err
		}
		updated = &cmd
		return nil
	})
	if err != nil {
		if regentErrors.IsCategory(err, regentErrors.ErrNotFound) || regentErrors.IsCategory(err, regentErrors.ErrConflict) {
			return nil, err
		}
		return nil, regentErrors.Storage(err)
	}
	return updated, nil
}

func statusNames(statuses []CommandStatus) string {
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	return strings.Join(names, "|")
}
