package store

import (
	"encoding/json"
	"fmt"

	regentErrors "github.com/regnantlabs/regent/internal/errors"

	"go.etcd.io/bbolt"
)

// PutSchedule creates or replaces a schedule record.
func (s *Store) PutSchedule(schedule *Schedule) error {
	if schedule == nil || schedule.ID == "" {
		return regentErrors.InvalidInput("schedule id is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(schedule)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSchedules).Put([]byte(schedule.ID), data)
	})
	if err != nil {
		return regentErrors.Storage(err)
	}
	return nil
}

// GetSchedule loads a schedule by id.
func (s *Store) GetSchedule(id string) (*Schedule, error) {
	var schedule *Schedule
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSchedules).Get([]byte(id))
		if data == nil {
			return nil
		}
		schedule = &Schedule{}
		return json.Unmarshal(data, schedule)
	})
	if err != nil {
		return nil, regentErrors.Storage(err)
	}
	if schedule == nil {
		return nil, regentErrors.NotFound(fmt.Sprintf("schedule %s", id))
	}
	return schedule, nil
}

// ListSchedules returns all schedules, optionally filtered by workspace.
func (s *Store) ListSchedules(workspaceID string) ([]*Schedule, error) {
	var schedules []*Schedule
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSchedules).ForEach(func(k, v []byte) error {
			var schedule Schedule
			if err := json.Unmarshal(v, &schedule); err != nil {
				return err
			}
			if workspaceID != "" && schedule.WorkspaceID != workspaceID {
				return nil
			}
			schedules = append(schedules, &schedule)
			return nil
		})
	})
	if err != nil {
		return nil, regentErrors.Storage(err)
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule. Schedules are operator configuration,
// not audit records, so deletion is allowed.
func (s *Store) DeleteSchedule(id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSchedules).Get([]byte(id)) == nil {
			return regentErrors.NotFound(fmt.Sprintf("schedule %s", id))
		}
		return tx.Bucket(bucketSchedules).Delete([]byte(id))
	})
	if err != nil {
		if regentErrors.IsCategory(err, regentErrors.ErrNotFound) {
			return err
		}
		return regentErrors.Storage(err)
	}
	return nil
}
