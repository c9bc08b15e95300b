package store

import (
	"encoding/json"
	"fmt"

	regentErrors "github.com/regnantlabs/regent/internal/errors"

	"go.etcd.io/bbolt"
)

// PutExecution persists an execution trace record.
func (s *Store) PutExecution(record *ExecutionRecord) error {
	if record == nil || record.ID == "" {
		return regentErrors.InvalidInput("execution id is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketExecutions).Put([]byte(record.ID), data)
	})
	if err != nil {
		return regentErrors.Storage(err)
	}
	return nil
}

// GetExecution loads an execution trace record by id.
func (s *Store) GetExecution(id string) (*ExecutionRecord, error) {
	var record *ExecutionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketExecutions).Get([]byte(id))
		if data == nil {
			return nil
		}
		record = &ExecutionRecord{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, regentErrors.Storage(err)
	}
	if record == nil {
		return nil, regentErrors.NotFound(fmt.Sprintf("execution %s", id))
	}
	return record, nil
}
