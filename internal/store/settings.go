package store

import (
	"encoding/binary"
	"fmt"
	"time"

	regentErrors "github.com/regnantlabs/regent/internal/errors"

	"go.etcd.io/bbolt"
)

// GovernanceMode returns the stored per-workspace mode, or "" when the
// workspace has no override.
func (s *Store) GovernanceMode(workspaceID string) (string, error) {
	var mode string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get(settingsKey(workspaceID, "governance_mode"))
		mode = string(data)
		return nil
	})
	if err != nil {
		return "", regentErrors.Storage(err)
	}
	return mode, nil
}

// SetGovernanceMode stores the per-workspace mode override. The very next
// admission check observes the new value; nothing caches it.
func (s *Store) SetGovernanceMode(workspaceID, mode string) error {
	if workspaceID == "" {
		return regentErrors.InvalidInput("workspace id is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Put(settingsKey(workspaceID, "governance_mode"), []byte(mode))
	})
	if err != nil {
		return regentErrors.Storage(err)
	}
	return nil
}

// IncrDailyCount bumps the actor's dispatch counter for today and returns the
// new value. Counters are keyed by calendar day so quotas reset at midnight.
func (s *Store) IncrDailyCount(workspaceID, actorID string) (int, error) {
	var count int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQuota)
		key := quotaKey(workspaceID, actorID)
		count = int(decodeCount(bucket.Get(key))) + 1
		return bucket.Put(key, encodeCount(uint64(count)))
	})
	if err != nil {
		return 0, regentErrors.Storage(err)
	}
	return count, nil
}

// DailyCount reads the actor's dispatch counter for today.
func (s *Store) DailyCount(workspaceID, actorID string) (int, error) {
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = int(decodeCount(tx.Bucket(bucketQuota).Get(quotaKey(workspaceID, actorID))))
		return nil
	})
	if err != nil {
		return 0, regentErrors.Storage(err)
	}
	return count, nil
}

func settingsKey(workspaceID, field string) []byte {
	return []byte(fmt.Sprintf("%s/%s", workspaceID, field))
}

func quotaKey(workspaceID, actorID string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s", workspaceID, actorID, time.Now().Format("20060102")))
}

func encodeCount(count uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, count)
	return data
}

func decodeCount(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}
