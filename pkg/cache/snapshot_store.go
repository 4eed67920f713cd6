package cache

import (
	"context"
	"encoding/json"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/pkg/errors"
)

// SnapshotStore keeps session snapshots in memory, encoded so callers never
// share slices with the stored copy
type SnapshotStore struct {
	cache *Cache
}

// NewSnapshotStore wraps a cache
func NewSnapshotStore(cache *Cache) *SnapshotStore {
	return &SnapshotStore{cache: cache}
}

// Save stores the snapshot under its key
func (s *SnapshotStore) Save(_ context.Context, snapshot models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.NewInternalError("SNAPSHOT_ENCODING", "could not encode snapshot").Wrap(err)
	}
	s.cache.Set(snapshot.Key(), data)
	return nil
}

// Load returns the snapshot stored under key
func (s *SnapshotStore) Load(_ context.Context, key string) (models.Snapshot, error) {
	var snapshot models.Snapshot

	value, ok := s.cache.Get(key)
	if !ok {
		return snapshot, errors.NewNotFoundError("SNAPSHOT_NOT_FOUND", "no snapshot for "+key)
	}
	if err := json.Unmarshal(value.([]byte), &snapshot); err != nil {
		return snapshot, errors.NewInternalError("SNAPSHOT_DECODING", "could not decode snapshot").Wrap(err)
	}
	return snapshot, nil
}
