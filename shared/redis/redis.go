package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps a go-redis client
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to url, either a redis:// URL or a host:port address
func NewRedisClient(url string) (*RedisClient, error) {
	if url == "" {
		url = "localhost:6379"
	}

	opts := &redis.Options{Addr: url}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	return &RedisClient{client: redis.NewClient(opts)}, nil
}

// Ping checks the server is reachable
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// SnapshotStore keeps the last session snapshot of each user in Redis
type SnapshotStore struct {
	redis  *RedisClient
	prefix string
	ttl    time.Duration
}

// NewSnapshotStore stores snapshots under prefix with the given expiry, 0 for none
func NewSnapshotStore(client *RedisClient, prefix string, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *SnapshotStore) key(key string) string {
	return s.prefix + key
}

// Save writes the snapshot as JSON
func (s *SnapshotStore) Save(ctx context.Context, snapshot models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.NewInternalError("SNAPSHOT_ENCODING", "could not encode snapshot").Wrap(err)
	}
	if err := s.redis.client.Set(ctx, s.key(snapshot.Key()), data, s.ttl).Err(); err != nil {
		return errors.NewNetworkError("SNAPSHOT_STORE", "could not write snapshot to redis", err)
	}
	return nil
}

// Load reads the snapshot stored under key
func (s *SnapshotStore) Load(ctx context.Context, key string) (models.Snapshot, error) {
	var snapshot models.Snapshot

	data, err := s.redis.client.Get(ctx, s.key(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return snapshot, errors.NewNotFoundError("SNAPSHOT_NOT_FOUND", "no snapshot for "+key)
	}
	if err != nil {
		return snapshot, errors.NewNetworkError("SNAPSHOT_STORE", "could not read snapshot from redis", err)
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return snapshot, errors.NewInternalError("SNAPSHOT_DECODING", "could not decode snapshot").Wrap(err)
	}
	return snapshot, nil
}
