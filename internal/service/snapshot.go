//go:generate go run go.uber.org/mock/mockgen -source=snapshot.go -destination=mocks/mock_snapshot_store.go -package=mocks
package service

import (
	"context"

	"realtime-chat/client/internal/models"
)

// SnapshotStore persists the last snapshot of each user's session
type SnapshotStore interface {
	Save(ctx context.Context, snapshot models.Snapshot) error
	Load(ctx context.Context, key string) (models.Snapshot, error)
}
