package redis

import (
	"context"
	"testing"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		addr    string
		wantErr bool
	}{
		{name: "default", url: "", addr: "localhost:6379"},
		{name: "address", url: "cache:6380", addr: "cache:6380"},
		{name: "url", url: "redis://:secret@cache:6381/2", addr: "cache:6381"},
		{name: "bad scheme", url: "http://cache", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisClient(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer client.Close()
			assert.Equal(t, tt.addr, client.client.Options().Addr)
		})
	}
}

func TestSnapshotStore_Unreachable(t *testing.T) {
	client, err := NewRedisClient("127.0.0.1:1")
	require.NoError(t, err)
	defer client.Close()

	store := NewSnapshotStore(client, "chat:snapshot:", time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = store.Save(ctx, models.Snapshot{UserID: "7"})
	assert.ErrorIs(t, err, errors.ErrNetwork)

	_, err = store.Load(ctx, "7")
	assert.ErrorIs(t, err, errors.ErrNetwork)
	assert.Equal(t, "chat:snapshot:7", store.key("7"))
}
