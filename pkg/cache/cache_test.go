package cache

import (
	"context"
	"testing"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Expiration(t *testing.T) {
	c := New(Config{TTL: 20 * time.Millisecond})
	defer c.Close()

	c.Set("a", 1)
	c.SetWithExpiration("b", 2, 0)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestCache_EvictsWhenFull(t *testing.T) {
	c := New(Config{MaxItems: 2})
	defer c.Close()

	c.SetWithExpiration("soon", 1, time.Minute)
	c.SetWithExpiration("later", 2, time.Hour)
	c.SetWithExpiration("new", 3, time.Hour)

	assert.Equal(t, 2, c.Count())
	_, ok := c.Get("soon")
	assert.False(t, ok)
	_, ok = c.Get("later")
	assert.True(t, ok)

	// Overwriting an existing key never evicts
	c.Set("new", 4)
	assert.Equal(t, 2, c.Count())
}

func TestCache_CleanupRemovesExpired(t *testing.T) {
	c := New(Config{TTL: 5 * time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	defer c.Close()

	c.Set("a", 1)
	assert.Eventually(t, func() bool { return c.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSnapshotStore(t *testing.T) {
	c := New(Config{})
	defer c.Close()
	store := NewSnapshotStore(c)
	ctx := context.Background()

	_, err := store.Load(ctx, "7")
	require.ErrorIs(t, err, errors.ErrNotFound)

	snapshot := models.Snapshot{
		SessionID: "s1",
		UserID:    "7",
		RoomCount: 1,
		Rooms:     []models.Room{{ID: "r1", Name: "general"}},
		Messages:  map[string][]models.Message{"r1": {{ID: "m1", RoomID: "r1", Content: "hi", ContentType: models.ContentText}}},
	}
	require.NoError(t, store.Save(ctx, snapshot))

	// Mutating the caller's copy does not reach the store
	snapshot.Rooms[0].Name = "changed"

	loaded, err := store.Load(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.SessionID)
	assert.Equal(t, "general", loaded.Rooms[0].Name)
	assert.Equal(t, "hi", loaded.Messages["r1"][0].Content)
}
