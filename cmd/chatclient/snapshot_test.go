package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/pkg/cache"
	"realtime-chat/client/pkg/errors"

	"github.com/stretchr/testify/require"
)

func TestRenderSnapshot(t *testing.T) {
	req := require.New(t)
	store := cache.NewSnapshotStore(cache.New(cache.Config{}))
	at := time.Date(2023, 7, 1, 4, 33, 34, 0, time.UTC)

	req.NoError(store.Save(context.Background(), models.Snapshot{
		SessionID: "s1",
		UserID:    "7",
		TakenAt:   at,
		RoomCount: 15,
		Rooms: []models.Room{
			{ID: "r1", Name: "General", IsGroup: true, LastMessageAt: at},
			{ID: "r2", Users: []models.UserSummary{{ID: "7", Name: "Ky"}, {ID: "8", Name: "Lan"}}},
		},
		Messages: map[string][]models.Message{
			"r1": {{ID: "m1", RoomID: "r1"}, {ID: "m2", RoomID: "r1"}},
		},
	}))

	var out bytes.Buffer
	req.NoError(renderSnapshot(context.Background(), store, "7", &out))

	text := out.String()
	req.Contains(text, "session s1")
	req.Contains(text, "2 of 15 rooms loaded")
	req.Contains(text, "General")
	req.Contains(text, "Ky, Lan")
	req.Contains(text, "2023-07-01T04:33:34Z")
}

func TestRenderSnapshot_Missing(t *testing.T) {
	store := cache.NewSnapshotStore(cache.New(cache.Config{}))

	err := renderSnapshot(context.Background(), store, "nobody", &bytes.Buffer{})

	require.Equal(t, errors.KindNotFound, errors.KindOf(err))
}
