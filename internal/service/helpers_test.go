package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/internal/ws"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func testRooms(n int) []models.Room {
	rooms := make([]models.Room, n)
	for i := range rooms {
		rooms[i] = models.Room{
			ID:            fmt.Sprintf("room-%d", i+1),
			Name:          fmt.Sprintf("Room %d", i+1),
			IsGroup:       i%2 == 0,
			Users:         []models.UserSummary{{ID: "1", Name: "Ann"}, {ID: models.UserID(fmt.Sprint(i + 2)), Name: "Bob"}},
			LastMessageAt: baseTime.Add(-time.Duration(i) * time.Hour),
		}
	}
	return rooms
}

func testMessage(id, roomID string, minute int) models.Message {
	return models.Message{
		ID:          id,
		RoomID:      roomID,
		Sender:      models.UserSummary{ID: "2", Name: "Bob"},
		Content:     "message " + id,
		ContentType: models.ContentText,
		CreatedAt:   baseTime.Add(time.Duration(minute) * time.Minute),
	}
}

func messageIDs(msgs []models.Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

// fakeConnection stands in for the connection manager
type fakeConnection struct {
	mu             sync.Mutex
	connectErr     error
	state          ws.State
	connects       int
	disconnects    int
	onDisconnected []func(error)
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{state: ws.StateDisconnected}
}

func (c *fakeConnection) Connect(ctx context.Context, credential string) (ws.ConnectionHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr != nil {
		c.state = ws.StateErrored
		return ws.ConnectionHandle{}, c.connectErr
	}
	c.state = ws.StateConnected
	return ws.ConnectionHandle{ID: "conn-1", ConnectedAt: baseTime}, nil
}

func (c *fakeConnection) Disconnect() {
	c.mu.Lock()
	c.disconnects++
	wasLive := c.state == ws.StateConnected
	c.state = ws.StateDisconnected
	fns := append([]func(error){}, c.onDisconnected...)
	c.mu.Unlock()

	if wasLive {
		for _, fn := range fns {
			fn(nil)
		}
	}
}

func (c *fakeConnection) OnDisconnected(fn func(reason error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnected = append(c.onDisconnected, fn)
}

func (c *fakeConnection) State() ws.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// drop simulates the remote closing the connection
func (c *fakeConnection) drop(reason error) {
	c.mu.Lock()
	c.state = ws.StateDisconnected
	fns := append([]func(error){}, c.onDisconnected...)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(reason)
	}
}

func (c *fakeConnection) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}
