package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/internal/ws"
	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"
	wire "realtime-chat/client/pkg/ws"

	"github.com/samber/lo"
)

// RoomDirectory caches the pages of rooms the user belongs to, in server order
type RoomDirectory struct {
	requester Requester
	log       *logger.Logger

	mu    sync.RWMutex
	pages map[int][]models.Room
	count int
}

// NewRoomDirectory creates an empty directory
func NewRoomDirectory(requester Requester, log *logger.Logger) *RoomDirectory {
	return &RoomDirectory{
		requester: requester,
		log:       log.WithComponent("rooms"),
		pages:     make(map[int][]models.Room),
	}
}

// LoadRooms fetches one page of rooms and replaces any page cached at the same offset
func (d *RoomDirectory) LoadRooms(ctx context.Context, limit, offset int) (models.RoomPage, error) {
	if limit <= 0 || offset < 0 {
		return models.RoomPage{}, errors.NewBadRequestError("INVALID_PAGE", "limit must be positive and offset not negative").
			WithDetails(map[string]int{"limit": limit, "offset": offset})
	}

	page, err := ws.Call[models.RoomPage](ctx, d.requester, wire.MethodGetGroups, wire.GetGroupsRequest{Limit: limit, Offset: offset})
	if err != nil {
		d.log.LogError(err, "Loading rooms failed", "limit", limit, "offset", offset)
		return models.RoomPage{}, err
	}

	d.mu.Lock()
	d.pages[offset] = append([]models.Room(nil), page.Items...)
	d.count = page.Count
	d.mu.Unlock()

	d.log.Debug("Rooms loaded", "offset", offset, "items", len(page.Items), "count", page.Count)
	return page, nil
}

// Rooms returns every cached room, pages in offset order, each room once
func (d *RoomDirectory) Rooms() []models.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	offsets := lo.Keys(d.pages)
	sort.Ints(offsets)

	var rooms []models.Room
	for _, offset := range offsets {
		rooms = append(rooms, d.pages[offset]...)
	}
	return lo.UniqBy(rooms, func(r models.Room) string { return r.ID })
}

// Count is the total number of rooms reported by the server on the last load
func (d *RoomDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

// FindByID looks a room up in the cached pages
func (d *RoomDirectory) FindByID(roomID string) (models.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, page := range d.pages {
		if room, ok := lo.Find(page, func(r models.Room) bool { return r.ID == roomID }); ok {
			return room, nil
		}
	}
	return models.Room{}, errors.NewNotFoundError("ROOM_NOT_FOUND", "room is not in the directory").
		WithDetails(map[string]string{"roomId": roomID})
}

// Touch records activity in a room. The room keeps its position; only
// lastMessageAt moves, and never backwards.
func (d *RoomDirectory) Touch(roomID string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := false
	for _, page := range d.pages {
		for i := range page {
			if page[i].ID != roomID {
				continue
			}
			found = true
			if at.After(page[i].LastMessageAt) {
				page[i].LastMessageAt = at
			}
		}
	}
	return found
}
