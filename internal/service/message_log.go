package service

import (
	"context"
	"slices"
	"strings"
	"sync"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/internal/ws"
	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"
	wire "realtime-chat/client/pkg/ws"

	"golang.org/x/time/rate"
)

// MessageLogConfig holds the send throttle of a message log
type MessageLogConfig struct {
	// SendRate is the sustained number of sends per second, 0 for unlimited
	SendRate float64
	// SendBurst is the number of sends allowed at once
	SendBurst int
}

type roomLog struct {
	messages []models.Message
	ids      map[string]struct{}
}

func (r *roomLog) has(msg models.Message) bool {
	if msg.ID == "" {
		return false
	}
	_, ok := r.ids[msg.ID]
	return ok
}

func (r *roomLog) remember(msg models.Message) {
	if msg.ID != "" {
		r.ids[msg.ID] = struct{}{}
	}
}

// MessageLog keeps one ordered message sequence per room. Pushed messages and
// acknowledged sends both enter through Append, which ignores a message whose
// server id is already in the room, so a sent message that is also
// rebroadcast is stored once.
type MessageLog struct {
	requester Requester
	limiter   *rate.Limiter
	log       *logger.Logger

	mu        sync.RWMutex
	rooms     map[string]*roomLog
	observers []func(models.Message)
}

// NewMessageLog creates an empty log
func NewMessageLog(requester Requester, config MessageLogConfig, log *logger.Logger) *MessageLog {
	limit := rate.Inf
	if config.SendRate > 0 {
		limit = rate.Limit(config.SendRate)
	}
	burst := config.SendBurst
	if burst <= 0 {
		burst = 1
	}
	return &MessageLog{
		requester: requester,
		limiter:   rate.NewLimiter(limit, burst),
		log:       log.WithComponent("messages"),
		rooms:     make(map[string]*roomLog),
	}
}

// OnAppend registers a callback invoked after every message that Append
// stores. It runs on the appending goroutine, which may be the connection's
// read loop, and must not block.
func (l *MessageLog) OnAppend(fn func(models.Message)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// LoadHistory fetches a page of a room's history and merges it, oldest first,
// at the head of the room's log. Messages already in the log are skipped. If
// ctx is canceled before the reply is merged the log is left untouched.
func (l *MessageLog) LoadHistory(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	if roomID == "" {
		return nil, errors.NewBadRequestError("MISSING_ROOM", "room id is required")
	}
	if limit <= 0 || offset < 0 {
		return nil, errors.NewBadRequestError("INVALID_PAGE", "limit must be positive and offset not negative").
			WithDetails(map[string]int{"limit": limit, "offset": offset})
	}

	reply, err := ws.Call[wire.GetMessagesReply](ctx, l.requester, wire.MethodGetMessages,
		wire.GetMessagesRequest{RoomID: roomID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.NewCanceledError("STALE_HISTORY", "history load was superseded").Wrap(ctx.Err())
	}

	page := slices.Clone(reply.Items)
	slices.Reverse(page)
	for i := range page {
		if page[i].RoomID == "" {
			page[i].RoomID = roomID
		}
	}

	l.mu.Lock()
	room := l.roomLocked(roomID)
	fresh := make([]models.Message, 0, len(page))
	for _, msg := range page {
		if room.has(msg) {
			continue
		}
		room.remember(msg)
		fresh = append(fresh, msg)
	}
	room.messages = append(fresh, room.messages...)
	total := len(room.messages)
	l.mu.Unlock()

	l.log.Debug("History merged", "room_id", roomID, "page", len(page), "new", len(fresh), "total", total)
	return page, nil
}

// Append adds a message to the tail of its room's log. It returns false when
// a message with the same server id is already there.
func (l *MessageLog) Append(roomID string, msg models.Message) bool {
	if msg.RoomID == "" {
		msg.RoomID = roomID
	}

	l.mu.Lock()
	room := l.roomLocked(roomID)
	if room.has(msg) {
		l.mu.Unlock()
		return false
	}
	room.remember(msg)
	room.messages = append(room.messages, msg)
	observers := slices.Clone(l.observers)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(msg)
	}
	return true
}

// SendMessage posts a message and appends the server's accepted copy. Nothing
// is appended before the server acknowledges.
func (l *MessageLog) SendMessage(ctx context.Context, roomID, content string, contentType models.ContentType) (models.Message, error) {
	switch {
	case roomID == "":
		return models.Message{}, errors.NewBadRequestError("MISSING_ROOM", "room id is required")
	case strings.TrimSpace(content) == "":
		return models.Message{}, errors.NewBadRequestError("EMPTY_MESSAGE", "message content is required")
	case !contentType.Valid():
		return models.Message{}, errors.NewBadRequestError("INVALID_CONTENT_TYPE", "content type must be TEXT or IMAGE").
			WithDetails(map[string]string{"contentType": string(contentType)})
	}

	if !l.limiter.Allow() {
		return models.Message{}, errors.NewRateLimitError("SEND_THROTTLED", "too many messages, slow down")
	}

	msg, err := ws.Call[models.Message](ctx, l.requester, wire.MethodCreateMessage,
		wire.CreateMessageRequest{GroupID: roomID, Content: content, ContentType: contentType})
	if err != nil {
		return models.Message{}, err
	}
	if msg.RoomID == "" {
		msg.RoomID = roomID
	}
	if msg.Pending() {
		l.log.Warn("Accepted message has no id", "room_id", roomID)
	}

	l.Append(roomID, msg)
	return msg, nil
}

// Messages returns a copy of a room's log
func (l *MessageLog) Messages(roomID string) []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	room, ok := l.rooms[roomID]
	if !ok {
		return []models.Message{}
	}
	return slices.Clone(room.messages)
}

// Len returns the number of messages logged for a room
func (l *MessageLog) Len(roomID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if room, ok := l.rooms[roomID]; ok {
		return len(room.messages)
	}
	return 0
}

// Snapshot copies every room's log
func (l *MessageLog) Snapshot() map[string][]models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string][]models.Message, len(l.rooms))
	for id, room := range l.rooms {
		out[id] = slices.Clone(room.messages)
	}
	return out
}

func (l *MessageLog) roomLocked(roomID string) *roomLog {
	room, ok := l.rooms[roomID]
	if !ok {
		room = &roomLog{ids: make(map[string]struct{})}
		l.rooms[roomID] = room
	}
	return room
}
