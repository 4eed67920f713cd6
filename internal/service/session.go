package service

import (
	"context"
	stderrors "errors"
	"slices"
	"sync"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/internal/ws"
	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/jwt"
	"realtime-chat/client/pkg/logger"

	"github.com/google/uuid"
)

// Status is the lifecycle phase of a chat session
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusRoomsLoading Status = "rooms_loading"
	StatusReady        Status = "ready"
	StatusClosed       Status = "closed"
)

// State is the session status plus the selected room while ready
type State struct {
	Status Status `json:"status"`
	RoomID string `json:"roomId,omitempty"`
}

// Connection is the part of the connection manager a session drives
type Connection interface {
	Connect(ctx context.Context, credential string) (ws.ConnectionHandle, error)
	Disconnect()
	OnDisconnected(fn func(reason error))
	State() ws.State
}

// SessionConfig holds page sizes and the send throttle
type SessionConfig struct {
	RoomsPageSize   int
	HistoryPageSize int
	SendRate        float64
	SendBurst       int
}

// SessionDeps are the collaborators of a session. Uploader and Snapshots are optional.
type SessionDeps struct {
	Connection Connection
	Requester  Requester
	Pushes     *ws.Dispatcher
	Uploader   Uploader
	Snapshots  SnapshotStore
	Log        *logger.Logger
}

// Session drives one authenticated chat connection through
// idle, connecting, rooms loading, ready and closed.
type Session struct {
	id         string
	credential string
	identity   models.UserID
	config     SessionConfig

	conn      Connection
	rooms     *RoomDirectory
	messages  *MessageLog
	uploader  Uploader
	snapshots SnapshotStore
	log       *logger.Logger

	unsubscribe func()

	mu         sync.Mutex
	state      State
	err        error
	done       chan struct{}
	loadCancel context.CancelFunc
	loadSeq    uint64
	stateFns   []func(State)
	messageFns []func(models.Message)
	events     *notifier
}

// NewSession creates an idle session for the credential
func NewSession(credential string, config SessionConfig, deps SessionDeps) *Session {
	if config.RoomsPageSize <= 0 {
		config.RoomsPageSize = 10
	}
	if config.HistoryPageSize <= 0 {
		config.HistoryPageSize = 100
	}

	id := uuid.NewString()
	log := deps.Log.WithSessionID(id)

	s := &Session{
		id:         id,
		credential: credential,
		config:     config,
		conn:       deps.Connection,
		rooms:      NewRoomDirectory(deps.Requester, log),
		messages:   NewMessageLog(deps.Requester, MessageLogConfig{SendRate: config.SendRate, SendBurst: config.SendBurst}, log),
		uploader:   deps.Uploader,
		snapshots:  deps.Snapshots,
		log:        log,
		state:      State{Status: StatusIdle},
		done:       make(chan struct{}),
		events:     newNotifier(),
	}

	if claims, err := jwt.Inspect(credential); err == nil {
		s.identity = models.UserID(claims.Identity())
	}

	s.messages.OnAppend(s.appended)
	s.conn.OnDisconnected(s.connectionLost)
	s.unsubscribe = ws.OnMessageCreated(deps.Pushes, s.pushed)
	return s
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Identity returns the local user id taken from the credential, if it has one
func (s *Session) Identity() models.UserID { return s.identity }

// State returns the current session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConnectionState returns the state of the underlying connection
func (s *Session) ConnectionState() ws.State {
	return s.conn.State()
}

// Err returns the connection-level error that closed the session, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the session reaches the closed state
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// OnStateChange registers a callback for state transitions. State and message
// callbacks run one at a time, in order, on a goroutine owned by the session,
// so they may call back into the session.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateFns = append(s.stateFns, fn)
}

// OnMessage registers a callback for every message added to any room's log.
// It runs like the OnStateChange callbacks.
func (s *Session) OnMessage(fn func(models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageFns = append(s.messageFns, fn)
}

// Start connects and loads the first page of rooms. A connect or room load
// failure closes the session and is returned.
func (s *Session) Start(ctx context.Context) error {
	if !s.transition(State{Status: StatusConnecting}, StatusIdle) {
		return errors.NewStateError("ALREADY_STARTED", "session was already started")
	}

	if _, err := s.conn.Connect(ctx, s.credential); err != nil {
		s.fail(err)
		return err
	}
	if !s.transition(State{Status: StatusRoomsLoading}, StatusConnecting) {
		return errors.NewCanceledError("SESSION_CLOSED", "session closed while connecting")
	}

	if _, err := s.rooms.LoadRooms(ctx, s.config.RoomsPageSize, 0); err != nil {
		s.fail(err)
		return err
	}
	if !s.transition(State{Status: StatusReady}, StatusRoomsLoading) {
		return errors.NewCanceledError("SESSION_CLOSED", "session closed while loading rooms")
	}

	s.log.Info("Session ready", "rooms", s.rooms.Count())
	return nil
}

// SelectRoom makes roomID the active room and loads its latest history. An
// in-flight load for a previously selected room is canceled; logs already
// loaded for other rooms are kept.
func (s *Session) SelectRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	if _, err := s.rooms.FindByID(roomID); err != nil {
		return nil, err
	}

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state.Status != StatusReady {
		s.mu.Unlock()
		return nil, errors.NewStateError("NOT_READY", "session is not ready")
	}
	if s.loadCancel != nil {
		s.loadCancel()
	}
	s.loadSeq++
	seq := s.loadSeq
	s.loadCancel = cancel
	changed := s.state.RoomID != roomID
	s.state = State{Status: StatusReady, RoomID: roomID}
	if changed {
		s.notifyStateLocked()
	}
	s.mu.Unlock()

	msgs, err := s.messages.LoadHistory(loadCtx, roomID, s.config.HistoryPageSize, 0)

	s.mu.Lock()
	if s.loadSeq == seq {
		s.loadCancel = nil
	}
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil && loadCtx.Err() != nil {
			if s.State().Status == StatusClosed {
				return nil, errors.NewStateError("SESSION_CLOSED", "session closed while loading history")
			}
			return nil, errors.NewCanceledError("SUPERSEDED", "another room was selected").
				WithDetails(map[string]string{"roomId": roomID})
		}
		s.log.LogError(err, "Loading history failed", "room_id", roomID)
		return nil, err
	}
	return msgs, nil
}

// LoadHistory loads an older page of a room's history
func (s *Session) LoadHistory(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	return s.messages.LoadHistory(ctx, roomID, limit, offset)
}

// SendMessage sends text or an image URL to a room. An empty roomID means the active room.
func (s *Session) SendMessage(ctx context.Context, roomID, content string, contentType models.ContentType) (models.Message, error) {
	if err := s.requireReady(); err != nil {
		return models.Message{}, err
	}
	if roomID == "" {
		roomID = s.State().RoomID
	}
	return s.messages.SendMessage(ctx, roomID, content, contentType)
}

// SendImage uploads an image and sends its URL as an IMAGE message
func (s *Session) SendImage(ctx context.Context, roomID string, data []byte) (models.Message, error) {
	if err := s.requireReady(); err != nil {
		return models.Message{}, err
	}
	if s.uploader == nil {
		return models.Message{}, errors.NewStateError("UPLOAD_UNAVAILABLE", "no upload endpoint configured")
	}

	url, err := s.uploader.Upload(ctx, data)
	if err != nil {
		return models.Message{}, err
	}
	return s.SendMessage(ctx, roomID, url, models.ContentImage)
}

// IsOwn reports whether the message was sent by the local user
func (s *Session) IsOwn(msg models.Message) bool {
	return s.identity != "" && msg.Sender.ID == s.identity
}

// Rooms returns the loaded rooms in server order
func (s *Session) Rooms() []models.Room {
	return s.rooms.Rooms()
}

// RoomCount returns the total number of rooms reported by the server
func (s *Session) RoomCount() int {
	return s.rooms.Count()
}

// Room looks up a loaded room
func (s *Session) Room(roomID string) (models.Room, error) {
	return s.rooms.FindByID(roomID)
}

// Messages returns a copy of a room's log
func (s *Session) Messages(roomID string) []models.Message {
	return s.messages.Messages(roomID)
}

// Close ends the session and releases the connection. It is safe to call
// from any state and more than once.
func (s *Session) Close() error {
	if !s.close(nil) {
		return nil
	}
	s.log.Info("Session closed")
	return nil
}

// Snapshot captures the rooms and message logs of the session
func (s *Session) Snapshot() models.Snapshot {
	return models.Snapshot{
		SessionID: s.id,
		UserID:    s.identity,
		TakenAt:   time.Now().UTC(),
		RoomCount: s.rooms.Count(),
		Rooms:     s.rooms.Rooms(),
		Messages:  s.messages.Snapshot(),
	}
}

func (s *Session) requireReady() error {
	state := s.State()
	if state.Status == StatusReady {
		return nil
	}
	if state.Status == StatusClosed {
		return errors.NewStateError("SESSION_CLOSED", "session is closed")
	}
	return errors.NewStateError("NOT_READY", "session is not ready").
		WithDetails(map[string]string{"status": string(state.Status)})
}

// transition moves to next only from one of the given statuses
func (s *Session) transition(next State, from ...Status) bool {
	s.mu.Lock()
	if !slices.Contains(from, s.state.Status) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.notifyStateLocked()
	s.mu.Unlock()

	s.log.Debug("Session state changed", "status", string(next.Status))
	return true
}

// notifyStateLocked queues the current state for the state observers
func (s *Session) notifyStateLocked() {
	state, fns := s.state, slices.Clone(s.stateFns)
	s.events.enqueue(func() {
		for _, fn := range fns {
			fn(state)
		}
	})
}

func (s *Session) fail(err error) {
	if s.close(err) {
		s.log.LogError(err, "Session closed by connection failure")
	}
}

// close moves to closed, disconnects and saves a snapshot. It reports false
// when the session was already closed.
func (s *Session) close(reason error) bool {
	s.mu.Lock()
	if s.state.Status == StatusClosed {
		s.mu.Unlock()
		return false
	}
	s.err = reason
	s.state = State{Status: StatusClosed}
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	close(s.done)
	s.mu.Unlock()

	s.unsubscribe()
	// An errored connection holds nothing and keeps its state for callers
	if s.conn.State() != ws.StateErrored {
		s.conn.Disconnect()
	}
	s.saveSnapshot()

	s.mu.Lock()
	s.notifyStateLocked()
	s.events.close()
	s.mu.Unlock()
	return true
}

func (s *Session) saveSnapshot() {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.snapshots.Save(ctx, s.Snapshot()); err != nil {
		s.log.LogError(err, "Saving session snapshot failed")
	}
}

// connectionLost closes the session when the connection drops on its own.
// A nil reason is the session's own disconnect.
func (s *Session) connectionLost(reason error) {
	if reason == nil {
		return
	}
	var appErr *errors.AppError
	if !stderrors.As(reason, &appErr) {
		reason = errors.NewTransportError("CONNECTION_LOST", "connection to the chat backend was lost").Wrap(reason)
	}
	s.fail(reason)
}

func (s *Session) pushed(msg models.Message) {
	if msg.RoomID == "" {
		s.log.Warn("Dropping pushed message without room", "message_id", msg.ID)
		return
	}
	s.messages.Append(msg.RoomID, msg)
}

// appended runs for every message stored by the log, pushed or sent
func (s *Session) appended(msg models.Message) {
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.rooms.Touch(msg.RoomID, at)

	s.mu.Lock()
	fns := slices.Clone(s.messageFns)
	s.events.enqueue(func() {
		for _, fn := range fns {
			fn(msg)
		}
	})
	s.mu.Unlock()
}
