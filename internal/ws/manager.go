package ws

import (
	"context"
	"sync"
	"time"

	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/jwt"
	"realtime-chat/client/pkg/logger"
	wire "realtime-chat/client/pkg/ws"
	"realtime-chat/client/shared/observability"

	"github.com/google/uuid"
)

// State represents the connection state
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateErrored      State = "errored"
)

// ConnectionHandle identifies one live connection
type ConnectionHandle struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// ManagerConfig holds connection manager settings
type ManagerConfig struct {
	Endpoint       string
	ConnectTimeout time.Duration
}

// Manager owns the single channel of a session. It opens and closes the
// channel, runs the inbound read loop and reports state changes. It never
// reconnects on its own.
type Manager struct {
	config  ManagerConfig
	dialer  Dialer
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu         sync.Mutex
	state      State
	channel    Channel
	handle     ConnectionHandle
	generation uint64
	lastErr    error

	hmu            sync.RWMutex
	onConnected    []func(ConnectionHandle)
	onConnectError []func(error)
	onDisconnected []func(error)
	frameHandler   func(wire.Frame)
}

// NewManager creates a connection manager in the disconnected state
func NewManager(config ManagerConfig, dialer Dialer, log *logger.Logger, metrics *observability.Metrics) *Manager {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	return &Manager{
		config:  config,
		dialer:  dialer,
		log:     log.WithComponent("connection"),
		metrics: metrics,
		now:     time.Now,
		state:   StateDisconnected,
	}
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the reason of the last failed connect, if any
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// OnConnected registers a callback for the connected event
func (m *Manager) OnConnected(fn func(ConnectionHandle)) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.onConnected = append(m.onConnected, fn)
}

// OnConnectError registers a callback for the connectError event
func (m *Manager) OnConnectError(fn func(error)) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.onConnectError = append(m.onConnectError, fn)
}

// OnDisconnected registers a callback for the disconnected event. The reason
// is nil when the client asked for the disconnect.
func (m *Manager) OnDisconnected(fn func(reason error)) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.onDisconnected = append(m.onDisconnected, fn)
}

// HandleFrames sets the function the read loop hands every inbound frame to
func (m *Manager) HandleFrames(fn func(wire.Frame)) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.frameHandler = fn
}

// Connect opens the channel with the credential. When already connected the
// existing handle is returned.
func (m *Manager) Connect(ctx context.Context, credential string) (ConnectionHandle, error) {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		handle := m.handle
		m.mu.Unlock()
		return handle, nil
	case StateConnecting:
		m.mu.Unlock()
		return ConnectionHandle{}, errors.NewStateError("CONNECT_IN_PROGRESS", "a connect is already in progress")
	}

	if err := checkCredential(credential, m.now()); err != nil {
		m.failLocked(err)
		m.mu.Unlock()
		m.emitConnectError(err)
		return ConnectionHandle{}, err
	}

	m.generation++
	gen := m.generation
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()
	channel, err := m.dialer.Dial(dialCtx, m.config.Endpoint, credential)

	m.mu.Lock()
	if m.generation != gen {
		// Disconnect was called while dialing
		m.mu.Unlock()
		if channel != nil {
			_ = channel.Close()
		}
		return ConnectionHandle{}, errors.NewCanceledError("CONNECT_ABORTED", "disconnected while connecting")
	}
	if err != nil {
		m.failLocked(err)
		m.mu.Unlock()
		m.log.Warn("Connect failed", "endpoint", m.config.Endpoint, "error", err.Error())
		m.emitConnectError(err)
		return ConnectionHandle{}, err
	}

	m.channel = channel
	m.handle = ConnectionHandle{ID: uuid.NewString(), ConnectedAt: m.now()}
	m.lastErr = nil
	m.setStateLocked(StateConnected)
	handle := m.handle
	m.mu.Unlock()

	go m.readLoop(channel, gen)

	m.log.Info("Connected", "endpoint", m.config.Endpoint, "connection_id", handle.ID)
	m.hmu.RLock()
	callbacks := append([]func(ConnectionHandle){}, m.onConnected...)
	m.hmu.RUnlock()
	for _, fn := range callbacks {
		fn(handle)
	}
	return handle, nil
}

// Disconnect releases the channel. It is safe to call from any state and more than once.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.generation++
	channel := m.channel
	wasLive := m.state == StateConnected
	m.channel = nil
	m.handle = ConnectionHandle{}
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if channel != nil {
		if err := channel.Close(); err != nil {
			m.log.Debug("Channel close failed", "error", err.Error())
		}
	}
	if wasLive {
		m.log.Info("Disconnected")
		m.emitDisconnected(nil)
	}
}

// Send writes a frame on the live channel
func (m *Manager) Send(frame wire.Frame) error {
	m.mu.Lock()
	channel := m.channel
	m.mu.Unlock()

	if channel == nil {
		return errors.NewTransportError("NOT_CONNECTED", "no open connection")
	}
	return channel.Write(frame)
}

func (m *Manager) readLoop(channel Channel, gen uint64) {
	for {
		frame, err := channel.Read()
		if err != nil {
			m.connectionLost(channel, gen, err)
			return
		}

		m.hmu.RLock()
		handler := m.frameHandler
		m.hmu.RUnlock()
		if handler != nil {
			handler(frame)
		}
	}
}

func (m *Manager) connectionLost(channel Channel, gen uint64, cause error) {
	m.mu.Lock()
	if m.generation != gen || m.channel != channel {
		m.mu.Unlock()
		return
	}
	m.generation++
	m.channel = nil
	m.handle = ConnectionHandle{}
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	_ = channel.Close()

	reason := cause
	if errors.KindOf(cause) != errors.KindTransport {
		reason = errors.NewTransportError("CONNECTION_LOST", "connection to the chat backend was lost").Wrap(cause)
	}
	m.log.Warn("Connection lost", "error", reason.Error())
	m.emitDisconnected(reason)
}

func (m *Manager) failLocked(err error) {
	m.lastErr = err
	m.channel = nil
	m.handle = ConnectionHandle{}
	m.setStateLocked(StateErrored)
}

func (m *Manager) setStateLocked(state State) {
	if m.state == state {
		return
	}
	m.state = state
	m.metrics.RecordTransition(context.Background(), string(state))
}

func (m *Manager) emitConnectError(err error) {
	m.hmu.RLock()
	callbacks := append([]func(error){}, m.onConnectError...)
	m.hmu.RUnlock()
	for _, fn := range callbacks {
		fn(err)
	}
}

func (m *Manager) emitDisconnected(reason error) {
	m.hmu.RLock()
	callbacks := append([]func(error){}, m.onDisconnected...)
	m.hmu.RUnlock()
	for _, fn := range callbacks {
		fn(reason)
	}
}

func checkCredential(credential string, now time.Time) error {
	if credential == "" {
		return errors.NewAuthError("MISSING_CREDENTIAL", "no credential supplied")
	}
	if err := jwt.CheckExpiry(credential, now); err != nil {
		return errors.NewAuthError("CREDENTIAL_EXPIRED", "the credential has expired").Wrap(err)
	}
	return nil
}
