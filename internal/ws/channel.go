package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"
	wire "realtime-chat/client/pkg/ws"

	"github.com/gorilla/websocket"
)

// Channel is an open, reliable, ordered frame stream to the chat backend.
// Read is called by a single goroutine; Write and Close are safe for concurrent use.
type Channel interface {
	Read() (wire.Frame, error)
	Write(frame wire.Frame) error
	Close() error
}

// Dialer opens a Channel authenticated with a credential
type Dialer interface {
	Dial(ctx context.Context, endpoint string, credential string) (Channel, error)
}

// DialerConfig tunes the websocket dialer and the channel pumps
type DialerConfig struct {
	// HandshakeTimeout bounds the HTTP upgrade
	HandshakeTimeout time.Duration
	// WriteWait is the time allowed to write a frame to the peer
	WriteWait time.Duration
	// PongWait is the time allowed to read the next pong from the peer
	PongWait time.Duration
	// MaxMessageSize is the largest inbound frame accepted
	MaxMessageSize int64
	// SendQueueSize is the outbound frame buffer
	SendQueueSize int
}

// DefaultDialerConfig returns the timings used when nothing is configured
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		MaxMessageSize:   512 * 1024,
		SendQueueSize:    256,
	}
}

// WebsocketDialer dials the backend with gorilla/websocket, sending the
// credential as a bearer token on the upgrade request
type WebsocketDialer struct {
	config DialerConfig
	log    *logger.Logger
}

// NewWebsocketDialer creates a dialer
func NewWebsocketDialer(config DialerConfig, log *logger.Logger) *WebsocketDialer {
	return &WebsocketDialer{config: config, log: log}
}

// Dial implements Dialer
func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string, credential string) (Channel, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.config.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errors.NewAuthError("CREDENTIAL_REJECTED", "the chat backend rejected the credential").
				WithDetails(map[string]int{"status": resp.StatusCode})
		}
		return nil, errors.NewNetworkError("DIAL_FAILED", "could not open the chat channel", err)
	}

	return newWebsocketChannel(conn, d.config, d.log), nil
}

type websocketChannel struct {
	conn      *websocket.Conn
	config    DialerConfig
	log       *logger.Logger
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWebsocketChannel(conn *websocket.Conn, config DialerConfig, log *logger.Logger) *websocketChannel {
	c := &websocketChannel{
		conn:   conn,
		config: config,
		log:    log,
		send:   make(chan []byte, config.SendQueueSize),
		done:   make(chan struct{}),
	}

	conn.SetReadLimit(config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.PongWait))
	})

	go c.writePump()
	return c
}

// Read blocks for the next JSON frame. Frames that do not decode are logged and skipped.
func (c *websocketChannel) Read() (wire.Frame, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return wire.Frame{}, errors.NewTransportError("CHANNEL_CLOSED", "channel closed locally").Wrap(err)
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("Channel closed unexpectedly", "error", err.Error())
			}
			return wire.Frame{}, errors.NewTransportError("CONNECTION_LOST", "connection to the chat backend was lost").Wrap(err)
		}
		// Any inbound traffic proves the peer is alive
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))

		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("Dropping undecodable frame", "error", err.Error(), "length", len(data))
			continue
		}
		return frame, nil
	}
}

// Write queues a frame for the write pump
func (c *websocketChannel) Write(frame wire.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return errors.NewBadRequestError("FRAME_ENCODING", "could not encode frame").Wrap(err)
	}

	select {
	case <-c.done:
		return errors.NewTransportError("CHANNEL_CLOSED", "channel is closed")
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errors.NewTransportError("CHANNEL_CLOSED", "channel is closed")
	}
}

// Close sends a close frame and releases the socket. Safe to call more than once.
func (c *websocketChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.config.WriteWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil &&
			!stderrors.Is(werr, websocket.ErrCloseSent) {
			c.log.Debug("Close frame not sent", "error", werr.Error())
		}
		err = c.conn.Close()
	})
	return err
}

func (c *websocketChannel) writePump() {
	pingPeriod := (c.config.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("Write failed, stopping write pump", "error", err.Error())
				_ = c.conn.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}
