// Package wstest provides an in-process chat backend for tests. It speaks the
// same JSON frame protocol as the real backend over a gorilla websocket.
package wstest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	wire "realtime-chat/client/pkg/ws"

	"github.com/gorilla/websocket"
)

// ErrNoReply makes a handler leave the request unanswered
var ErrNoReply = errors.New("wstest: no reply")

// ReplyError is sent back as an error frame when a handler returns it
type ReplyError struct {
	Code    string
	Message string
}

func (e *ReplyError) Error() string { return e.Code + ": " + e.Message }

// HandlerFunc answers one request. Each request runs on its own goroutine so
// a handler may block.
type HandlerFunc func(data json.RawMessage) (any, error)

type peer struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (p *peer) write(frame wire.Frame) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteJSON(frame)
}

// Server is a fake chat backend
type Server struct {
	token    string
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	peers    map[*peer]struct{}
	requests []wire.Frame
}

// NewServer starts a server that accepts the given bearer token
func NewServer(token string) *Server {
	s := &Server{
		token:    token,
		handlers: make(map[string]HandlerFunc),
		peers:    make(map[*peer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveWS))
	return s
}

// URL returns the websocket endpoint
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Handle registers the handler for a method
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Push sends an event to every connected client
func (s *Server) Push(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	for _, p := range s.snapshotPeers() {
		if err := p.write(wire.Frame{Event: event, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

// Requests returns the frames received for a method, in arrival order
func (s *Server) Requests(method string) []wire.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []wire.Frame
	for _, f := range s.requests {
		if f.Event == method {
			out = append(out, f)
		}
	}
	return out
}

// Connections returns the number of connected clients
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// DropConnections closes every client socket without a close handshake
func (s *Server) DropConnections() {
	for _, p := range s.snapshotPeers() {
		_ = p.conn.Close()
	}
}

// Close drops all clients and stops the server
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

func (s *Server) snapshotPeers() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+s.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, frame)
		handler := s.handlers[frame.Event]
		s.mu.Unlock()

		go s.answer(p, frame, handler)
	}
}

func (s *Server) answer(p *peer, frame wire.Frame, handler HandlerFunc) {
	if handler == nil {
		_ = p.write(wire.Frame{ID: frame.ID, Error: &wire.FrameError{Code: "UNKNOWN_METHOD", Message: frame.Event}})
		return
	}

	result, err := handler(frame.Data)
	if errors.Is(err, ErrNoReply) {
		return
	}
	if err != nil {
		var replyErr *ReplyError
		if errors.As(err, &replyErr) {
			_ = p.write(wire.Frame{ID: frame.ID, Error: &wire.FrameError{Code: replyErr.Code, Message: replyErr.Message}})
			return
		}
		_ = p.write(wire.Frame{ID: frame.ID, Error: &wire.FrameError{Code: "INTERNAL", Message: err.Error()}})
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		_ = p.write(wire.Frame{ID: frame.ID, Error: &wire.FrameError{Code: "INTERNAL", Message: err.Error()}})
		return
	}
	_ = p.write(wire.Frame{ID: frame.ID, Data: data})
}
