package ws

import (
	"context"
	"encoding/json"
	"sync"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/pkg/logger"
	wire "realtime-chat/client/pkg/ws"
	"realtime-chat/client/shared/observability"
)

// Handler receives the payload of one push event
type Handler func(data json.RawMessage)

type subscription struct {
	id      uint64
	handler Handler
}

// Dispatcher routes push frames to subscribers by event name. Subscribers of
// one event are called in registration order on the read loop goroutine.
type Dispatcher struct {
	log     *logger.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(log *logger.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		log:     log.WithComponent("dispatcher"),
		metrics: metrics,
		subs:    make(map[string][]subscription),
	}
}

// Subscribe registers a handler for an event and returns a function that
// removes it. Handlers run on the connection's read loop and must not block.
func (d *Dispatcher) Subscribe(event string, handler Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.subs[event] = append(d.subs[event], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { d.unsubscribe(event, id) })
	}
}

func (d *Dispatcher) unsubscribe(event string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.subs[event]
	for i, s := range subs {
		if s.id == id {
			d.subs[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(d.subs[event]) == 0 {
		delete(d.subs, event)
	}
}

// Dispatch delivers a push frame to the subscribers of its event. Frames with
// no event name are late or unknown replies and are dropped.
func (d *Dispatcher) Dispatch(frame wire.Frame) {
	if frame.Event == "" {
		d.log.Debug("Dropping frame without event", "id", frame.ID)
		return
	}

	d.mu.RLock()
	subs := d.subs[frame.Event]
	d.mu.RUnlock()

	d.metrics.RecordPush(context.Background(), frame.Event)
	if len(subs) == 0 {
		d.log.Debug("No subscriber for event", "event", frame.Event)
		return
	}
	for _, s := range subs {
		s.handler(frame.Data)
	}
}

// OnMessageCreated subscribes a typed handler to the createMessage push
func OnMessageCreated(d *Dispatcher, fn func(models.Message)) func() {
	return d.Subscribe(wire.EventCreateMessage, func(data json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			d.log.Warn("Dropping malformed message push", "error", err.Error())
			return
		}
		fn(msg)
	})
}
