package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"
	wire "realtime-chat/client/pkg/ws"
	"realtime-chat/client/shared/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "realtime-chat/client/internal/ws"

// Caller issues acknowledged requests
type Caller interface {
	Request(ctx context.Context, method string, payload any) (json.RawMessage, error)
}

// FrameSender writes frames on the session channel
type FrameSender interface {
	Send(frame wire.Frame) error
}

type outcome struct {
	data json.RawMessage
	err  error
}

// Requester correlates requests with their replies over the session channel.
// Every request gets exactly one outcome: its reply, a server error, a
// timeout, a cancellation or a transport failure.
type Requester struct {
	sender     FrameSender
	dispatcher *Dispatcher
	timeout    time.Duration
	log        *logger.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer

	mu      sync.Mutex
	pending map[string]chan outcome
}

// NewRequester creates a requester. A zero timeout waits until the context ends.
func NewRequester(sender FrameSender, dispatcher *Dispatcher, timeout time.Duration, log *logger.Logger, metrics *observability.Metrics) *Requester {
	return &Requester{
		sender:     sender,
		dispatcher: dispatcher,
		timeout:    timeout,
		log:        log.WithComponent("requester"),
		metrics:    metrics,
		tracer:     otel.Tracer(tracerName),
		pending:    make(map[string]chan outcome),
	}
}

// Attach routes the manager's inbound frames through the requester and fails
// outstanding requests when the manager disconnects
func (r *Requester) Attach(m *Manager) {
	m.HandleFrames(r.Route)
	m.OnDisconnected(r.FailPending)
}

// Request sends method with payload and waits for the matching reply
func (r *Requester) Request(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	id := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "chat."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("chat.method", method),
			attribute.String("chat.correlation_id", id),
		))
	defer span.End()

	start := time.Now()
	data, err := r.roundTrip(ctx, id, method, payload)
	r.metrics.RecordRequest(ctx, method, outcomeOf(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.GetErrorCode(err))
		return nil, err
	}
	return data, nil
}

func (r *Requester) roundTrip(ctx context.Context, id, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewBadRequestError("PAYLOAD_ENCODING", "could not encode request payload").Wrap(err)
	}

	waiter := make(chan outcome, 1)
	r.mu.Lock()
	r.pending[id] = waiter
	r.mu.Unlock()

	if err := r.sender.Send(wire.Frame{ID: id, Event: method, Data: body}); err != nil {
		r.forget(id)
		if errors.KindOf(err) == errors.KindTransport {
			return nil, err
		}
		return nil, errors.NewTransportError("SEND_FAILED", "could not write request").Wrap(err)
	}

	var expired <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case res := <-waiter:
		return res.data, res.err
	case <-expired:
		if res, ok := r.abandon(id, waiter); ok {
			return res.data, res.err
		}
		r.log.Warn("Request timed out", "method", method, "id", id, "timeout", r.timeout.String())
		return nil, errors.NewTimeoutError("REQUEST_TIMEOUT", "no reply from the chat backend").
			WithDetails(map[string]string{"method": method})
	case <-ctx.Done():
		if res, ok := r.abandon(id, waiter); ok {
			return res.data, res.err
		}
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewTimeoutError("REQUEST_DEADLINE", "request deadline exceeded").Wrap(ctx.Err())
		}
		return nil, errors.NewCanceledError("REQUEST_CANCELED", "request canceled").Wrap(ctx.Err())
	}
}

// Route hands a reply to its waiter, or the frame to the event dispatcher
// when no request is waiting for it
func (r *Requester) Route(frame wire.Frame) {
	if frame.ID != "" {
		r.mu.Lock()
		waiter, ok := r.pending[frame.ID]
		delete(r.pending, frame.ID)
		r.mu.Unlock()

		if ok {
			waiter <- replyOutcome(frame)
			return
		}
	}
	r.dispatcher.Dispatch(frame)
}

// FailPending fails every outstanding request with a transport error
func (r *Requester) FailPending(reason error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[string]chan outcome)
	r.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	r.log.Info("Failing outstanding requests", "count", len(pending))
	for _, waiter := range pending {
		err := errors.NewTransportError("DISCONNECTED", "connection closed before the reply arrived")
		if reason != nil {
			err = err.Wrap(reason)
		}
		waiter <- outcome{err: err}
	}
}

// Pending returns the number of outstanding requests
func (r *Requester) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Requester) forget(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// abandon removes the waiter. If an outcome was delivered concurrently it is
// returned instead so the caller still sees exactly one result.
func (r *Requester) abandon(id string, waiter chan outcome) (outcome, bool) {
	r.mu.Lock()
	_, stillPending := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()

	if stillPending {
		return outcome{}, false
	}
	return <-waiter, true
}

func replyOutcome(frame wire.Frame) outcome {
	if frame.Error != nil {
		code := frame.Error.Code
		if code == "" {
			code = "REQUEST_FAILED"
		}
		return outcome{err: errors.NewRequestError(code, frame.Error.Message)}
	}
	return outcome{data: frame.Data}
}

func outcomeOf(err error) string {
	if err == nil {
		return observability.OutcomeOK
	}
	switch errors.KindOf(err) {
	case errors.KindTimeout:
		return observability.OutcomeTimeout
	case errors.KindCanceled:
		return observability.OutcomeCanceled
	case errors.KindRequest:
		return observability.OutcomeRejected
	}
	return observability.OutcomeTransport
}

// Call issues a request and decodes the reply into Rep
func Call[Rep any](ctx context.Context, c Caller, method string, payload any) (Rep, error) {
	var reply Rep
	data, err := c.Request(ctx, method, payload)
	if err != nil {
		return reply, err
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return reply, errors.NewRequestError("MALFORMED_REPLY", "could not decode the reply to "+method).Wrap(err)
	}
	return reply, nil
}
