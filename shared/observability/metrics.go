package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Request outcomes recorded on chat.requests
const (
	OutcomeOK        = "ok"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport"
	OutcomeRejected  = "rejected"
	OutcomeCanceled  = "canceled"
)

// Metrics holds the chat client instruments. A nil *Metrics records nothing.
type Metrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	pushes   metric.Int64Counter
	states   metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter("chat.requests",
		metric.WithDescription("Acknowledged requests by method and outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("chat.request.duration",
		metric.WithDescription("Time from request write to reply"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	pushes, err := meter.Int64Counter("chat.push.events",
		metric.WithDescription("Push events received by event name"))
	if err != nil {
		return nil, err
	}
	states, err := meter.Int64Counter("chat.connection.transitions",
		metric.WithDescription("Connection state transitions"))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, latency: latency, pushes: pushes, states: states}, nil
}

// RecordRequest counts one finished request and its latency
func (m *Metrics) RecordRequest(ctx context.Context, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// RecordPush counts one inbound push event
func (m *Metrics) RecordPush(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.pushes.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordTransition counts a connection state change
func (m *Metrics) RecordTransition(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.states.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}
