package resilience

import (
	"sync"
	"time"

	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"
)

// CircuitBreakerState represents the current state of a circuit breaker
type CircuitBreakerState string

const (
	// StateClosed means calls pass through
	StateClosed CircuitBreakerState = "closed"
	// StateOpen means calls fail fast until the retry timeout expires
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen means a limited number of trial calls pass through
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
	// IsFailure decides which errors count against the circuit. Nil counts every error.
	IsFailure func(error) bool
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     30 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency for a while
type CircuitBreaker struct {
	config CircuitBreakerConfig
	log    *logger.Logger
	now    func() time.Time

	mutex           sync.Mutex
	state           CircuitBreakerState
	failureCount    uint
	successCount    uint
	inFlight        uint
	nextAttemptTime time.Time

	totalRequests    uint64
	totalFailures    uint64
	openCircuitCount uint64
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		config: config,
		log:    log.WithComponent("circuit_breaker"),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open. An open circuit returns a
// network error with code CIRCUIT_OPEN without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		cb.log.Warn("Circuit breaker preventing request", "name", cb.config.Name)
		return errors.NewNetworkError("CIRCUIT_OPEN", cb.config.Name+" is unavailable, retry later", nil)
	}

	err := fn()
	if err != nil && cb.countsAsFailure(err) {
		cb.recordFailure()
		cb.log.Warn("Circuit breaker recorded failure", "name", cb.config.Name, "error", err.Error())
		return err
	}

	cb.recordSuccess()
	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Metrics returns request counters of the circuit breaker
func (cb *CircuitBreaker) Metrics() map[string]any {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return map[string]any{
		"name":               cb.config.Name,
		"state":              string(cb.state),
		"total_requests":     cb.totalRequests,
		"total_failures":     cb.totalFailures,
		"open_circuit_count": cb.openCircuitCount,
	}
}

func (cb *CircuitBreaker) countsAsFailure(err error) bool {
	if cb.config.IsFailure == nil {
		return true
	}
	return cb.config.IsFailure(err)
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttemptTime) {
			return false
		}
		cb.toHalfOpen()
		fallthrough
	case StateHalfOpen:
		if cb.inFlight+cb.successCount >= cb.config.SuccessThreshold {
			return false
		}
		cb.inFlight++
	}

	cb.totalRequests++
	return true
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.inFlight--
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.toClosed()
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalFailures++

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openCircuitCount++
	cb.inFlight = 0
	cb.nextAttemptTime = cb.now().Add(cb.config.RetryTimeout)

	cb.log.Info("Circuit breaker opened",
		"name", cb.config.Name,
		"failures", cb.failureCount,
		"nextAttempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.inFlight = 0

	cb.log.Info("Circuit breaker half-open", "name", cb.config.Name)
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.inFlight = 0

	cb.log.Info("Circuit breaker closed", "name", cb.config.Name)
}
