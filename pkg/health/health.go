package health

import (
	"context"
	"sync"
	"time"

	"realtime-chat/client/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a part of the client that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Critical    bool      `json:"critical"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func() (Status, string, error)

// Report is the aggregated result of the last run
type Report struct {
	Healthy    bool                  `json:"healthy"`
	Timestamp  time.Time             `json:"timestamp"`
	Components map[string]*Component `json:"components"`
}

// Checker runs registered checks and keeps their last result
type Checker struct {
	checks      map[string]Check
	components  map[string]*Component
	checkPeriod time.Duration
	mutex       sync.RWMutex
	log         *logger.Logger
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	checker := &Checker{
		checks:      make(map[string]Check),
		components:  make(map[string]*Component),
		checkPeriod: checkPeriod,
		log:         log.WithComponent("health"),
	}

	checker.RegisterCheck("self", false, func() (Status, string, error) {
		return StatusUp, "Health checker is running", nil
	})
	return checker
}

// RegisterCheck registers a health check. A critical component that is down
// makes the whole client unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = check
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Critical:    critical,
		Description: "Not checked yet",
	}
}

// RunChecks executes all registered health checks
func (c *Checker) RunChecks() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for name, check := range c.checks {
		status, description, err := check()

		component := c.components[name]
		component.Status = status
		component.Description = description
		component.LastChecked = time.Now()

		if err != nil {
			component.Error = err.Error()
			c.log.Warn("Health check failed", "component", name, "status", string(status), "error", err.Error())
		} else {
			component.Error = ""
		}
	}
}

// Start runs the checks now and then periodically until ctx ends
func (c *Checker) Start(ctx context.Context) {
	c.RunChecks()
	if c.checkPeriod <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunChecks()
			}
		}
	}()
}

// Report returns a copy of the current component states
func (c *Checker) Report() Report {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	report := Report{
		Healthy:    true,
		Timestamp:  time.Now(),
		Components: make(map[string]*Component, len(c.components)),
	}
	for name, component := range c.components {
		componentCopy := *component
		report.Components[name] = &componentCopy
		if component.Critical && component.Status == StatusDown {
			report.Healthy = false
		}
	}
	return report
}

// RegisterConnectionCheck reports the chat connection as critical. state
// returns the connection state name and whether it is live.
func (c *Checker) RegisterConnectionCheck(state func() (string, bool)) {
	c.RegisterCheck("connection", true, func() (Status, string, error) {
		name, live := state()
		if !live {
			return StatusDown, "Chat connection is " + name, nil
		}
		return StatusUp, "Chat connection is " + name, nil
	})
}

// RegisterStoreCheck reports an optional dependency such as the snapshot store
func (c *Checker) RegisterStoreCheck(name string, ping func() error) {
	c.RegisterCheck(name, false, func() (Status, string, error) {
		if err := ping(); err != nil {
			return StatusDegraded, name + " is unreachable", err
		}
		return StatusUp, name + " is reachable", nil
	})
}
