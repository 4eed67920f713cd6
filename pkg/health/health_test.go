package health

import (
	"errors"
	"testing"
	"time"

	"realtime-chat/client/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestChecker_ConnectionIsCritical(t *testing.T) {
	live := false
	c := NewChecker(logger.NewNop(), time.Minute)
	c.RegisterConnectionCheck(func() (string, bool) {
		if live {
			return "connected", true
		}
		return "disconnected", false
	})

	c.RunChecks()
	report := c.Report()
	assert.False(t, report.Healthy)
	assert.Equal(t, StatusDown, report.Components["connection"].Status)
	assert.Equal(t, "Chat connection is disconnected", report.Components["connection"].Description)

	live = true
	c.RunChecks()
	report = c.Report()
	assert.True(t, report.Healthy)
	assert.Equal(t, StatusUp, report.Components["self"].Status)
}

func TestChecker_StoreFailureDegrades(t *testing.T) {
	c := NewChecker(logger.NewNop(), 0)
	c.RegisterStoreCheck("snapshots", func() error { return errors.New("refused") })

	c.RunChecks()
	report := c.Report()

	assert.True(t, report.Healthy)
	assert.Equal(t, StatusDegraded, report.Components["snapshots"].Status)
	assert.Equal(t, "refused", report.Components["snapshots"].Error)
}

func TestChecker_ReportIsACopy(t *testing.T) {
	c := NewChecker(logger.NewNop(), 0)
	c.RunChecks()

	report := c.Report()
	report.Components["self"].Status = StatusDown

	assert.Equal(t, StatusUp, c.Report().Components["self"].Status)
}
