package api

import (
	"net/http"

	"realtime-chat/client/pkg/health"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the last health report
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health answers 200 while every critical component is up, 503 otherwise
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.checker.Report()
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// RegisterHealthRoutes registers health check related routes
func (h *HealthHandler) RegisterHealthRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
}
