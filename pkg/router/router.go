package router

import (
	"net/http"

	"realtime-chat/client/internal/api"
	"realtime-chat/client/pkg/config"
	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/health"
	"realtime-chat/client/pkg/logger"
	"realtime-chat/client/pkg/middleware"
	"realtime-chat/client/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Router is the control API of the chat client
type Router struct {
	Engine *gin.Engine
	Logger *logger.Logger
	Config *config.Config
}

// New creates the engine with the control API middleware stack
func New(cfg *config.Config, log *logger.Logger) (*Router, error) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(log))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	limiterOptions := middleware.DefaultRateLimiterOptions()
	limiterOptions.Limit = rate.Limit(cfg.Server.RateLimit)
	limiterOptions.Burst = cfg.Server.RateLimitBurst
	engine.Use(middleware.NewRateLimiter(log, limiterOptions).Middleware())

	v, err := validator.NewOpenAPIValidator()
	if err != nil {
		return nil, err
	}
	engine.Use(v.Middleware())

	return &Router{
		Engine: engine,
		Logger: log,
		Config: cfg,
	}, nil
}

// SetupRoutes registers the session, health, metrics and schema routes
func (r *Router) SetupRoutes(session api.ChatSession, checker *health.Checker) {
	api.NewHealthHandler(checker).RegisterHealthRoutes(r.Engine)
	api.NewSessionController(session).RegisterRoutesV1(r.Engine.Group("/api/v1"))

	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Engine.GET("/api/docs/controlapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", validator.Schema())
	})
}
