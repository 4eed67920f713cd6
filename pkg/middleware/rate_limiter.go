package middleware

import (
	"strconv"
	"sync"
	"time"

	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures the rate limiter
type RateLimiterOptions struct {
	// Limit defines requests per second
	Limit rate.Limit
	// Burst defines maximum burst size allowed
	Burst int
	// ExpiryDuration defines how long to keep client state in memory
	ExpiryDuration time.Duration
	// KeyFunc extracts the limiting key from a request
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimiterOptions returns sensible defaults
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          5,
		Burst:          10,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits control API requests per client key
type RateLimiter struct {
	mu          sync.Mutex
	options     RateLimiterOptions
	clients     map[string]*client
	lastCleanup time.Time
	logger      *logger.Logger
	now         func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *logger.Logger, options RateLimiterOptions) *RateLimiter {
	if options.KeyFunc == nil {
		options.KeyFunc = DefaultRateLimiterOptions().KeyFunc
	}
	if options.ExpiryDuration <= 0 {
		options.ExpiryDuration = time.Hour
	}
	return &RateLimiter{
		options:     options,
		clients:     make(map[string]*client),
		lastCleanup: time.Now(),
		logger:      logger,
		now:         time.Now,
	}
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := r.options.KeyFunc(c)

		if !r.getLimiter(key).Allow() {
			r.logger.Warn("Rate limit exceeded",
				"client", key,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.options.Burst))
			_ = c.Error(errors.NewRateLimitError("RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later."))
			c.Abort()
			return
		}

		c.Next()
	}
}

// Clients returns the number of tracked client keys
func (r *RateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// getLimiter returns the limiter for key, dropping idle clients at most once per expiry window
func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastCleanup) > r.options.ExpiryDuration {
		for k, v := range r.clients {
			if now.Sub(v.lastSeen) > r.options.ExpiryDuration {
				delete(r.clients, k)
			}
		}
		r.lastCleanup = now
	}

	v, exists := r.clients[key]
	if !exists {
		v = &client{limiter: rate.NewLimiter(r.options.Limit, r.options.Burst)}
		r.clients[key] = v
	}
	v.lastSeen = now
	return v.limiter
}
