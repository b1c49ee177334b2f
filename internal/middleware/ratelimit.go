package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/socialimageapp/authentication-api-service/internal/config"
	"github.com/socialimageapp/authentication-api-service/internal/service"
)

const idleEviction = 5 * time.Minute

// RateLimiter throttles clients by IP using the configured
// requests-per-minute budget. A nil limiter disables throttling.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter from configuration. Returns nil when
// RateLimitRPM is zero or negative, which disables throttling.
func NewRateLimiter(cfg config.Config) *RateLimiter {
	rpm := cfg.RateLimitRPM
	if rpm <= 0 {
		return nil
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:     rate.Limit(float64(rpm) / 60.0),
		burst:     burst,
		clients:   make(map[string]*clientBucket),
		lastSweep: time.Now(),
	}
}

// Handler rejects over-budget requests with the service error envelope
// and a Retry-After hint.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !r.allow(c.ClientIP()) {
			appErr := service.ErrRateLimited
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(r.limit)))
			c.AbortWithStatusJSON(appErr.Status, gin.H{
				"error":             appErr.Code,
				"error_description": appErr.Message,
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) allow(key string) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastSweep) > idleEviction {
		for k, bucket := range r.clients {
			if now.Sub(bucket.lastSeen) > idleEviction {
				delete(r.clients, k)
			}
		}
		r.lastSweep = now
	}

	bucket, ok := r.clients[key]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}

// retryAfterSeconds estimates how long until one token refills.
func retryAfterSeconds(limit rate.Limit) int {
	if limit <= 0 {
		return 1
	}
	secs := int(1 / float64(limit))
	if secs < 1 {
		secs = 1
	}
	return secs
}
