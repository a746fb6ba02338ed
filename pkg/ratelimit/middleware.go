package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"diagflow/pkg/metrics"
)

type Limiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// ClientLimiters keeps one token bucket per client IP.
type ClientLimiters struct {
	config   RateLimitConfig
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

func NewClientLimiters(config RateLimitConfig) *ClientLimiters {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultConfig().MaxAge
	}
	return &ClientLimiters{
		config:   config,
		limiters: make(map[string]*Limiter),
	}
}

// RunCleanup drops idle client limiters until ctx is done.
func (l *ClientLimiters) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.cleanup(now)
		}
	}
}

func (l *ClientLimiters) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, limiter := range l.limiters {
		limiter.mu.Lock()
		lastSeen := limiter.lastSeen
		limiter.mu.Unlock()
		if now.Sub(lastSeen) > l.config.MaxAge {
			delete(l.limiters, ip)
		}
	}
}

func (l *ClientLimiters) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

func (l *ClientLimiters) get(clientIP string) *Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[clientIP]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists = l.limiters[clientIP]
	if !exists {
		limiter = &Limiter{
			limiter:  rate.NewLimiter(rate.Limit(l.config.RPS), l.config.Burst),
			lastSeen: time.Now(),
		}
		l.limiters[clientIP] = limiter
	}
	return limiter
}

// Middleware rejects requests over the per-client rate with 429.
func (l *ClientLimiters) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		limiter := l.get(clientIP)
		limiter.mu.Lock()
		limiter.lastSeen = time.Now()
		limiter.mu.Unlock()

		if !limiter.limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Limit", formatRate(l.config.RPS))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()

		c.Header("X-RateLimit-Limit", formatRate(l.config.RPS))
		remaining := int(limiter.limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

func formatRate(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64)
}
