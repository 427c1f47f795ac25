package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"soomhub/market/internal/config"
)

// clientLimiter stores rate limiters for a specific client.
type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiter applies per client token buckets. A client over the soft bucket is
// throttled only on writes; over the hard bucket every request is refused.
type RateLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	cfg     *config.Config

	idleAfter time.Duration
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop. Call Stop to end it.
func NewRateLimiter(cfg *config.Config, cleanupInterval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:   make(map[string]*clientLimiter),
		cfg:       cfg,
		idleAfter: 3 * cleanupInterval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go rl.cleanupClients(cleanupInterval)
	return rl
}

// clientIdentifier prefers the authenticated user over the remote address.
func clientIdentifier(c *gin.Context) string {
	if id, ok := CurrentUserID(c); ok {
		return "user:" + id.String()
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) getClientLimiter(identifier string) *clientLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.clients[identifier]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(rl.cfg.RateLimitSoftRefillRate), rl.cfg.RateLimitSoftBucketSize),
			hardLimiter: rate.NewLimiter(rate.Limit(rl.cfg.RateLimitHardRefillRate), rl.cfg.RateLimitHardBucketSize),
		}
		rl.clients[identifier] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

func (rl *RateLimiter) cleanupClients(interval time.Duration) {
	defer close(rl.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(time.Now())
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	count := 0
	for id, client := range rl.clients {
		if now.Sub(client.lastSeen) > rl.idleAfter {
			delete(rl.clients, id)
			count++
		}
	}
	if count > 0 {
		log.Printf("Rate limiter cleanup removed %d old client entries.", count)
	}
	return count
}

// Stop ends the cleanup loop and waits for it to exit.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

// Limit creates the Gin middleware handler.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := clientIdentifier(c)
		limiter := rl.getClientLimiter(clientKey)

		if !limiter.hardLimiter.Allow() {
			log.Printf("Hard rate limit exceeded for client: %s on %s %s", clientKey, c.Request.Method, c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		if isWrite(c.Request.Method) && !limiter.softLimiter.Allow() {
			log.Printf("Soft rate limit exceeded for client: %s on %s %s", clientKey, c.Request.Method, c.FullPath())
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many write requests, slow down"})
			return
		}

		c.Next()
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
