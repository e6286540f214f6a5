package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter is a per client IP token bucket: perHour requests refilled
// evenly over an hour, with a burst of the full hourly allowance.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	perHour  int
	idleTTL  time.Duration
	now      func() time.Time
	lastScan time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perHour int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*client),
		perHour: perHour,
		idleTTL: time.Hour,
		now:     time.Now,
	}
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evictIdle(now)

	cl, ok := rl.clients[key]
	if !ok {
		every := time.Hour / time.Duration(max(rl.perHour, 1))
		cl = &client{limiter: rate.NewLimiter(rate.Every(every), rl.perHour)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// evictIdle drops buckets that have been full for a while. Called with mu held.
func (rl *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(rl.lastScan) < rl.idleTTL {
		return
	}
	rl.lastScan = now
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) >= rl.idleTTL {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.perHour <= 0 {
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.perHour))
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "fail",
				"message": "Too many requests from this IP, please try again in an hour!",
			})
			return
		}
		c.Next()
	}
}
