package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter map; past it the map is reset and
// every client starts with a full bucket again.
const maxTrackedClients = 10000

type rateErr struct {
	Error string `json:"error"`
}

// ClientLimiter hands out one token bucket per client IP.
type ClientLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

// NewClientLimiter returns nil when rps <= 0, which disables limiting.
func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (c *ClientLimiter) Allow(key string) bool {
	c.mu.Lock()
	l, ok := c.clients[key]
	if !ok {
		if len(c.clients) >= maxTrackedClients {
			c.clients = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(c.limit, c.burst)
		c.clients[key] = l
	}
	c.mu.Unlock()
	return l.Allow()
}

func (c *ClientLimiter) retryAfter() int {
	return int(math.Max(1, math.Ceil(1/float64(c.limit))))
}

func RateLimitMiddleware(l *ClientLimiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(clientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(rateErr{Error: "too_many_requests"})
		})
	}
}
