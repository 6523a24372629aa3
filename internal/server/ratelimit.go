package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table; idle entries are pruned when
// it fills.
const maxTrackedClients = 4096

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter rate limits requests per client address.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientEntry
	now     func() time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*clientEntry),
		now:     time.Now,
	}
}

// Allow reports whether the client may make a request now.
func (c *clientLimiter) Allow(client string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.clients[client]
	if !ok {
		if len(c.clients) >= maxTrackedClients {
			c.prune(now)
		}
		e = &clientEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[client] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// prune drops clients whose bucket has had time to refill completely.
func (c *clientLimiter) prune(now time.Time) {
	idle := time.Hour
	if c.limit > 0 && c.limit != rate.Inf {
		idle = time.Duration(float64(c.burst) / float64(c.limit) * float64(time.Second))
	}
	for k, e := range c.clients {
		if now.Sub(e.lastSeen) > idle {
			delete(c.clients, k)
		}
	}
}
