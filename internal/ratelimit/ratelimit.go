// Package ratelimit bounds how fast any single UDP source address may feed
// datagrams into the server, ahead of the router. It is ambient protection
// against a flooding client and never appears in the wire protocol itself —
// a limited sender just gets an Error$ reply instead of being processed.
package ratelimit

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// Default tuning: a generous steady rate with a small burst allowance, well
// above any legitimate interactive chat client's send rate.
const (
	DefaultRate  = 20 // datagrams per second
	DefaultBurst = 40
)

// Limiter tracks one token-bucket limiter per source address, created
// lazily on first contact. Grounded on the teacher's per-connection
// resource bookkeeping (room.go's per-client maps), generalized here to
// per-address limiters built on golang.org/x/time/rate, the same quota
// primitive metrics.go and recording.go reach for elsewhere in the pack.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	rate  rate.Limit
	burst int
}

// New returns a Limiter allowing ratePerSecond datagrams per second per
// address with the given burst. A ratePerSecond or burst <= 0 falls back to
// DefaultRate or DefaultBurst respectively.
func New(ratePerSecond float64, burst int) *Limiter {
	if ratePerSecond <= 0 {
		ratePerSecond = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

// Allow reports whether a datagram from addr may proceed, consuming one
// token from that address's bucket if so.
func (l *Limiter) Allow(addr *net.UDPAddr) bool {
	key := addr.String()
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Forget drops the per-address limiter for addr, e.g. once a client has
// disconnected, so the map doesn't grow unbounded across session churn.
func (l *Limiter) Forget(addr *net.UDPAddr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, addr.String())
}
