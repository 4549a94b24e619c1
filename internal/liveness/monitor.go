// Package liveness implements the idle-ping-evict protocol of spec.md §4.7:
// a periodic task pings roster entries that have gone quiet, and evicts any
// that don't reply within the ping timeout. Grounded on the teacher's own
// ticker-driven background tasks (room.go's CheckMuteExpiry, metrics.go's
// RunMetrics) — same shape, a time.Ticker loop selecting on ctx.Done().
package liveness

import (
	"context"
	"log"
	"net"
	"time"

	"ichat/internal/roster"
)

// Default tuning values, mirroring the original server's
// INACTIVITY_THRESHOLD / PING_TIMEOUT / MONITOR_INTERVAL constants.
const (
	DefaultTick        = 30 * time.Second
	DefaultIdleTimeout = 300 * time.Second
	DefaultPingTimeout = 10 * time.Second
)

// Sender is the minimal outbound capability the monitor needs: send a raw
// payload to an address. The server's UDP connection satisfies this.
type Sender interface {
	SendTo(addr *net.UDPAddr, payload []byte) error
}

// Broadcaster is the minimal capability needed to announce an eviction to
// the remaining roster — implemented by the router/server.
type Broadcaster interface {
	BroadcastSystem(text string)
}

// Forgetter releases any per-address bookkeeping kept outside the roster
// (the ingress rate limiter) once an address is evicted. Optional.
type Forgetter interface {
	Forget(addr *net.UDPAddr)
}

// Monitor runs the idle-ping-evict tick described in spec.md §4.7.
type Monitor struct {
	Roster      *roster.Roster
	Pending     *PendingSet
	Sender      Sender
	Broadcaster Broadcaster
	Forgetter   Forgetter

	Tick        time.Duration
	IdleTimeout time.Duration
	PingTimeout time.Duration
}

// New returns a Monitor with the default tuning values; callers can
// override Tick/IdleTimeout/PingTimeout before calling Run.
func New(r *roster.Roster, pending *PendingSet, sender Sender, broadcaster Broadcaster) *Monitor {
	return &Monitor{
		Roster:      r,
		Pending:     pending,
		Sender:      sender,
		Broadcaster: broadcaster,
		Tick:        DefaultTick,
		IdleTimeout: DefaultIdleTimeout,
		PingTimeout: DefaultPingTimeout,
	}
}

// Run blocks, ticking every m.Tick, until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep performs one monitor tick: issue pings to idle entries, then evict
// any entry whose pending ping has timed out.
func (m *Monitor) sweep() {
	now := time.Now()

	// Step 1+2: snapshot roster under read lock, ping idle entries with no
	// pending ping outstanding.
	for _, snap := range m.Roster.All() {
		if now.Sub(snap.LastActive) < m.IdleTimeout {
			continue
		}
		if m.Pending.Has(snap.Addr) {
			continue
		}
		payload := []byte("ping$")
		if err := m.Sender.SendTo(snap.Addr, payload); err != nil {
			log.Printf("[monitor] ping send to %s: %v", snap.Addr, err)
			continue
		}
		m.Pending.Add(snap.Addr, now)
	}

	// Step 3: evict anyone whose pending ping is older than PingTimeout and
	// who hasn't ret-ping'd (or disconnected) in the meantime.
	deadline := now.Add(-m.PingTimeout)
	for _, rec := range m.Pending.takeExpired(deadline) {
		e := m.Roster.FindByAddr(rec.addr)
		if e == nil {
			// Already gone (disconn raced us) — nothing to evict.
			continue
		}
		name := e.Name
		if err := m.Roster.RemoveByAddr(rec.addr); err != nil {
			continue
		}
		if m.Forgetter != nil {
			m.Forgetter.Forget(rec.addr)
		}
		log.Printf("[monitor] evicted %s (%s) after ping timeout", name, rec.addr)
		m.Broadcaster.BroadcastSystem(name + " has been removed due to inactivity")
	}
}
