package liveness

import (
	"net"
	"sync"
	"time"
)

// pendingRecord is one entry in the pending-ping set: the address pinged and
// when the ping was sent.
type pendingRecord struct {
	addr   *net.UDPAddr
	sentAt time.Time
}

// PendingSet tracks at most one outstanding ping per address, per spec.md
// §3's Pending-ping set. All mutations are single-mutex-protected and never
// held across a network send, per spec.md §5.
type PendingSet struct {
	mu      sync.Mutex
	pending map[string]pendingRecord // addr.String() -> record
}

// NewPendingSet returns an empty PendingSet.
func NewPendingSet() *PendingSet {
	return &PendingSet{pending: make(map[string]pendingRecord)}
}

// Add records that a ping was sent to addr at sentAt. No-op if a pending
// ping already exists for addr.
func (p *PendingSet) Add(addr *net.UDPAddr, sentAt time.Time) {
	key := addr.String()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[key]; ok {
		return
	}
	p.pending[key] = pendingRecord{addr: addr, sentAt: sentAt}
}

// Has reports whether addr currently has a pending ping.
func (p *PendingSet) Has(addr *net.UDPAddr) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[addr.String()]
	return ok
}

// Clear removes any pending ping for addr. Used by the ret-ping handler and
// by disconn, so a reply that arrives after the monitor's snapshot but
// before its timeout evaluation still wins the race against eviction.
func (p *PendingSet) Clear(addr *net.UDPAddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, addr.String())
}

// takeExpired atomically removes and returns every pending entry whose
// sentAt is at or before the deadline. Because the delete happens under the
// same lock as the check, a concurrent Clear (from a ret-ping arriving at
// the same moment) can only win or lose outright — it can never race to a
// double-eviction or a silently dropped clear.
func (p *PendingSet) takeExpired(deadline time.Time) []pendingRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []pendingRecord
	for key, rec := range p.pending {
		if !rec.sentAt.After(deadline) {
			expired = append(expired, rec)
			delete(p.pending, key)
		}
	}
	return expired
}
