package aodvv2

import (
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultRequestWait is how long an outstanding route request stays pending
// before it may be issued again.
const DefaultRequestWait = 2 * time.Second

type pendingKey struct {
	orig netip.Addr
	targ netip.Addr
}

type pendingEntry struct {
	seqnum  Seqnum
	addedAt time.Time
}

// PendingRequestTable tracks outstanding route requests so duplicates can be
// suppressed until they time out. Entries expire after the configured wait
// window; expiry is measured against an injected clock so tests stay
// deterministic.
type PendingRequestTable struct {
	mu      sync.Mutex
	entries map[pendingKey]pendingEntry
	wait    time.Duration
	clk     clock.Clock
}

// NewPendingRequestTable creates a table with the given expiry window. A nil
// clock falls back to the wall clock.
func NewPendingRequestTable(wait time.Duration, clk clock.Clock) *PendingRequestTable {
	if clk == nil {
		clk = clock.New()
	}
	if wait <= 0 {
		wait = DefaultRequestWait
	}
	return &PendingRequestTable{
		entries: make(map[pendingKey]pendingEntry),
		wait:    wait,
		clk:     clk,
	}
}

// Add records a route request as outstanding. A newer request for the same
// origin/target pair replaces the existing entry.
func (t *PendingRequestTable) Add(pkt *PacketData) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pendingKey{orig: pkt.OrigNode.Addr, targ: pkt.TargNode.Addr}
	t.entries[key] = pendingEntry{
		seqnum:  pkt.OrigNode.Seqnum,
		addedAt: t.clk.Now(),
	}
}

// Pending reports whether a request for the origin/target pair is still
// outstanding. Expired entries are dropped on the way.
func (t *PendingRequestTable) Pending(orig, targ netip.Addr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pendingKey{orig: orig, targ: targ}
	e, ok := t.entries[key]
	if !ok {
		return false
	}
	if t.clk.Now().Sub(e.addedAt) >= t.wait {
		delete(t.entries, key)
		return false
	}
	return true
}

// Len returns the number of tracked entries, including any not yet reaped.
func (t *PendingRequestTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
