package aodvv2

import (
	"net/netip"
	"sync"
)

// RouteState describes how trustworthy a routing table entry is.
type RouteState uint8

const (
	// RouteStateActive marks a route confirmed by recent traffic.
	RouteStateActive RouteState = iota
	// RouteStateIdle marks a usable route without recent traffic.
	RouteStateIdle
	// RouteStateInvalid marks a broken route kept only for its sequence
	// number history.
	RouteStateInvalid
)

// RouteEntry is one learned route.
type RouteEntry struct {
	Addr       netip.Addr
	NextHop    netip.Addr
	Seqnum     Seqnum
	MetricType MetricType
	Metric     uint8
	State      RouteState
}

// RoutingTable stores learned routes keyed by destination address.
type RoutingTable struct {
	mu     sync.RWMutex
	routes map[netip.Addr]RouteEntry
}

// NewRoutingTable creates an empty routing table.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{routes: make(map[netip.Addr]RouteEntry)}
}

// Add inserts or replaces the route to the entry's destination.
func (t *RoutingTable) Add(e RouteEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[e.Addr] = e
}

// Lookup returns the route to the given destination.
func (t *RoutingTable) Lookup(addr netip.Addr) (RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.routes[addr]
	return e, ok
}

// Remove deletes the route to the given destination.
func (t *RoutingTable) Remove(addr netip.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.routes, addr)
}

// Len returns the number of stored routes.
func (t *RoutingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}
