package aodvv2

import (
	"net/netip"
	"sync"
)

type clientEntry struct {
	prefix netip.Prefix
	metric MetricType
}

// ClientSet is the registry of local addresses this router originates route
// messages for. Every node registers at least itself.
type ClientSet struct {
	mu      sync.RWMutex
	clients []clientEntry
}

// NewClientSet creates an empty client registry.
func NewClientSet() *ClientSet {
	return &ClientSet{}
}

// Add registers an address prefix as a local client. Adding an existing
// prefix updates its metric type.
func (c *ClientSet) Add(addr netip.Addr, pfxLen uint8, metric MetricType) error {
	pfx, err := addr.Prefix(int(pfxLen))
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.clients {
		if e.prefix == pfx {
			c.clients[i].metric = metric
			return nil
		}
	}
	c.clients = append(c.clients, clientEntry{prefix: pfx, metric: metric})
	return nil
}

// Contains reports whether the address belongs to a registered client
// prefix.
func (c *ClientSet) Contains(addr netip.Addr) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.clients {
		if e.prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of registered client prefixes.
func (c *ClientSet) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}
