package transport

import (
	"errors"
	"sync/atomic"
)

// SegmentType identifies the protocol layer a chain segment belongs to.
type SegmentType uint8

const (
	// SegPayload is the wire-format message payload.
	SegPayload SegmentType = iota
	// SegUDP is a UDP header segment.
	SegUDP
	// SegIPv6 is an IPv6 header segment.
	SegIPv6
	// SegNetif is a network interface header segment.
	SegNetif
)

// String returns the segment type name for logging.
func (t SegmentType) String() string {
	switch t {
	case SegPayload:
		return "payload"
	case SegUDP:
		return "udp"
	case SegIPv6:
		return "ipv6"
	case SegNetif:
		return "netif"
	default:
		return "unknown"
	}
}

// ErrAllocFailed indicates the allocator could not provide a segment.
var ErrAllocFailed = errors.New("transport: segment allocation failed")

// Segment is one header or payload buffer within a chain.
type Segment struct {
	Type SegmentType
	Data []byte
}

// Allocator provides and reclaims chain segments. Implementations must
// tolerate Release being called from a different goroutine than Alloc.
type Allocator interface {
	// Alloc returns a segment with a Data slice of the given length.
	Alloc(t SegmentType, size int) (*Segment, error)

	// Release returns a segment to the allocator.
	Release(s *Segment)
}

// HeapAllocator allocates segments on the Go heap and tracks the number of
// outstanding segments, which makes leak checks cheap in tests.
type HeapAllocator struct {
	outstanding atomic.Int64
}

// NewHeapAllocator creates an empty heap allocator.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{}
}

// Alloc implements Allocator.
func (a *HeapAllocator) Alloc(t SegmentType, size int) (*Segment, error) {
	a.outstanding.Add(1)
	return &Segment{Type: t, Data: make([]byte, size)}, nil
}

// Release implements Allocator.
func (a *HeapAllocator) Release(s *Segment) {
	if s == nil {
		return
	}
	a.outstanding.Add(-1)
}

// Outstanding returns the number of segments allocated but not yet released.
func (a *HeapAllocator) Outstanding() int64 {
	return a.outstanding.Load()
}

// Chain is one composed datagram: an ordered list of header segments plus
// payload, built and released as a unit. Segments are ordered outermost
// first (netif, IPv6, UDP, payload) on a fully built outbound chain.
type Chain struct {
	segs     []*Segment
	alloc    Allocator
	released bool
}

// NewChain assembles a chain from already-allocated segments. The chain
// takes ownership of the segments.
func NewChain(alloc Allocator, segs ...*Segment) *Chain {
	return &Chain{segs: segs, alloc: alloc}
}

// Segment returns the first segment of the given type, or nil.
func (c *Chain) Segment(t SegmentType) *Segment {
	for _, s := range c.segs {
		if s.Type == t {
			return s
		}
	}
	return nil
}

// Payload returns the payload segment's bytes, or nil if the chain carries
// no payload.
func (c *Chain) Payload() []byte {
	if s := c.Segment(SegPayload); s != nil {
		return s.Data
	}
	return nil
}

// Release returns every segment to the allocator. Further calls are no-ops,
// so each chain is released at most once no matter which path drops it.
func (c *Chain) Release() {
	if c == nil || c.released {
		return
	}
	c.released = true
	for _, s := range c.segs {
		c.alloc.Release(s)
	}
	c.segs = nil
}
