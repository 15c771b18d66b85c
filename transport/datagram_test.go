package transport

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingAllocator wraps a HeapAllocator and fails the nth allocation.
type failingAllocator struct {
	inner   *HeapAllocator
	calls   int
	failOn  int
	failErr error
}

func newFailingAllocator(failOn int) *failingAllocator {
	return &failingAllocator{
		inner:   NewHeapAllocator(),
		failOn:  failOn,
		failErr: errors.New("injected allocation failure"),
	}
}

func (a *failingAllocator) Alloc(t SegmentType, size int) (*Segment, error) {
	a.calls++
	if a.calls == a.failOn {
		return nil, a.failErr
	}
	return a.inner.Alloc(t, size)
}

func (a *failingAllocator) Release(s *Segment) {
	a.inner.Release(s)
}

func testSpec() DatagramSpec {
	return DatagramSpec{
		SrcPort:  269,
		DstPort:  269,
		Src:      netip.MustParseAddr("fe80::1"),
		Dst:      netip.MustParseAddr("fe80::2"),
		HopLimit: 255,
		IfIndex:  3,
	}
}

// TestBuildDatagram verifies the composed chain carries all four segments
// with the expected header contents.
func TestBuildDatagram(t *testing.T) {
	alloc := NewHeapAllocator()
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	chain, err := BuildDatagram(alloc, payload, testSpec())
	require.NoError(t, err)
	assert.EqualValues(t, 4, alloc.Outstanding())

	assert.Equal(t, payload, chain.Payload())

	udpSeg := chain.Segment(SegUDP)
	require.NotNil(t, udpSeg)
	udp, err := ParseUDPHeader(udpSeg.Data)
	require.NoError(t, err)
	assert.Equal(t, uint16(269), udp.SrcPort)
	assert.Equal(t, uint16(269), udp.DstPort)
	assert.Equal(t, uint16(UDPHeaderLen+len(payload)), udp.Length)

	ipSeg := chain.Segment(SegIPv6)
	require.NotNil(t, ipSeg)
	ip, err := ParseIPv6Header(ipSeg.Data)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("fe80::1"), ip.Src)
	assert.Equal(t, netip.MustParseAddr("fe80::2"), ip.Dst)
	assert.Equal(t, uint8(protoUDP), ip.NextHeader)
	assert.Equal(t, uint8(255), ip.HopLimit)

	netifSeg := chain.Segment(SegNetif)
	require.NotNil(t, netifSeg)
	netif, err := ParseNetifHeader(netifSeg.Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), netif.IfIndex)

	chain.Release()
	assert.EqualValues(t, 0, alloc.Outstanding())
}

// TestBuildDatagramRollback injects a failure at each of the four wrap
// stages and verifies no segment leaks and no partial chain is returned.
func TestBuildDatagramRollback(t *testing.T) {
	stages := []struct {
		name   string
		failOn int
	}{
		{name: "payload", failOn: 1},
		{name: "udp header", failOn: 2},
		{name: "ipv6 header", failOn: 3},
		{name: "netif header", failOn: 4},
	}

	for _, tt := range stages {
		t.Run(tt.name, func(t *testing.T) {
			alloc := newFailingAllocator(tt.failOn)

			chain, err := BuildDatagram(alloc, []byte{1, 2, 3}, testSpec())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAllocFailed)
			assert.Nil(t, chain)
			assert.EqualValues(t, 0, alloc.inner.Outstanding())
		})
	}
}

// TestChainReleaseIdempotent verifies a chain is released at most once.
func TestChainReleaseIdempotent(t *testing.T) {
	alloc := NewHeapAllocator()

	chain, err := BuildDatagram(alloc, []byte{1}, testSpec())
	require.NoError(t, err)

	chain.Release()
	chain.Release()
	assert.EqualValues(t, 0, alloc.Outstanding())
}

// TestParseIPv6HeaderErrors covers malformed network header segments.
func TestParseIPv6HeaderErrors(t *testing.T) {
	_, err := ParseIPv6Header(make([]byte, IPv6HeaderLen-1))
	assert.ErrorIs(t, err, ErrShortHeader)

	notV6 := make([]byte, IPv6HeaderLen)
	notV6[0] = 4 << 4
	_, err = ParseIPv6Header(notV6)
	assert.Error(t, err)
}
