package transport

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestUDPDispatcherLoopback sends a datagram from a plain UDP socket and
// verifies the dispatcher delivers it as a chain carrying the sender's
// address.
func TestUDPDispatcherLoopback(t *testing.T) {
	alloc := NewHeapAllocator()

	d, err := NewUDPDispatcher(0, alloc)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	received := make(chan *Chain, 1)
	require.NoError(t, d.RegisterReceiver(0, func(chain *Chain) error {
		received <- chain
		return nil
	}))

	sender, err := net.ListenPacket("udp6", "[::1]:0")
	require.NoError(t, err)
	defer sender.Close()

	dstPort := d.conn.LocalAddr().(*net.UDPAddr).Port
	payload := []byte{0x00, 0x0A, 0x00, 0x04, 0x05}
	_, err = sender.WriteTo(payload, &net.UDPAddr{IP: net.IPv6loopback, Port: dstPort})
	require.NoError(t, err)

	select {
	case chain := <-received:
		assert.Equal(t, payload, chain.Payload())

		ipSeg := chain.Segment(SegIPv6)
		require.NotNil(t, ipSeg)
		ip, err := ParseIPv6Header(ipSeg.Data)
		require.NoError(t, err)
		assert.Equal(t, netip.MustParseAddr("::1"), ip.Src)

		chain.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("datagram was not delivered")
	}

	assert.EqualValues(t, 0, alloc.Outstanding())
}

// TestUDPDispatcherSendAfterClose verifies dispatching after Close reports
// no receiver and leaves the chain with the caller.
func TestUDPDispatcherSendAfterClose(t *testing.T) {
	alloc := NewHeapAllocator()

	d, err := NewUDPDispatcher(0, alloc)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	chain, err := BuildDatagram(alloc, []byte{1}, testSpec())
	require.NoError(t, err)

	err = d.DispatchSend(chain)
	assert.ErrorIs(t, err, ErrNoReceiver)

	// Caller still owns the chain on error.
	chain.Release()
	assert.EqualValues(t, 0, alloc.Outstanding())
}

// TestUDPDispatcherRoundTrip sends through one dispatcher to another.
func TestUDPDispatcherRoundTrip(t *testing.T) {
	alloc := NewHeapAllocator()

	recv, err := NewUDPDispatcher(0, alloc)
	require.NoError(t, err)
	defer func() { _ = recv.Close() }()

	send, err := NewUDPDispatcher(0, alloc)
	require.NoError(t, err)
	defer func() { _ = send.Close() }()

	received := make(chan *Chain, 1)
	require.NoError(t, recv.RegisterReceiver(0, func(chain *Chain) error {
		received <- chain
		return nil
	}))

	dstPort := uint16(recv.conn.LocalAddr().(*net.UDPAddr).Port)
	payload := []byte{0xCA, 0xFE}
	chain, err := BuildDatagram(alloc, payload, DatagramSpec{
		SrcPort:  dstPort,
		DstPort:  dstPort,
		Src:      netip.MustParseAddr("::1"),
		Dst:      netip.MustParseAddr("::1"),
		HopLimit: 64,
		IfIndex:  1,
	})
	require.NoError(t, err)

	require.NoError(t, send.DispatchSend(chain))

	select {
	case got := <-received:
		assert.Equal(t, payload, got.Payload())
		got.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("datagram was not delivered")
	}

	assert.EqualValues(t, 0, alloc.Outstanding())
}
