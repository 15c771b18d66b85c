package aodvv2

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/aodvv2/transport"
)

// fakeInterface is a NetworkInterface with canned answers.
type fakeInterface struct {
	name  string
	index int
	addr  netip.Addr
	err   error
}

func (f *fakeInterface) Name() string { return f.name }

func (f *fakeInterface) Index() int { return f.index }

func (f *fakeInterface) LinkLocalAddr() (netip.Addr, error) {
	if f.err != nil {
		return netip.Addr{}, f.err
	}
	return f.addr, nil
}

// sentPacket is one datagram captured by the fake dispatcher.
type sentPacket struct {
	payload []byte
	dst     netip.Addr
	srcPort uint16
	dstPort uint16
}

// captureDispatcher records every dispatched datagram instead of touching a
// network. It stands in for the real transport path in server tests.
type captureDispatcher struct {
	mu            sync.Mutex
	sink          transport.ReceiveSink
	registerCalls int
	failSend      error

	sent chan sentPacket
}

func newCaptureDispatcher() *captureDispatcher {
	return &captureDispatcher{sent: make(chan sentPacket, 256)}
}

func (d *captureDispatcher) DispatchSend(chain *transport.Chain) error {
	d.mu.Lock()
	fail := d.failSend
	d.mu.Unlock()
	if fail != nil {
		return fail
	}

	ipSeg := chain.Segment(transport.SegIPv6)
	udpSeg := chain.Segment(transport.SegUDP)
	if ipSeg == nil || udpSeg == nil {
		return transport.ErrNoReceiver
	}
	ip, err := transport.ParseIPv6Header(ipSeg.Data)
	if err != nil {
		return err
	}
	udp, err := transport.ParseUDPHeader(udpSeg.Data)
	if err != nil {
		return err
	}

	d.sent <- sentPacket{
		payload: append([]byte(nil), chain.Payload()...),
		dst:     ip.Dst,
		srcPort: udp.SrcPort,
		dstPort: udp.DstPort,
	}
	chain.Release()
	return nil
}

func (d *captureDispatcher) RegisterReceiver(port uint16, sink transport.ReceiveSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registerCalls++
	d.sink = sink
	return nil
}

func (d *captureDispatcher) Close() error { return nil }

func (d *captureDispatcher) setFailSend(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failSend = err
}

func (d *captureDispatcher) receiveSink() transport.ReceiveSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink
}

// newTestServer starts a server on a fake interface with a capture
// dispatcher and registers cleanup.
func newTestServer(t *testing.T, localAddr netip.Addr) (*Server, *captureDispatcher) {
	t.Helper()

	dispatcher := newCaptureDispatcher()
	s, err := NewServer(DefaultConfig(), dispatcher)
	require.NoError(t, err)

	ifc := &fakeInterface{name: "mesh0", index: 7, addr: localAddr}
	_, err = s.Init(ifc)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })
	return s, dispatcher
}

// inboundChain synthesizes a received datagram: an IPv6 header segment
// carrying the sender address plus the payload, the same shape the UDP
// dispatcher delivers.
func inboundChain(t *testing.T, alloc transport.Allocator, sender netip.Addr, payload []byte) *transport.Chain {
	t.Helper()

	ipSeg, err := alloc.Alloc(transport.SegIPv6, transport.IPv6HeaderLen)
	require.NoError(t, err)
	hdr := transport.IPv6Header{
		PayloadLen: uint16(len(payload)),
		NextHeader: 17,
		HopLimit:   255,
		Src:        sender,
	}
	require.NoError(t, hdr.MarshalTo(ipSeg.Data))

	plSeg, err := alloc.Alloc(transport.SegPayload, len(payload))
	require.NoError(t, err)
	copy(plSeg.Data, payload)

	return transport.NewChain(alloc, ipSeg, plSeg)
}
