package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// UDPDispatcher implements Dispatcher over a real UDP/IPv6 socket. Inbound
// datagrams are wrapped into chains carrying a synthesized IPv6 header
// segment (so receivers can recover the sender address) plus the payload,
// and handed to the registered receive sink.
type UDPDispatcher struct {
	conn  net.PacketConn
	alloc Allocator

	mu   sync.RWMutex
	sink ReceiveSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUDPDispatcher opens a UDP/IPv6 socket on the given port and starts the
// read loop.
func NewUDPDispatcher(port uint16, alloc Allocator) (*UDPDispatcher, error) {
	conn, err := net.ListenPacket("udp6", fmt.Sprintf("[::]:%d", port))
	if err != nil {
		return nil, fmt.Errorf("listening on port %d: %w", port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &UDPDispatcher{
		conn:   conn,
		alloc:  alloc,
		ctx:    ctx,
		cancel: cancel,
	}

	d.wg.Add(1)
	go d.readLoop()

	return d, nil
}

// DispatchSend transmits an outbound chain. The chain must carry IPv6, UDP,
// and payload segments; on success the dispatcher owns and releases it.
func (d *UDPDispatcher) DispatchSend(chain *Chain) error {
	select {
	case <-d.ctx.Done():
		return ErrNoReceiver
	default:
	}

	ipSeg := chain.Segment(SegIPv6)
	udpSeg := chain.Segment(SegUDP)
	if ipSeg == nil || udpSeg == nil {
		return fmt.Errorf("chain is missing network headers")
	}

	ip, err := ParseIPv6Header(ipSeg.Data)
	if err != nil {
		return err
	}
	udp, err := ParseUDPHeader(udpSeg.Data)
	if err != nil {
		return err
	}

	dst := &net.UDPAddr{
		IP:   ip.Dst.AsSlice(),
		Port: int(udp.DstPort),
	}
	if _, err := d.conn.WriteTo(chain.Payload(), dst); err != nil {
		return fmt.Errorf("udp write to %s: %w", dst, err)
	}

	chain.Release()
	return nil
}

// RegisterReceiver binds the sink for inbound datagrams. The dispatcher
// listens on a single port, so the port argument only has to match the one
// the socket was opened with.
func (d *UDPDispatcher) RegisterReceiver(port uint16, sink ReceiveSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
	return nil
}

// Close stops the read loop and closes the socket.
func (d *UDPDispatcher) Close() error {
	d.cancel()
	err := d.conn.Close()
	d.wg.Wait()
	return err
}

func (d *UDPDispatcher) readLoop() {
	defer d.wg.Done()
	buffer := make([]byte, 2048)

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			d.readOne(buffer)
		}
	}
}

func (d *UDPDispatcher) readOne(buffer []byte) {
	// Short deadline so the loop notices cancellation promptly.
	_ = d.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

	n, addr, err := d.conn.ReadFrom(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		return
	}

	d.mu.RLock()
	sink := d.sink
	d.mu.RUnlock()
	if sink == nil {
		return
	}

	chain, err := d.wrapInbound(buffer[:n], addr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "readOne",
			"sender":   addr.String(),
			"error":    err.Error(),
		}).Warn("Dropping inbound datagram")
		return
	}

	if err := sink(chain); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "readOne",
			"sender":   addr.String(),
			"error":    err.Error(),
		}).Warn("Receive sink rejected datagram")
	}
}

// wrapInbound builds the inbound chain for one datagram: an IPv6 header
// segment reconstructed from the socket's sender address plus the payload.
func (d *UDPDispatcher) wrapInbound(data []byte, sender net.Addr) (*Chain, error) {
	udpAddr, ok := sender.(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected sender address type %T", sender)
	}
	src, ok := netip.AddrFromSlice(udpAddr.IP)
	if !ok {
		return nil, fmt.Errorf("invalid sender address %s", udpAddr.IP)
	}

	ipSeg, err := d.alloc.Alloc(SegIPv6, IPv6HeaderLen)
	if err != nil {
		return nil, fmt.Errorf("%w: ipv6 header: %w", ErrAllocFailed, err)
	}
	ip := IPv6Header{
		PayloadLen: uint16(len(data)),
		NextHeader: protoUDP,
		Src:        src.Unmap(),
	}
	_ = ip.MarshalTo(ipSeg.Data)

	pl, err := d.alloc.Alloc(SegPayload, len(data))
	if err != nil {
		d.alloc.Release(ipSeg)
		return nil, fmt.Errorf("%w: payload: %w", ErrAllocFailed, err)
	}
	copy(pl.Data, data)

	return NewChain(d.alloc, ipSeg, pl), nil
}
