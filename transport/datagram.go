package transport

import (
	"fmt"
	"net/netip"
)

// DatagramSpec describes one outbound datagram to compose.
type DatagramSpec struct {
	// SrcPort and DstPort are the UDP ports. Route-protocol traffic uses
	// the same well-known port for both.
	SrcPort uint16
	DstPort uint16

	// Src and Dst are the IPv6 source and destination addresses.
	Src netip.Addr
	Dst netip.Addr

	// HopLimit is the IPv6 hop limit.
	HopLimit uint8

	// IfIndex is the index of the bound network interface.
	IfIndex uint32
}

// BuildDatagram composes payload, UDP, IPv6, and interface header segments
// into one chain. Every stage is a failure point; on any failure all
// segments built so far are released and an error is returned, so the caller
// never owns a partial chain.
func BuildDatagram(alloc Allocator, payload []byte, spec DatagramSpec) (*Chain, error) {
	var built []*Segment
	rollback := func() {
		for _, s := range built {
			alloc.Release(s)
		}
	}

	pl, err := alloc.Alloc(SegPayload, len(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrAllocFailed, err)
	}
	copy(pl.Data, payload)
	built = append(built, pl)

	udpSeg, err := alloc.Alloc(SegUDP, UDPHeaderLen)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("%w: udp header: %w", ErrAllocFailed, err)
	}
	udp := UDPHeader{
		SrcPort: spec.SrcPort,
		DstPort: spec.DstPort,
		Length:  uint16(UDPHeaderLen + len(payload)),
	}
	_ = udp.MarshalTo(udpSeg.Data)
	built = append(built, udpSeg)

	ipSeg, err := alloc.Alloc(SegIPv6, IPv6HeaderLen)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("%w: ipv6 header: %w", ErrAllocFailed, err)
	}
	ip := IPv6Header{
		PayloadLen: uint16(UDPHeaderLen + len(payload)),
		NextHeader: protoUDP,
		HopLimit:   spec.HopLimit,
		Src:        spec.Src,
		Dst:        spec.Dst,
	}
	_ = ip.MarshalTo(ipSeg.Data)
	built = append(built, ipSeg)

	netifSeg, err := alloc.Alloc(SegNetif, NetifHeaderLen)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("%w: netif header: %w", ErrAllocFailed, err)
	}
	netif := NetifHeader{IfIndex: spec.IfIndex}
	_ = netif.MarshalTo(netifSeg.Data)

	// Outermost header first.
	return NewChain(alloc, netifSeg, ipSeg, udpSeg, pl), nil
}
