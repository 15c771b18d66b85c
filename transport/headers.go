package transport

import (
	"encoding/binary"
	"errors"
	"net/netip"
)

const (
	// UDPHeaderLen is the fixed UDP header size.
	UDPHeaderLen = 8
	// IPv6HeaderLen is the fixed IPv6 header size.
	IPv6HeaderLen = 40
	// NetifHeaderLen is the interface header size: a 4-byte interface index.
	NetifHeaderLen = 4

	// protoUDP is the IPv6 next-header value for UDP.
	protoUDP = 17
)

// ErrShortHeader indicates a header segment is too small to parse.
var ErrShortHeader = errors.New("transport: header too short")

// UDPHeader is a fixed-layout UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

// MarshalTo encodes the header into b, which must hold UDPHeaderLen bytes.
func (h *UDPHeader) MarshalTo(b []byte) error {
	if len(b) < UDPHeaderLen {
		return ErrShortHeader
	}
	binary.BigEndian.PutUint16(b[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(b[2:4], h.DstPort)
	binary.BigEndian.PutUint16(b[4:6], h.Length)
	binary.BigEndian.PutUint16(b[6:8], h.Checksum)
	return nil
}

// ParseUDPHeader decodes a UDP header segment.
func ParseUDPHeader(b []byte) (UDPHeader, error) {
	if len(b) < UDPHeaderLen {
		return UDPHeader{}, ErrShortHeader
	}
	return UDPHeader{
		SrcPort:  binary.BigEndian.Uint16(b[0:2]),
		DstPort:  binary.BigEndian.Uint16(b[2:4]),
		Length:   binary.BigEndian.Uint16(b[4:6]),
		Checksum: binary.BigEndian.Uint16(b[6:8]),
	}, nil
}

// IPv6Header is a fixed-layout IPv6 header.
type IPv6Header struct {
	PayloadLen uint16
	NextHeader uint8
	HopLimit   uint8
	Src        netip.Addr
	Dst        netip.Addr
}

// MarshalTo encodes the header into b, which must hold IPv6HeaderLen bytes.
func (h *IPv6Header) MarshalTo(b []byte) error {
	if len(b) < IPv6HeaderLen {
		return ErrShortHeader
	}
	b[0] = 6 << 4 // version, no traffic class
	binary.BigEndian.PutUint16(b[4:6], h.PayloadLen)
	b[6] = h.NextHeader
	b[7] = h.HopLimit
	src := h.Src.As16()
	dst := h.Dst.As16()
	copy(b[8:24], src[:])
	copy(b[24:40], dst[:])
	return nil
}

// ParseIPv6Header decodes an IPv6 header segment.
func ParseIPv6Header(b []byte) (IPv6Header, error) {
	if len(b) < IPv6HeaderLen {
		return IPv6Header{}, ErrShortHeader
	}
	if b[0]>>4 != 6 {
		return IPv6Header{}, errors.New("transport: not an IPv6 header")
	}
	return IPv6Header{
		PayloadLen: binary.BigEndian.Uint16(b[4:6]),
		NextHeader: b[6],
		HopLimit:   b[7],
		Src:        netip.AddrFrom16([16]byte(b[8:24])),
		Dst:        netip.AddrFrom16([16]byte(b[24:40])),
	}, nil
}

// NetifHeader identifies the network interface a datagram is bound to.
type NetifHeader struct {
	IfIndex uint32
}

// MarshalTo encodes the header into b, which must hold NetifHeaderLen bytes.
func (h *NetifHeader) MarshalTo(b []byte) error {
	if len(b) < NetifHeaderLen {
		return ErrShortHeader
	}
	binary.BigEndian.PutUint32(b[0:4], h.IfIndex)
	return nil
}

// ParseNetifHeader decodes an interface header segment.
func ParseNetifHeader(b []byte) (NetifHeader, error) {
	if len(b) < NetifHeaderLen {
		return NetifHeader{}, ErrShortHeader
	}
	return NetifHeader{IfIndex: binary.BigEndian.Uint32(b[0:4])}, nil
}
