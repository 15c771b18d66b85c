package rfc5444

import (
	"errors"
)

// MsgType identifies a message within a packet.
type MsgType uint8

// TLVType identifies a type-length-value entry within a message body.
type TLVType uint8

const (
	// packetVersion is the only packet version this codec understands.
	packetVersion = 0

	// msgHeaderLen is the fixed message header size:
	// [type (1 byte)][size (2 bytes, big endian)][hop limit (1 byte)]
	msgHeaderLen = 4

	// maxTLVLen is the largest value a single TLV can carry.
	maxTLVLen = 255

	// addressTLVLen is the value size of an address TLV:
	// [address (16 bytes)][prefix length (1 byte)]
	addressTLVLen = 17
)

var (
	// ErrUnknownMessage indicates no encoder is registered for a message type.
	ErrUnknownMessage = errors.New("rfc5444: no encoder registered for message type")

	// ErrBufferFull indicates a message, packet, or address-TLV buffer ran
	// out of space while encoding.
	ErrBufferFull = errors.New("rfc5444: buffer too small")

	// ErrTLVTooLong indicates a TLV value exceeds the one-byte length field.
	ErrTLVTooLong = errors.New("rfc5444: tlv value exceeds 255 bytes")

	// ErrTruncated indicates an inbound packet ended mid-structure.
	ErrTruncated = errors.New("rfc5444: truncated packet")

	// ErrBadVersion indicates an inbound packet carries an unknown version.
	ErrBadVersion = errors.New("rfc5444: unsupported packet version")

	// ErrNotIPv6 indicates an address TLV was given a non-IPv6 address.
	ErrNotIPv6 = errors.New("rfc5444: address is not IPv6")
)

// tlv is one parsed type-length-value entry.
type tlv struct {
	typ TLVType
	val []byte
}
