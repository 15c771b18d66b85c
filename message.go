package aodvv2

import (
	"net/netip"
	"time"

	"github.com/opd-ai/aodvv2/rfc5444"
)

// Route message types carried on the wire.
const (
	MsgTypeRREQ    rfc5444.MsgType = 10
	MsgTypeRREP    rfc5444.MsgType = 11
	MsgTypeRERR    rfc5444.MsgType = 12
	MsgTypeRREPAck rfc5444.MsgType = 13
)

// TLV types used inside route messages.
const (
	TLVOrigSeqNum rfc5444.TLVType = iota
	TLVTargSeqNum
	TLVUnreachableNodeSeqNum
	TLVMetric
	TLVOrigAddr
	TLVTargAddr
)

// DefaultPort is the well-known UDP port for MANET routing protocols.
const DefaultPort = 269

// AllManetRoutersLinkLocal is the link-local multicast address route
// requests are flooded to.
var AllManetRoutersLinkLocal = netip.MustParseAddr("ff02::6d")

// Seqnum is a per-origin monotonically increasing sequence number.
type Seqnum uint16

// NodeData describes the originating or target node of a route message.
type NodeData struct {
	// Addr is the node's IPv6 address.
	Addr netip.Addr
	// PfxLen is the address prefix length in bits.
	PfxLen uint8
	// Metric is the route cost accumulated toward this node.
	Metric uint8
	// Seqnum is the node's sequence number, or 0 when unknown.
	Seqnum Seqnum
}

// PacketData is the semantic content of one route request or route reply.
// It is a value type: it is copied across API and mailbox boundaries and
// never shares mutable state between producers and the worker.
type PacketData struct {
	// HopLimit bounds how many more hops the message may travel.
	HopLimit uint8
	// Sender is the neighboring router the message arrived from. Only set
	// on received packets.
	Sender netip.Addr
	// MetricType selects the route cost metric.
	MetricType MetricType
	// OrigNode describes the message originator.
	OrigNode NodeData
	// TargNode describes the route target.
	TargNode NodeData
	// Timestamp records when the message was received. Only set on
	// received packets.
	Timestamp time.Time
}
