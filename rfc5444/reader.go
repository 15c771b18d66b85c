package rfc5444

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// MessageHandler consumes one parsed inbound message.
type MessageHandler interface {
	HandleMessage(m *Message) error
}

// MessageHandlerFunc adapts a function to the MessageHandler interface.
type MessageHandlerFunc func(m *Message) error

// HandleMessage implements MessageHandler for MessageHandlerFunc.
func (f MessageHandlerFunc) HandleMessage(m *Message) error {
	return f(m)
}

// Message is a parsed view of one inbound message. The TLV value slices
// alias the packet buffer handed to HandlePacket and must not be retained
// past the handler's return.
type Message struct {
	Type     MsgType
	HopLimit uint8

	tlvs []tlv
}

// TLV returns the value of the first TLV of the given type.
func (m *Message) TLV(t TLVType) ([]byte, bool) {
	for _, e := range m.tlvs {
		if e.typ == t {
			return e.val, true
		}
	}
	return nil, false
}

// AddressTLV decodes the first TLV of the given type as an IPv6 address and
// prefix length.
func (m *Message) AddressTLV(t TLVType) (netip.Addr, uint8, bool) {
	val, ok := m.TLV(t)
	if !ok || len(val) != addressTLVLen {
		return netip.Addr{}, 0, false
	}
	return netip.AddrFrom16([16]byte(val[:16])), val[16], true
}

// Reader parses inbound packets and dispatches messages to registered
// handlers.
//
// Reader is not safe for concurrent use.
type Reader struct {
	handlers map[MsgType]MessageHandler
}

// NewReader creates an empty reader.
func NewReader() *Reader {
	return &Reader{handlers: make(map[MsgType]MessageHandler)}
}

// RegisterHandler registers the handler invoked for messages of the given
// type. Messages without a registered handler are skipped.
func (r *Reader) RegisterHandler(t MsgType, h MessageHandler) {
	r.handlers[t] = h
}

// HandlePacket parses all messages in a packet and dispatches each to its
// registered handler. Parsing stops at the first malformed message; handler
// errors are returned wrapped.
func (r *Reader) HandlePacket(data []byte) error {
	if len(data) < 1 {
		return ErrTruncated
	}
	if data[0] != packetVersion {
		return fmt.Errorf("%w: %d", ErrBadVersion, data[0])
	}

	rest := data[1:]
	for len(rest) > 0 {
		if len(rest) < msgHeaderLen {
			return ErrTruncated
		}
		size := int(binary.BigEndian.Uint16(rest[1:3]))
		if size < msgHeaderLen || size > len(rest) {
			return ErrTruncated
		}

		msg, err := parseMessage(rest[:size])
		if err != nil {
			return err
		}
		rest = rest[size:]

		h, ok := r.handlers[msg.Type]
		if !ok {
			continue
		}
		if err := h.HandleMessage(msg); err != nil {
			return fmt.Errorf("handling message type %d: %w", msg.Type, err)
		}
	}
	return nil
}

func parseMessage(data []byte) (*Message, error) {
	m := &Message{
		Type:     MsgType(data[0]),
		HopLimit: data[3],
	}

	body := data[msgHeaderLen:]
	for len(body) > 0 {
		if len(body) < 2 {
			return nil, ErrTruncated
		}
		vlen := int(body[1])
		if len(body) < 2+vlen {
			return nil, ErrTruncated
		}
		m.tlvs = append(m.tlvs, tlv{typ: TLVType(body[0]), val: body[2 : 2+vlen]})
		body = body[2+vlen:]
	}
	return m, nil
}
