package rfc5444

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// MessageEncoder fills in the body of a single outbound message. The encoder
// for a message type is invoked by Writer.CreateMessage with a MessageWriter
// positioned at an empty message.
type MessageEncoder interface {
	EncodeMessage(mw *MessageWriter) error
}

// MessageEncoderFunc adapts a function to the MessageEncoder interface.
type MessageEncoderFunc func(mw *MessageWriter) error

// EncodeMessage implements MessageEncoder for MessageEncoderFunc.
func (f MessageEncoderFunc) EncodeMessage(mw *MessageWriter) error {
	return f(mw)
}

// Target is a destination for finished packets. Each target owns its own
// packet buffer; flushing a target hands the accumulated packet bytes to the
// target's send callback and resets the buffer.
type Target struct {
	buf  []byte
	max  int
	send func(pkt []byte)
}

// NewTarget creates a target with the given packet buffer size and send
// callback. The callback receives the finished wire bytes; it must not
// retain the slice past its return.
func NewTarget(packetSize int, send func(pkt []byte)) *Target {
	t := &Target{
		buf:  make([]byte, 1, packetSize),
		max:  packetSize,
		send: send,
	}
	t.buf[0] = packetVersion
	return t
}

// pending reports whether any message has been added since the last flush.
func (t *Target) pending() bool {
	return len(t.buf) > 1
}

func (t *Target) reset() {
	t.buf = t.buf[:1]
	t.buf[0] = packetVersion
}

// Writer serializes registered message types into packets. It owns a message
// scratch buffer and an address-TLV budget shared by all messages; finished
// messages are appended to every registered target.
//
// Writer is not safe for concurrent use.
type Writer struct {
	msgBuf   []byte
	msgMax   int
	tlvMax   int
	encoders map[MsgType]MessageEncoder
	targets  []*Target
}

// NewWriter creates a writer with the given message buffer size and
// address-TLV buffer size.
func NewWriter(msgSize, addrTLVSize int) *Writer {
	return &Writer{
		msgBuf:   make([]byte, 0, msgSize),
		msgMax:   msgSize,
		tlvMax:   addrTLVSize,
		encoders: make(map[MsgType]MessageEncoder),
	}
}

// RegisterMessage registers the encoder invoked to build messages of the
// given type. Registering the same type twice replaces the encoder.
func (w *Writer) RegisterMessage(t MsgType, enc MessageEncoder) {
	w.encoders[t] = enc
}

// RegisterTarget adds a target that will receive every subsequently created
// message.
func (w *Writer) RegisterTarget(tg *Target) {
	w.targets = append(w.targets, tg)
}

// CreateMessage encodes one message of the given type and appends it to all
// registered targets. On any error no target receives a partial message.
func (w *Writer) CreateMessage(t MsgType) error {
	enc, ok := w.encoders[t]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMessage, t)
	}

	mw := MessageWriter{
		buf:    w.msgBuf[:msgHeaderLen],
		max:    w.msgMax,
		tlvMax: w.tlvMax,
	}
	for i := range mw.buf {
		mw.buf[i] = 0
	}

	if err := enc.EncodeMessage(&mw); err != nil {
		return fmt.Errorf("encoding message type %d: %w", t, err)
	}

	msg := mw.finish(t)

	// All-or-nothing across targets: verify capacity everywhere first.
	for _, tg := range w.targets {
		if len(tg.buf)+len(msg) > tg.max {
			return fmt.Errorf("%w: packet buffer", ErrBufferFull)
		}
	}
	for _, tg := range w.targets {
		tg.buf = append(tg.buf, msg...)
	}
	return nil
}

// Flush finalizes the target's pending packet and hands it to the target's
// send callback. Flushing a target with no pending messages is a no-op.
func (w *Writer) Flush(tg *Target) error {
	if !tg.pending() {
		return nil
	}
	tg.send(tg.buf)
	tg.reset()
	return nil
}

// MessageWriter is the per-message encoding context handed to a
// MessageEncoder.
type MessageWriter struct {
	buf      []byte
	max      int
	tlvMax   int
	tlvBytes int
	hopLimit uint8
}

// SetHopLimit sets the hop limit carried in the message header.
func (m *MessageWriter) SetHopLimit(h uint8) {
	m.hopLimit = h
}

// AddTLV appends one TLV to the message body.
func (m *MessageWriter) AddTLV(t TLVType, value []byte) error {
	if len(value) > maxTLVLen {
		return ErrTLVTooLong
	}
	if m.tlvBytes+len(value) > m.tlvMax {
		return fmt.Errorf("%w: address-TLV buffer", ErrBufferFull)
	}
	if len(m.buf)+2+len(value) > m.max {
		return fmt.Errorf("%w: message buffer", ErrBufferFull)
	}

	m.buf = append(m.buf, byte(t), byte(len(value)))
	m.buf = append(m.buf, value...)
	m.tlvBytes += len(value)
	return nil
}

// AddAddressTLV appends a TLV carrying an IPv6 address and prefix length.
func (m *MessageWriter) AddAddressTLV(t TLVType, addr netip.Addr, pfxLen uint8) error {
	if !addr.Is6() {
		return ErrNotIPv6
	}

	var value [addressTLVLen]byte
	a16 := addr.As16()
	copy(value[:16], a16[:])
	value[16] = pfxLen
	return m.AddTLV(t, value[:])
}

// finish fills in the message header and returns the complete message bytes.
func (m *MessageWriter) finish(t MsgType) []byte {
	m.buf[0] = byte(t)
	binary.BigEndian.PutUint16(m.buf[1:3], uint16(len(m.buf)))
	m.buf[3] = m.hopLimit
	return m.buf
}
