package rfc5444

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMsgType  MsgType = 10
	testTLVAddr  TLVType = 1
	testTLVExtra TLVType = 2
)

// TestWriterReaderRoundTrip encodes a message and parses it back with the
// same codec configuration.
func TestWriterReaderRoundTrip(t *testing.T) {
	addr := netip.MustParseAddr("fe80::1")

	var sent []byte
	target := NewTarget(128, func(pkt []byte) {
		sent = append([]byte(nil), pkt...)
	})

	w := NewWriter(128, 1000)
	w.RegisterTarget(target)
	w.RegisterMessage(testMsgType, MessageEncoderFunc(func(mw *MessageWriter) error {
		mw.SetHopLimit(20)
		if err := mw.AddAddressTLV(testTLVAddr, addr, 128); err != nil {
			return err
		}
		return mw.AddTLV(testTLVExtra, []byte{0xAB, 0xCD})
	}))

	require.NoError(t, w.CreateMessage(testMsgType))
	require.NoError(t, w.Flush(target))
	require.NotNil(t, sent)

	var got *Message
	r := NewReader()
	r.RegisterHandler(testMsgType, MessageHandlerFunc(func(m *Message) error {
		got = m
		return nil
	}))

	require.NoError(t, r.HandlePacket(sent))
	require.NotNil(t, got)

	assert.Equal(t, testMsgType, got.Type)
	assert.Equal(t, uint8(20), got.HopLimit)

	gotAddr, pfxLen, ok := got.AddressTLV(testTLVAddr)
	require.True(t, ok)
	assert.Equal(t, addr, gotAddr)
	assert.Equal(t, uint8(128), pfxLen)

	extra, ok := got.TLV(testTLVExtra)
	require.True(t, ok)
	assert.Equal(t, []byte{0xAB, 0xCD}, extra)
}

// TestCreateMessageUnknownType verifies that encoding an unregistered
// message type fails without touching any target.
func TestCreateMessageUnknownType(t *testing.T) {
	sent := 0
	target := NewTarget(128, func([]byte) { sent++ })

	w := NewWriter(128, 1000)
	w.RegisterTarget(target)

	err := w.CreateMessage(testMsgType)
	assert.ErrorIs(t, err, ErrUnknownMessage)

	// A flush after the failed create must not emit anything.
	require.NoError(t, w.Flush(target))
	assert.Zero(t, sent)
}

// TestFlushEmptyTarget verifies that flushing with no pending messages sends
// nothing.
func TestFlushEmptyTarget(t *testing.T) {
	sent := 0
	target := NewTarget(128, func([]byte) { sent++ })

	w := NewWriter(128, 1000)
	w.RegisterTarget(target)

	require.NoError(t, w.Flush(target))
	assert.Zero(t, sent)
}

// TestWriterBufferLimits exercises the message, packet, and address-TLV
// space checks.
func TestWriterBufferLimits(t *testing.T) {
	tests := []struct {
		name        string
		msgSize     int
		addrTLVSize int
		packetSize  int
		encode      func(mw *MessageWriter) error
	}{
		{
			name:        "message buffer full",
			msgSize:     8,
			addrTLVSize: 1000,
			packetSize:  128,
			encode: func(mw *MessageWriter) error {
				return mw.AddTLV(testTLVExtra, make([]byte, 16))
			},
		},
		{
			name:        "address-TLV budget exhausted",
			msgSize:     128,
			addrTLVSize: 4,
			packetSize:  128,
			encode: func(mw *MessageWriter) error {
				return mw.AddTLV(testTLVExtra, make([]byte, 8))
			},
		},
		{
			name:        "packet buffer full",
			msgSize:     64,
			addrTLVSize: 1000,
			packetSize:  8,
			encode: func(mw *MessageWriter) error {
				return mw.AddTLV(testTLVExtra, make([]byte, 16))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := NewTarget(tt.packetSize, func([]byte) {
				t.Error("no packet should be sent")
			})

			w := NewWriter(tt.msgSize, tt.addrTLVSize)
			w.RegisterTarget(target)
			w.RegisterMessage(testMsgType, MessageEncoderFunc(tt.encode))

			err := w.CreateMessage(testMsgType)
			assert.ErrorIs(t, err, ErrBufferFull)
			assert.False(t, target.pending())
		})
	}
}

// TestAddAddressTLVRejectsIPv4 verifies the IPv6-only contract.
func TestAddAddressTLVRejectsIPv4(t *testing.T) {
	mw := &MessageWriter{buf: make([]byte, msgHeaderLen, 64), max: 64, tlvMax: 64}
	err := mw.AddAddressTLV(testTLVAddr, netip.MustParseAddr("192.0.2.1"), 32)
	assert.ErrorIs(t, err, ErrNotIPv6)
}

// TestHandlePacketMalformed covers framing errors on the receive side.
func TestHandlePacketMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{
			name: "empty",
			data: nil,
			want: ErrTruncated,
		},
		{
			name: "bad version",
			data: []byte{0x7F},
			want: ErrBadVersion,
		},
		{
			name: "short message header",
			data: []byte{0x00, 10, 0x00},
			want: ErrTruncated,
		},
		{
			name: "message size beyond packet",
			data: []byte{0x00, 10, 0x00, 0xFF, 1},
			want: ErrTruncated,
		},
		{
			name: "tlv length beyond message",
			data: []byte{0x00, 10, 0x00, 0x08, 1, 1, 0xFF, 0x00, 0x00},
			want: ErrTruncated,
		},
	}

	r := NewReader()
	r.RegisterHandler(testMsgType, MessageHandlerFunc(func(*Message) error {
		return nil
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.HandlePacket(tt.data), tt.want)
		})
	}
}

// TestHandlePacketSkipsUnknownMessages verifies that a message type without
// a handler is skipped and later messages are still dispatched.
func TestHandlePacketSkipsUnknownMessages(t *testing.T) {
	var sent []byte
	target := NewTarget(128, func(pkt []byte) {
		sent = append([]byte(nil), pkt...)
	})

	w := NewWriter(128, 1000)
	w.RegisterTarget(target)
	w.RegisterMessage(testMsgType, MessageEncoderFunc(func(mw *MessageWriter) error {
		return mw.AddTLV(testTLVExtra, []byte{1})
	}))
	w.RegisterMessage(testMsgType+1, MessageEncoderFunc(func(mw *MessageWriter) error {
		return mw.AddTLV(testTLVExtra, []byte{2})
	}))

	require.NoError(t, w.CreateMessage(testMsgType))
	require.NoError(t, w.CreateMessage(testMsgType+1))
	require.NoError(t, w.Flush(target))

	var handled []MsgType
	r := NewReader()
	r.RegisterHandler(testMsgType+1, MessageHandlerFunc(func(m *Message) error {
		handled = append(handled, m.Type)
		return nil
	}))

	require.NoError(t, r.HandlePacket(sent))
	assert.Equal(t, []MsgType{testMsgType + 1}, handled)
}
