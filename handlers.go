package aodvv2

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/opd-ai/aodvv2/rfc5444"
)

// metricTLVLen is the METRIC TLV value size:
// [metric type (1 byte)][orig metric (1 byte)][targ metric (1 byte)]
const metricTLVLen = 3

var errMalformedRouteMessage = errors.New("malformed route message")

// encodeRouteMessage writes the outbound context's packet as message TLVs.
// Invoked by the codec during CreateMessage, with the writer lock held.
func (s *Server) encodeRouteMessage(mw *rfc5444.MessageWriter) error {
	pkt := &s.out.pkt
	mw.SetHopLimit(pkt.HopLimit)

	if err := mw.AddAddressTLV(TLVOrigAddr, pkt.OrigNode.Addr, pkt.OrigNode.PfxLen); err != nil {
		return fmt.Errorf("orig address: %w", err)
	}
	if err := mw.AddAddressTLV(TLVTargAddr, pkt.TargNode.Addr, pkt.TargNode.PfxLen); err != nil {
		return fmt.Errorf("targ address: %w", err)
	}

	var seq [2]byte
	binary.BigEndian.PutUint16(seq[:], uint16(pkt.OrigNode.Seqnum))
	if err := mw.AddTLV(TLVOrigSeqNum, seq[:]); err != nil {
		return fmt.Errorf("orig seqnum: %w", err)
	}
	binary.BigEndian.PutUint16(seq[:], uint16(pkt.TargNode.Seqnum))
	if err := mw.AddTLV(TLVTargSeqNum, seq[:]); err != nil {
		return fmt.Errorf("targ seqnum: %w", err)
	}

	metric := [metricTLVLen]byte{byte(pkt.MetricType), pkt.OrigNode.Metric, pkt.TargNode.Metric}
	if err := mw.AddTLV(TLVMetric, metric[:]); err != nil {
		return fmt.Errorf("metric: %w", err)
	}
	return nil
}

// handleRouteMessage decodes one inbound route message and delivers it to
// the registered callback. Invoked by the codec during HandlePacket, with
// the reader lock held, so the receive metadata is stable.
func (s *Server) handleRouteMessage(m *rfc5444.Message) error {
	pkt, err := decodeRouteMessage(m)
	if err != nil {
		return err
	}
	pkt.Sender = s.recvSender
	pkt.Timestamp = s.recvAt

	s.cbMu.RLock()
	cb := s.onMessage
	s.cbMu.RUnlock()
	if cb != nil {
		cb(m.Type, pkt)
	}
	return nil
}

// decodeRouteMessage rebuilds a PacketData from message TLVs.
func decodeRouteMessage(m *rfc5444.Message) (*PacketData, error) {
	pkt := &PacketData{HopLimit: m.HopLimit}

	var ok bool
	if pkt.OrigNode.Addr, pkt.OrigNode.PfxLen, ok = m.AddressTLV(TLVOrigAddr); !ok {
		return nil, fmt.Errorf("%w: missing orig address", errMalformedRouteMessage)
	}
	if pkt.TargNode.Addr, pkt.TargNode.PfxLen, ok = m.AddressTLV(TLVTargAddr); !ok {
		return nil, fmt.Errorf("%w: missing targ address", errMalformedRouteMessage)
	}

	origSeq, ok := m.TLV(TLVOrigSeqNum)
	if !ok || len(origSeq) != 2 {
		return nil, fmt.Errorf("%w: missing orig seqnum", errMalformedRouteMessage)
	}
	pkt.OrigNode.Seqnum = Seqnum(binary.BigEndian.Uint16(origSeq))

	targSeq, ok := m.TLV(TLVTargSeqNum)
	if !ok || len(targSeq) != 2 {
		return nil, fmt.Errorf("%w: missing targ seqnum", errMalformedRouteMessage)
	}
	pkt.TargNode.Seqnum = Seqnum(binary.BigEndian.Uint16(targSeq))

	metric, ok := m.TLV(TLVMetric)
	if !ok || len(metric) != metricTLVLen {
		return nil, fmt.Errorf("%w: missing metric", errMalformedRouteMessage)
	}
	pkt.MetricType = MetricType(metric[0])
	pkt.OrigNode.Metric = metric[1]
	pkt.TargNode.Metric = metric[2]

	return pkt, nil
}
