package aodvv2

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/aodvv2/rfc5444"
	"github.com/opd-ai/aodvv2/transport"
)

// defaultPrefixLen is the prefix length clients and route messages use for
// host addresses.
const defaultPrefixLen = 128

// ipv6HopLimit is the IP-layer hop limit for outbound route messages.
// Link-local MANET traffic is sent with the maximum so neighbors can verify
// it was not forwarded.
const ipv6HopLimit = 255

// Option identifies a negotiable transport option. Option negotiation is a
// placeholder: every request is answered with ErrNotSupported.
type Option uint16

type mailboxKind uint8

const (
	mboxSendRREQ mailboxKind = iota + 1
	mboxSendRREP
	mboxRecv
	mboxGetOption
	mboxSetOption
)

// mailboxMessage is one unit of work handed to the worker. Packet payloads
// are copied in, so producers share nothing with the worker after submit.
type mailboxMessage struct {
	kind    mailboxKind
	pkt     PacketData
	nextHop netip.Addr
	chain   *transport.Chain
	reply   chan<- error
}

var workerIDs atomic.Uint64

// Worker identifies the server's dedicated protocol goroutine. It is the
// sole consumer of the mailbox and therefore the only caller of the send
// and receive pipelines.
type Worker struct {
	id      uint64
	mailbox chan mailboxMessage
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
}

// ID returns the worker's process-unique identity.
func (w *Worker) ID() uint64 {
	return w.id
}

// outboundContext is the writer-side send state. It is fully overwritten at
// the start of every send while the writer lock is held, so no partial
// state from a previous send is ever observable.
type outboundContext struct {
	msgType rfc5444.MsgType
	pkt     PacketData
	dst     netip.Addr
	err     error
}

// Server bridges route-protocol packets to the TLV wire codec and moves the
// resulting datagrams over a UDP/IPv6 transport. Create it with NewServer,
// bind it to an interface with Init, and tear it down with Close.
type Server struct {
	cfg        Config
	dispatcher transport.Dispatcher
	alloc      transport.Allocator
	clk        clock.Clock
	log        *logrus.Entry

	// mu guards the init/teardown state: worker, ifc, localAddr, and the
	// collaborator pointers. Submissions take it shared so Close cannot
	// race a producer mid-handoff.
	mu        sync.RWMutex
	worker    *Worker
	ifc       NetworkInterface
	localAddr netip.Addr

	// readerMu guards the reader and the receive metadata. recvSender and
	// recvAt are only valid while readerMu is held.
	readerMu   sync.Mutex
	reader     *rfc5444.Reader
	recvSender netip.Addr
	recvAt     time.Time

	// writerMu guards the writer, its target, and the outbound context.
	writerMu sync.Mutex
	writer   *rfc5444.Writer
	target   *rfc5444.Target
	out      outboundContext

	seqnums *SeqnumStore
	pending *PendingRequestTable
	clients *ClientSet
	routes  *RoutingTable

	cbMu      sync.RWMutex
	onMessage func(t rfc5444.MsgType, pkt *PacketData)
}

// NewServer creates a server using the given configuration and transport
// dispatcher. The server does nothing until Init.
func NewServer(cfg Config, dispatcher transport.Dispatcher) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dispatcher == nil {
		return nil, errors.New("aodvv2: dispatcher must not be nil")
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		alloc:      transport.NewHeapAllocator(),
		clk:        clock.New(),
		log:        logrus.WithField("component", "aodvv2"),
	}, nil
}

// Init binds the server to a network interface and starts the protocol
// worker. It is idempotent: a second call returns the worker started by the
// first and performs no other work.
//
// On address resolution failure the server stays uninitialized and Init may
// be retried with another interface.
func (s *Server) Init(ifc NetworkInterface) (*Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker != nil {
		return s.worker, nil
	}

	addr, err := ifc.LinkLocalAddr()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddressResolution, err)
	}

	s.ifc = ifc
	s.localAddr = addr

	s.seqnums = NewSeqnumStore()
	s.routes = NewRoutingTable()
	s.clients = NewClientSet()
	s.pending = NewPendingRequestTable(DefaultRequestWait, s.clk)

	// Every node is its own client.
	if err := s.clients.Add(addr, defaultPrefixLen, s.cfg.DefaultMetric); err != nil {
		return nil, fmt.Errorf("registering local client: %w", err)
	}

	s.readerMu.Lock()
	s.reader = rfc5444.NewReader()
	handler := rfc5444.MessageHandlerFunc(s.handleRouteMessage)
	s.reader.RegisterHandler(MsgTypeRREQ, handler)
	s.reader.RegisterHandler(MsgTypeRREP, handler)
	s.readerMu.Unlock()

	s.writerMu.Lock()
	s.writer = rfc5444.NewWriter(s.cfg.MessageSize, s.cfg.AddrTLVSize)
	s.target = rfc5444.NewTarget(s.cfg.PacketSize, s.transmit)
	s.writer.RegisterTarget(s.target)
	encoder := rfc5444.MessageEncoderFunc(s.encodeRouteMessage)
	s.writer.RegisterMessage(MsgTypeRREQ, encoder)
	s.writer.RegisterMessage(MsgTypeRREP, encoder)
	s.writerMu.Unlock()

	w := &Worker{
		id:      workerIDs.Add(1),
		mailbox: make(chan mailboxMessage, s.cfg.QueueSize),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go s.run(w)

	if err := s.dispatcher.RegisterReceiver(s.cfg.Port, s.submitReceived); err != nil {
		w.stop.Do(func() { close(w.done) })
		w.wg.Wait()
		return nil, fmt.Errorf("registering transport receiver: %w", err)
	}

	s.worker = w
	s.log.WithFields(logrus.Fields{
		"interface": ifc.Name(),
		"address":   addr.String(),
		"worker":    w.id,
	}).Info("Route message server started")

	return w, nil
}

// Close stops the protocol worker and discards any queued work. It is
// idempotent; after Close the server may be initialized again.
func (s *Server) Close() error {
	s.mu.Lock()
	w := s.worker
	s.worker = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}

	w.stop.Do(func() { close(w.done) })
	w.wg.Wait()

	// The worker drained on exit; clear anything enqueued since.
	for {
		select {
		case m := <-w.mailbox:
			s.discard(m)
		default:
			return nil
		}
	}
}

// LocalAddr returns the local address resolved at Init.
func (s *Server) LocalAddr() netip.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localAddr
}

// Routes returns the routing table collaborator.
func (s *Server) Routes() *RoutingTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes
}

// PendingRequests returns the pending route request collaborator.
func (s *Server) PendingRequests() *PendingRequestTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// Seqnums returns the sequence number collaborator.
func (s *Server) Seqnums() *SeqnumStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seqnums
}

// Clients returns the local client registry.
func (s *Server) Clients() *ClientSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients
}

// OnRouteMessage registers the callback invoked for every decoded inbound
// route message. The callback runs on the protocol worker and must not call
// back into the server synchronously.
func (s *Server) OnRouteMessage(cb func(t rfc5444.MsgType, pkt *PacketData)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onMessage = cb
}

// SendRouteRequest queues a route request for transmission to the given
// next hop. The packet is copied; the caller keeps ownership of its value.
func (s *Server) SendRouteRequest(pkt *PacketData, nextHop netip.Addr) error {
	return s.submit(mailboxMessage{kind: mboxSendRREQ, pkt: *pkt, nextHop: nextHop})
}

// SendRouteReply queues a route reply for transmission to the given next
// hop.
func (s *Server) SendRouteReply(pkt *PacketData, nextHop netip.Addr) error {
	return s.submit(mailboxMessage{kind: mboxSendRREP, pkt: *pkt, nextHop: nextHop})
}

// FindRoute initiates route discovery for the target address: it builds a
// fresh route request originated by this node, records it as pending, and
// floods it to all MANET routers on the link.
func (s *Server) FindRoute(target netip.Addr) error {
	s.mu.RLock()
	if s.worker == nil {
		s.mu.RUnlock()
		return ErrNotRunning
	}
	local := s.localAddr
	seqnums := s.seqnums
	pending := s.pending
	s.mu.RUnlock()

	pkt := PacketData{
		HopLimit:   MetricMax(s.cfg.DefaultMetric),
		MetricType: s.cfg.DefaultMetric,
		OrigNode: NodeData{
			Addr:   local,
			PfxLen: defaultPrefixLen,
		},
		TargNode: NodeData{
			Addr:   target,
			PfxLen: defaultPrefixLen,
		},
	}

	seqnums.Inc()
	pkt.OrigNode.Seqnum = seqnums.Get()

	pending.Add(&pkt)

	return s.SendRouteRequest(&pkt, AllManetRoutersLinkLocal)
}

// GetOption queries a transport option. Option negotiation is not
// implemented; the worker answers every query with ErrNotSupported.
func (s *Server) GetOption(opt Option) error {
	return s.roundTrip(mailboxMessage{kind: mboxGetOption})
}

// SetOption sets a transport option. Option negotiation is not implemented;
// the worker answers every request with ErrNotSupported.
func (s *Server) SetOption(opt Option) error {
	return s.roundTrip(mailboxMessage{kind: mboxSetOption})
}

func (s *Server) roundTrip(m mailboxMessage) error {
	reply := make(chan error, 1)
	m.reply = reply
	if err := s.submit(m); err != nil {
		return err
	}
	return <-reply
}

// submit hands one message to the worker. It blocks while the mailbox is
// full, which is the backpressure point: a saturated worker stalls callers
// instead of dropping their work.
func (s *Server) submit(m mailboxMessage) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := s.worker
	if w == nil {
		return ErrNotRunning
	}
	select {
	case w.mailbox <- m:
		return nil
	case <-w.done:
		return ErrNotRunning
	}
}

// submitReceived is the transport receive sink. Ownership of the chain
// passes to the worker on success; on a failed handoff it is released here
// so the datagram is consumed exactly once either way.
func (s *Server) submitReceived(chain *transport.Chain) error {
	if err := s.submit(mailboxMessage{kind: mboxRecv, chain: chain}); err != nil {
		chain.Release()
		return err
	}
	return nil
}

// run is the protocol worker loop: the single serialization point for all
// codec access and all transport send/receive work.
func (s *Server) run(w *Worker) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			// Drain so no queued chain outlives the worker.
			for {
				select {
				case m := <-w.mailbox:
					s.discard(m)
				default:
					return
				}
			}
		case m := <-w.mailbox:
			s.dispatchMailbox(m)
		}
	}
}

func (s *Server) dispatchMailbox(m mailboxMessage) {
	switch m.kind {
	case mboxSendRREQ:
		if err := s.sendMessage(MsgTypeRREQ, &m.pkt, m.nextHop); err != nil {
			s.log.WithFields(logrus.Fields{
				"next_hop": m.nextHop.String(),
				"error":    err.Error(),
			}).Warn("Couldn't send route request")
		}
	case mboxSendRREP:
		if err := s.sendMessage(MsgTypeRREP, &m.pkt, m.nextHop); err != nil {
			s.log.WithFields(logrus.Fields{
				"next_hop": m.nextHop.String(),
				"error":    err.Error(),
			}).Warn("Couldn't send route reply")
		}
	case mboxRecv:
		s.receive(m.chain)
	case mboxGetOption, mboxSetOption:
		if m.reply != nil {
			m.reply <- ErrNotSupported
		}
	default:
		s.log.WithField("kind", m.kind).Warn("Discarding unidentified mailbox message")
	}
}

func (s *Server) discard(m mailboxMessage) {
	if m.chain != nil {
		m.chain.Release()
	}
	if m.reply != nil {
		m.reply <- ErrNotRunning
	}
}

// sendMessage is the send pipeline: under the writer lock it overwrites the
// outbound context and drives the codec, whose flush invokes the transmit
// callback synchronously.
func (s *Server) sendMessage(t rfc5444.MsgType, pkt *PacketData, nextHop netip.Addr) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	s.out = outboundContext{msgType: t, pkt: *pkt, dst: nextHop}

	if err := s.writer.CreateMessage(t); err != nil {
		return fmt.Errorf("%w: %w", ErrCodec, err)
	}
	if err := s.writer.Flush(s.target); err != nil {
		return fmt.Errorf("%w: %w", ErrCodec, err)
	}
	return s.out.err
}

// transmit is the codec's send callback: it wraps finished wire bytes into
// a datagram chain and dispatches it. Runs with the writer lock held.
func (s *Server) transmit(buf []byte) {
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		s.log.WithField("length", len(buf)).Tracef("outbound packet\n%s", hex.Dump(buf))
	}

	chain, err := transport.BuildDatagram(s.alloc, buf, transport.DatagramSpec{
		SrcPort:  s.cfg.Port,
		DstPort:  s.cfg.Port,
		Src:      s.localAddr,
		Dst:      s.out.dst,
		HopLimit: ipv6HopLimit,
		IfIndex:  uint32(s.ifc.Index()),
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"destination": s.out.dst.String(),
			"error":       err.Error(),
		}).Warn("Couldn't compose outbound datagram")
		s.out.err = err
		return
	}

	if err := s.dispatcher.DispatchSend(chain); err != nil {
		chain.Release()
		if errors.Is(err, transport.ErrNoReceiver) {
			err = fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
		}
		s.log.WithFields(logrus.Fields{
			"destination": s.out.dst.String(),
			"error":       err.Error(),
		}).Warn("Couldn't dispatch outbound datagram")
		s.out.err = err
	}
}

// receive is the receive pipeline. It consumes the chain exactly once
// regardless of outcome; a malformed datagram is logged and dropped, never
// allowed to disturb the worker.
func (s *Server) receive(chain *transport.Chain) {
	defer chain.Release()

	ipSeg := chain.Segment(transport.SegIPv6)
	if ipSeg == nil {
		s.log.Warn("Dropping inbound datagram without a network header")
		return
	}
	hdr, err := transport.ParseIPv6Header(ipSeg.Data)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("Dropping inbound datagram with a malformed network header")
		return
	}

	payload := chain.Payload()
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		s.log.WithFields(logrus.Fields{
			"sender": hdr.Src.String(),
			"length": len(payload),
		}).Tracef("inbound packet\n%s", hex.Dump(payload))
	}

	s.readerMu.Lock()
	s.recvSender = hdr.Src
	s.recvAt = s.clk.Now()
	if err := s.reader.HandlePacket(payload); err != nil {
		s.log.WithFields(logrus.Fields{
			"sender": hdr.Src.String(),
			"error":  err.Error(),
		}).Warn("Couldn't handle inbound packet")
	}
	s.readerMu.Unlock()
}
