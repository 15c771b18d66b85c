// Package transport moves finished wire-format packets across a UDP/IPv6
// datagram transport.
//
// Outbound datagrams are composed as buffer chains of header segments
// (payload, UDP, IPv6, network interface) through BuildDatagram, which rolls
// back every allocation if any stage fails. Chains are handed to a
// Dispatcher, which owns them from the moment DispatchSend succeeds.
// Inbound datagrams arrive as chains through a receive sink registered with
// the dispatcher; the sink owns the chain and must release it exactly once.
package transport
