package aodvv2

import "errors"

var (
	// ErrNotRunning indicates a submission was attempted before Init or
	// after Close.
	ErrNotRunning = errors.New("aodvv2: server is not running")

	// ErrAddressResolution indicates the local interface address could not
	// be obtained during Init. The server stays uninitialized and Init may
	// be retried.
	ErrAddressResolution = errors.New("aodvv2: cannot resolve local address")

	// ErrNotSupported is the reply to option negotiation requests, which
	// this server does not implement.
	ErrNotSupported = errors.New("aodvv2: option not supported")

	// ErrCodec indicates the wire codec rejected an outbound message or an
	// inbound datagram.
	ErrCodec = errors.New("aodvv2: codec failure")

	// ErrTransportUnavailable indicates no transport receiver accepted an
	// outbound datagram.
	ErrTransportUnavailable = errors.New("aodvv2: transport unavailable")
)
