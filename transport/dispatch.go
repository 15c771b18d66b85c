package transport

import "errors"

// ErrNoReceiver indicates no receiver is registered to take a dispatched
// chain, or the transport has been closed.
var ErrNoReceiver = errors.New("transport: no receiver registered")

// ReceiveSink consumes one inbound chain. The sink takes ownership of the
// chain and must release it exactly once.
type ReceiveSink func(chain *Chain) error

// Dispatcher is the seam between the protocol server and the network stack.
//
// DispatchSend takes ownership of the chain on success; on error the caller
// still owns it. RegisterReceiver binds the sink that receives inbound
// datagrams for the given UDP port.
type Dispatcher interface {
	DispatchSend(chain *Chain) error
	RegisterReceiver(port uint16, sink ReceiveSink) error
	Close() error
}
