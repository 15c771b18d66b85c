// Package rfc5444 implements a generic TLV-based wire codec for routing
// protocol messages.
//
// The codec is split into a Writer, which materializes registered message
// types into packet buffers and flushes them through per-target send
// callbacks, and a Reader, which parses inbound packets and dispatches each
// message to a handler registered for its type.
//
// Neither the Writer nor the Reader is safe for concurrent use. Callers are
// expected to serialize access, typically behind dedicated writer and reader
// locks.
//
// Example:
//
//	w := rfc5444.NewWriter(128, 1000)
//	target := rfc5444.NewTarget(128, sendFunc)
//	w.RegisterTarget(target)
//	w.RegisterMessage(msgType, encoder)
//
//	if err := w.CreateMessage(msgType); err != nil {
//	    return err
//	}
//	if err := w.Flush(target); err != nil {
//	    return err
//	}
package rfc5444
