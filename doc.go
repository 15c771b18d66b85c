// Package aodvv2 implements the protocol server for an AODVv2-style ad-hoc
// routing protocol: it bridges route request and route reply data to a
// TLV-based wire codec and moves the resulting datagrams over UDP/IPv6.
//
// All codec access and all transport work is serialized behind a single
// protocol worker with a bounded mailbox. The public API enqueues work into
// that mailbox; the richer routing logic (request tables, sequence numbers,
// metrics) hangs off the server as narrow collaborators.
//
// # Getting Started
//
// Create a server with a transport dispatcher, bind it to an interface, and
// register a callback for decoded route messages:
//
//	alloc := transport.NewHeapAllocator()
//	dispatcher, err := transport.NewUDPDispatcher(aodvv2.DefaultPort, alloc)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	server, err := aodvv2.NewServer(aodvv2.DefaultConfig(), dispatcher)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ifc, err := aodvv2.InterfaceByName("wlan0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := server.Init(ifc); err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//
//	server.OnRouteMessage(func(t rfc5444.MsgType, pkt *aodvv2.PacketData) {
//	    fmt.Printf("route message %d from %s\n", t, pkt.Sender)
//	})
//
//	// Start discovery for a destination.
//	if err := server.FindRoute(target); err != nil {
//	    log.Fatal(err)
//	}
package aodvv2
