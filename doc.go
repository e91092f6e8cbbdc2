// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package objrpc lets a dynamically typed client drive objects that live in
// a Go server process.
//
// A type is described once as an iface.Descriptor. The server registers a
// Go type implementing it in a registry.Registry; the client talks to
// instances through an iface.Proxy, usually wrapped by code generated with
// iface.Generate. Values cross the connection as params.Variant: a
// flex.Value, a table.Table, an instance handle or an opaque result.
//
// # Transport Selection
//
// ZAP, length-prefixed frames over TCP, is the default transport. gRPC
// carries the same frames over one bidirectional stream:
//
//	conn, err := objrpc.Dial(ctx, addr, objrpc.WithTransport(objrpc.TransportGRPC))
//
// Pipe returns an in-memory pair for tests and embedding.
//
// # Usage
//
// Server:
//
//	reg := registry.New()
//	registry.MustRegister(reg, demo.CounterDescriptor, func() *demo.Counter {
//	    return demo.NewCounter(nil)
//	})
//	srv := objrpc.NewServer(reg, objrpc.WithToolkits(tk))
//	l, err := objrpc.Listen(":9000")
//	if err != nil {
//	    return err
//	}
//	go srv.Serve(ctx, l)
//
// Client:
//
//	conn, err := objrpc.Dial(ctx, "localhost:9000")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	counter, err := demo.NewCounterProxy(ctx, conn)
//	err = counter.Increment(ctx, 5)
//	n, err := counter.Get(ctx)
//
// Toolkits, named functions over a params.Bag, are reachable through
// Conn.Run and through the JSON-RPC 2.0 gateway returned by NewGateway.
//
// # Lifetimes
//
// Every connection owns its instances. Closing it, from either side,
// destroys each of them exactly once and fails every pending call with
// objerr.ConnectionLost.
//
// # Architecture
//
//   - client.go: Transport, Listener and option types
//   - transport.go: transport registry
//   - frame.go: message framing and payload codecs
//   - zap.go, grpc.go, codec.go: transports
//   - conn.go: client connection
//   - server.go: server, per-connection queue and dispatch
//   - gateway.go, json.go, options.go: JSON-RPC toolkit gateway and client
package objrpc
