// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/peer"
)

// ErrStreamClosed is returned by a closed gRPC transport.
var ErrStreamClosed = errors.New("grpc: stream closed")

const exchangeMethod = "/objrpc.Connection/Exchange"

func init() {
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// exchanger is the service implementation type for exchangeDesc.
type exchanger interface {
	exchange(stream grpc.ServerStream) error
}

var exchangeDesc = grpc.ServiceDesc{
	ServiceName: "objrpc.Connection",
	HandlerType: (*exchanger)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Exchange",
		Handler:       exchangeHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "objrpc",
}

func exchangeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(exchanger).exchange(stream)
}

// msgStream is what client and server streams have in common.
type msgStream interface {
	SendMsg(m any) error
	RecvMsg(m any) error
	Context() context.Context
}

// grpcStream adapts one Exchange stream to Transport.
type grpcStream struct {
	stream  msgStream
	sendMu  sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
	onClose func()
}

func newGRPCStream(s msgStream, onClose func()) *grpcStream {
	return &grpcStream{stream: s, done: make(chan struct{}), onClose: onClose}
}

func (g *grpcStream) Send(ctx context.Context, frame []byte) error {
	if g.closed.Load() {
		return ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	if err := g.stream.SendMsg(&frame); err != nil {
		return g.streamErr(err)
	}
	return nil
}

func (g *grpcStream) Recv(ctx context.Context) ([]byte, error) {
	if g.closed.Load() {
		return nil, ErrStreamClosed
	}
	stop := context.AfterFunc(ctx, func() { g.Close() })
	defer stop()
	var frame []byte
	if err := g.stream.RecvMsg(&frame); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, g.streamErr(err)
	}
	return frame, nil
}

func (g *grpcStream) streamErr(err error) error {
	if g.closed.Load() || errors.Is(err, io.EOF) || g.stream.Context().Err() != nil {
		return ErrStreamClosed
	}
	return fmt.Errorf("grpc stream: %w", err)
}

func (g *grpcStream) RemoteAddr() string {
	if p, ok := peer.FromContext(g.stream.Context()); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

func (g *grpcStream) Close() error {
	if g.closed.Swap(true) {
		return nil
	}
	close(g.done)
	if g.onClose != nil {
		g.onClose()
	}
	return nil
}

// GRPCListener serves the Exchange stream and yields one Transport per
// client stream.
type GRPCListener struct {
	srv      *grpc.Server
	listener net.Listener
	streams  chan *grpcStream
	done     chan struct{}
	once     sync.Once
}

// NewGRPCListener serves Exchange on l.
func NewGRPCListener(l net.Listener) *GRPCListener {
	gl := &GRPCListener{
		srv:      grpc.NewServer(grpc.ForceServerCodec(frameCodec{})),
		listener: l,
		streams:  make(chan *grpcStream),
		done:     make(chan struct{}),
	}
	gl.srv.RegisterService(&exchangeDesc, gl)
	go func() { _ = gl.srv.Serve(l) }()
	return gl
}

// exchange hands the stream to Accept and holds it open until the
// transport is closed or the client goes away.
func (gl *GRPCListener) exchange(stream grpc.ServerStream) error {
	st := newGRPCStream(stream, nil)
	select {
	case gl.streams <- st:
	case <-gl.done:
		return ErrListenerClosed
	case <-stream.Context().Done():
		return stream.Context().Err()
	}
	select {
	case <-st.done:
	case <-stream.Context().Done():
		st.Close()
	}
	return nil
}

func (gl *GRPCListener) Accept() (Transport, error) {
	select {
	case st := <-gl.streams:
		return st, nil
	case <-gl.done:
		return nil, ErrListenerClosed
	}
}

// Close stops the gRPC server and every stream it carries.
func (gl *GRPCListener) Close() error {
	gl.once.Do(func() {
		close(gl.done)
		gl.srv.Stop()
	})
	return nil
}

func (gl *GRPCListener) Addr() string {
	return gl.listener.Addr().String()
}

// GRPCDial opens an Exchange stream to addr.
func GRPCDial(ctx context.Context, addr string) (Transport, error) {
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(frameCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	// The stream outlives ctx, which only bounds establishing it.
	sctx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	cs, err := cc.NewStream(sctx, &exchangeDesc.Streams[0], exchangeMethod)
	if !stop() {
		err = errors.Join(err, ctx.Err())
	}
	if err != nil {
		cancel()
		cc.Close()
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return newGRPCStream(cs, func() {
		_ = cs.CloseSend()
		cancel()
		cc.Close()
	}), nil
}

func dialGRPC(ctx context.Context, addr string, _ *dialOptions) (Transport, error) {
	return GRPCDial(ctx, addr)
}

func listenGRPC(addr string, _ *serverOptions) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}
	return NewGRPCListener(l), nil
}
