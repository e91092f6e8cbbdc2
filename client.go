// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/luxfi/objrpc/toolkit"
)

// Transport carries whole frames in order in each direction. Send may be
// called from several goroutines; Recv from one at a time. A Recv
// interrupted by ctx leaves the transport unusable and it should be closed.
type Transport interface {
	io.Closer
	Send(ctx context.Context, frame []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

// Listener yields server-side transports.
type Listener interface {
	io.Closer
	Accept() (Transport, error)
	Addr() string
}

// remoteAddresser is implemented by transports that know their peer.
type remoteAddresser interface {
	RemoteAddr() string
}

func remoteOf(t Transport) string {
	if ra, ok := t.(remoteAddresser); ok {
		return ra.RemoteAddr()
	}
	return ""
}

// Journal records sessions and the calls made on them. See
// internal/journal for the SQLite implementation.
type Journal interface {
	OpenSession(id, remote string) error
	CloseSession(id string) error
	RecordCall(session, op, target string, elapsed time.Duration, err error) error
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	transport string
	log       *slog.Logger
}

func newDialOptions(opts []DialOption) *dialOptions {
	o := &dialOptions{transport: DefaultTransport, log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithLogger sets the connection logger
func WithLogger(l *slog.Logger) DialOption {
	return func(o *dialOptions) { o.log = l }
}

// ServerOption configures servers and listeners
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport string
	log       *slog.Logger
	journal   Journal
	toolkits  *toolkit.Registry
}

func newServerOptions(opts []ServerOption) *serverOptions {
	o := &serverOptions{transport: DefaultTransport, log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.toolkits == nil {
		o.toolkits = toolkit.NewRegistry()
	}
	return o
}

// WithServerTransport explicitly sets the transport type for Listen
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithServerLogger sets the server logger
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(o *serverOptions) { o.log = l }
}

// WithJournal records every session and call in j
func WithJournal(j Journal) ServerOption {
	return func(o *serverOptions) { o.journal = j }
}

// WithToolkits serves the toolkits in r
func WithToolkits(r *toolkit.Registry) ServerOption {
	return func(o *serverOptions) { o.toolkits = r }
}
