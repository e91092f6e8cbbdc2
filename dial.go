// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"errors"
	"fmt"
)

// ErrListenerClosed is returned by Accept after Close.
var ErrListenerClosed = errors.New("objrpc: listener closed")

// Dial connects to a server using the default transport (ZAP).
// WithTransport selects another registered transport.
func Dial(ctx context.Context, addr string, opts ...DialOption) (*Conn, error) {
	o := newDialOptions(opts)
	e, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	t, err := e.dial(ctx, addr, o)
	if err != nil {
		return nil, err
	}
	return NewConn(t, opts...), nil
}

// Listen creates a listener using the default transport (ZAP).
// WithServerTransport selects another registered transport.
func Listen(addr string, opts ...ServerOption) (Listener, error) {
	o := newServerOptions(opts)
	e, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return e.listen(addr, o)
}

// ListenAndServe listens on addr and serves s until ctx is done.
func ListenAndServe(ctx context.Context, s *Server, addr string, opts ...ServerOption) error {
	l, err := Listen(addr, opts...)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
