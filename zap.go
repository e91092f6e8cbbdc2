// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// MaxFrameSize bounds a single frame body.
const MaxFrameSize = 64 * 1024 * 1024

var (
	ErrZAPClosed     = errors.New("zap: connection closed")
	ErrFrameTooLarge = errors.New("zap: frame too large")
	ErrEmptyFrame    = errors.New("zap: empty frame")
)

func init() {
	registerTransport(TransportZAP, dialZAP, listenZAP)
}

// ZAPConn frames a byte stream as [4 len BE][body].
type ZAPConn struct {
	conn    net.Conn
	writeMu sync.Mutex
	readMu  sync.Mutex
	header  [4]byte
	closed  atomic.Bool
}

// NewZAPConn wraps conn. The ZAPConn owns conn from then on.
func NewZAPConn(conn net.Conn) *ZAPConn {
	return &ZAPConn{conn: conn}
}

// ZAPDial connects to a ZAP server
func ZAPDial(ctx context.Context, addr string) (*ZAPConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("zap dial: %w", err)
	}
	return NewZAPConn(conn), nil
}

// Pipe returns the two ends of an in-memory ZAP connection.
func Pipe() (*ZAPConn, *ZAPConn) {
	a, b := net.Pipe()
	return NewZAPConn(a), NewZAPConn(b)
}

// Send writes one frame.
func (z *ZAPConn) Send(ctx context.Context, frame []byte) error {
	if z.closed.Load() {
		return ErrZAPClosed
	}
	switch {
	case len(frame) == 0:
		return ErrEmptyFrame
	case len(frame) > MaxFrameSize:
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
	bufs := net.Buffers{header[:], frame}

	z.writeMu.Lock()
	_, err := bufs.WriteTo(z.conn)
	z.writeMu.Unlock()
	if err != nil {
		if z.closed.Load() {
			return ErrZAPClosed
		}
		return fmt.Errorf("zap write: %w", err)
	}
	return nil
}

// Recv reads one frame.
func (z *ZAPConn) Recv(ctx context.Context) ([]byte, error) {
	z.readMu.Lock()
	defer z.readMu.Unlock()
	if z.closed.Load() {
		return nil, ErrZAPClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = z.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if _, err := io.ReadFull(z.conn, z.header[:]); err != nil {
		return nil, z.readErr(ctx, err)
	}
	n := binary.BigEndian.Uint32(z.header[:])
	switch {
	case n == 0:
		return nil, ErrEmptyFrame
	case n > MaxFrameSize:
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(z.conn, msg); err != nil {
		return nil, z.readErr(ctx, err)
	}
	return msg, nil
}

func (z *ZAPConn) readErr(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case z.closed.Load(), errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return ErrZAPClosed
	}
	return fmt.Errorf("zap read: %w", err)
}

// RemoteAddr returns the peer address.
func (z *ZAPConn) RemoteAddr() string {
	if a := z.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Close closes the connection
func (z *ZAPConn) Close() error {
	if z.closed.Swap(true) {
		return nil
	}
	return z.conn.Close()
}

// ZAPListener accepts ZAP connections on a TCP listener.
type ZAPListener struct {
	listener net.Listener
	closed   atomic.Bool
}

// NewZAPListener wraps l.
func NewZAPListener(l net.Listener) *ZAPListener {
	return &ZAPListener{listener: l}
}

func (l *ZAPListener) Accept() (Transport, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if l.closed.Load() {
			return nil, ErrListenerClosed
		}
		return nil, err
	}
	return NewZAPConn(conn), nil
}

// Close closes the listener
func (l *ZAPListener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	return l.listener.Close()
}

// Addr returns the listener address
func (l *ZAPListener) Addr() string {
	return l.listener.Addr().String()
}

func dialZAP(ctx context.Context, addr string, _ *dialOptions) (Transport, error) {
	return ZAPDial(ctx, addr)
}

func listenZAP(addr string, _ *serverOptions) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("zap listen: %w", err)
	}
	return NewZAPListener(l), nil
}
