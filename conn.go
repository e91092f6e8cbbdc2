// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/luxfi/objrpc/iface"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
	"github.com/luxfi/objrpc/toolkit"
)

// ErrConnClosed is the cause recorded when Close is called.
var ErrConnClosed = errors.New("connection closed")

// Conn is the client end of a connection. It implements iface.Invoker and
// is safe for concurrent use. Once the transport fails or Close is called,
// every pending and future call fails with ConnectionLost.
type Conn struct {
	t   Transport
	log *slog.Logger

	// ctx lives as long as the connection and bounds transport I/O.
	ctx    context.Context
	cancel context.CancelFunc

	nextID atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]chan frame
	late    map[uint32]func(frame) // replies to requests the caller gave up on
	err     error

	done chan struct{}
	once sync.Once
}

var _ iface.Invoker = (*Conn)(nil)

// NewConn starts a client on t. The Conn owns t.
func NewConn(t Transport, opts ...DialOption) *Conn {
	o := newDialOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		t:       t,
		log:     o.log,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uint32]chan frame),
		late:    make(map[uint32]func(frame)),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	for {
		b, err := c.t.Recv(c.ctx)
		if err != nil {
			c.terminate(err)
			return
		}
		f, err := parseFrame(b)
		if err != nil {
			c.log.Warn("dropping malformed frame", "error", err)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[f.id]
		delete(c.pending, f.id)
		hook := c.late[f.id]
		delete(c.late, f.id)
		c.mu.Unlock()
		switch {
		case ok:
			ch <- f
		case hook != nil:
			// Hooks send requests of their own, whose replies this loop
			// must stay free to deliver.
			go hook(f)
		}
	}
}

func (c *Conn) terminate(cause error) {
	c.once.Do(func() {
		c.mu.Lock()
		if errors.Is(cause, ErrConnClosed) {
			c.err = objerr.New(objerr.ConnectionLost, "connection closed")
		} else {
			c.err = objerr.New(objerr.ConnectionLost, "connection lost: %v", cause)
		}
		c.pending = nil
		c.late = nil
		c.mu.Unlock()
		close(c.done)
		c.cancel()
		_ = c.t.Close()
		if !errors.Is(cause, ErrConnClosed) {
			c.log.Debug("connection terminated", "cause", cause)
		}
	})
}

// Close terminates the connection. The server reclaims every instance
// created on it.
func (c *Conn) Close() error {
	c.terminate(ErrConnClosed)
	return nil
}

// Done is closed when the connection has terminated.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the ConnectionLost error once the connection has terminated.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// roundTrip sends the frame built for a fresh request id and waits for the
// answer of type want. The request is sent even if ctx is already done. If
// ctx ends before the answer arrives, late (when set) receives the answer
// instead, so requests that create server references can undo them.
func (c *Conn) roundTrip(ctx context.Context, want MessageType, late func(frame), build func(id uint32) ([]byte, error)) (frame, error) {
	id := c.nextID.Add(1)
	msg, err := build(id)
	if err != nil {
		return frame{}, err
	}

	ch := make(chan frame, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return frame{}, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.t.Send(c.ctx, msg); err != nil {
		c.terminate(err)
		return frame{}, c.Err()
	}

	select {
	case f := <-ch:
		switch f.typ {
		case want:
			return f, nil
		case MsgError:
			remote, err := decodeError(f.payload)
			if err != nil {
				return frame{}, err
			}
			return frame{}, remote
		default:
			return frame{}, objerr.New(objerr.DecodeError, "expected %s response, got %s", want, f.typ)
		}
	case <-ctx.Done():
		c.abandon(id, ch, late)
		return frame{}, ctx.Err()
	case <-c.done:
		return frame{}, c.Err()
	}
}

// abandon stops waiting for request id and hands its answer to late.
func (c *Conn) abandon(id uint32, ch chan frame, late func(frame)) {
	c.mu.Lock()
	if c.err != nil {
		// Terminated: the server reclaims everything on its side.
		c.mu.Unlock()
		return
	}
	_, waiting := c.pending[id]
	if waiting {
		delete(c.pending, id)
		if late != nil {
			c.late[id] = late
		}
	}
	c.mu.Unlock()
	if !waiting && late != nil {
		// The read loop has already claimed the answer and is delivering it.
		go late(<-ch)
	}
}

// dropLater releases id on the server once the caller has nobody left to
// hand the reference to.
func (c *Conn) dropLater(id uint64) {
	if err := c.Release(c.ctx, id); err != nil {
		c.log.Debug("releasing abandoned instance failed", "instance", id, "error", err)
	}
}

// Construct creates an instance of typeName on the server.
func (c *Conn) Construct(ctx context.Context, typeName string) (uint64, uint64, error) {
	f, err := c.roundTrip(ctx, MsgConstructed, c.lateConstructed, func(id uint32) ([]byte, error) {
		return encodeConstruct(id, typeName), nil
	})
	if err != nil {
		return 0, 0, err
	}
	return decodeConstructed(f.payload)
}

// Invoke calls method on instance id.
func (c *Conn) Invoke(ctx context.Context, id uint64, method uint32, args []params.Variant) (params.Variant, error) {
	f, err := c.roundTrip(ctx, MsgResult, c.lateResult, func(rid uint32) ([]byte, error) {
		return encodeInvoke(rid, invokeRequest{instance: id, method: method, args: args})
	})
	if err != nil {
		return params.Variant{}, err
	}
	return c.result(f)
}

// Retain adds a reference to instance id. If ctx ends before the server
// answers, a successful retain is released again.
func (c *Conn) Retain(ctx context.Context, id uint64) error {
	return c.refOp(ctx, MsgRetain, id, func(f frame) {
		if f.typ != MsgResult {
			return
		}
		if _, remote, err := decodeResult(f.payload); err == nil && remote == nil {
			c.dropLater(id)
		}
	})
}

// Release drops a reference to instance id. The request reaches the server
// even when ctx is already done; only the wait for its answer is cut short.
func (c *Conn) Release(ctx context.Context, id uint64) error {
	return c.refOp(ctx, MsgRelease, id, nil)
}

func (c *Conn) refOp(ctx context.Context, t MessageType, id uint64, late func(frame)) error {
	f, err := c.roundTrip(ctx, MsgResult, late, func(rid uint32) ([]byte, error) {
		return encodeInstance(t, rid, id), nil
	})
	if err != nil {
		return err
	}
	_, err = c.result(f)
	return err
}

func (c *Conn) lateConstructed(f frame) {
	if f.typ != MsgConstructed {
		return
	}
	if id, _, err := decodeConstructed(f.payload); err == nil {
		c.dropLater(id)
	}
}

// lateResult releases an instance handle returned by an abandoned invoke.
func (c *Conn) lateResult(f frame) {
	if f.typ != MsgResult {
		return
	}
	v, remote, err := decodeResult(f.payload)
	if err != nil || remote != nil {
		return
	}
	if h, err := v.Handle(); err == nil {
		c.dropLater(h.ID)
	}
}

func (c *Conn) result(f frame) (params.Variant, error) {
	v, remote, err := decodeResult(f.payload)
	switch {
	case err != nil:
		return params.Variant{}, err
	case remote != nil:
		return params.Variant{}, remote
	}
	return v, nil
}

// Run executes a server toolkit. Failures inside the toolkit are reported
// in the Response; the error is for UnknownToolkit and connection failures.
func (c *Conn) Run(ctx context.Context, name string, in *params.Bag) (toolkit.Response, error) {
	f, err := c.roundTrip(ctx, MsgRunResult, nil, func(id uint32) ([]byte, error) {
		return encodeRun(id, runRequest{name: name, in: in})
	})
	if err != nil {
		return toolkit.Response{}, err
	}
	res, err := decodeRunResult(f.payload)
	if err != nil {
		return toolkit.Response{}, err
	}
	return toolkit.Response{Params: res.out, Success: res.success, Message: res.message}, nil
}

// NewProxy constructs a remote instance of desc on c.
func (c *Conn) NewProxy(ctx context.Context, desc *iface.Descriptor) (*iface.Proxy, error) {
	return iface.NewProxy(ctx, c, desc)
}
