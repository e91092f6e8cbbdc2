// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package iface

import (
	"context"
	"sync/atomic"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
)

// Invoker is the client side of a connection as seen by a Proxy.
type Invoker interface {
	// Construct asks the server to create an instance of typeName and
	// returns its id and the server's descriptor fingerprint.
	Construct(ctx context.Context, typeName string) (id uint64, fingerprint uint64, err error)
	Invoke(ctx context.Context, id uint64, method uint32, args []params.Variant) (params.Variant, error)
	Retain(ctx context.Context, id uint64) error
	Release(ctx context.Context, id uint64) error
}

// Proxy stands in for one reference to a remote instance. Calls are
// forwarded by method index; arguments are converted and checked locally
// against the descriptor before anything is sent.
type Proxy struct {
	inv      Invoker
	desc     *Descriptor
	handle   params.Handle
	released atomic.Bool
}

// NewProxy constructs a remote instance of desc.Name(). If the server's
// descriptor differs from desc the instance is released again and a
// ConfigurationError is returned.
func NewProxy(ctx context.Context, inv Invoker, desc *Descriptor) (*Proxy, error) {
	id, fp, err := inv.Construct(ctx, desc.Name())
	if err != nil {
		return nil, err
	}
	if fp != desc.Fingerprint() {
		_ = inv.Release(ctx, id)
		return nil, objerr.New(objerr.ConfigurationError,
			"%s: descriptor fingerprint mismatch: local %016x, remote %016x", desc.Name(), desc.Fingerprint(), fp)
	}
	return &Proxy{inv: inv, desc: desc, handle: params.Handle{TypeName: desc.Name(), ID: id}}, nil
}

// Attach wraps a handle the caller already holds a reference to, such as
// one returned by another remote call. The Proxy takes over that reference.
func Attach(inv Invoker, desc *Descriptor, h params.Handle) (*Proxy, error) {
	if h.TypeName != desc.Name() {
		return nil, objerr.New(objerr.TypeMismatch, "handle %s is not a %s", h, desc.Name())
	}
	return &Proxy{inv: inv, desc: desc, handle: h}, nil
}

func (p *Proxy) Handle() params.Handle { return p.handle }

func (p *Proxy) Descriptor() *Descriptor { return p.desc }

// Invoke calls method index with args converted per the descriptor. The
// result of a void method is the zero Variant. Errors raised on the server
// come back with their original kind and message.
func (p *Proxy) Invoke(ctx context.Context, index int, args ...any) (params.Variant, error) {
	if p.released.Load() {
		return params.Variant{}, objerr.New(objerr.UnknownInstance, "%s has been released", p.handle)
	}
	m, err := p.desc.Method(index)
	if err != nil {
		return params.Variant{}, err
	}
	if len(args) != len(m.Args) {
		return params.Variant{}, objerr.New(objerr.TypeMismatch,
			"%s.%s: expected %d arguments, got %d", p.desc.Name(), m.Name, len(m.Args), len(args))
	}
	vs := make([]params.Variant, len(args))
	for i, a := range args {
		v, err := params.From(a)
		if err == nil {
			v, err = Coerce(m.Args[i], v)
		}
		if err != nil {
			return params.Variant{}, objerr.New(objerr.TypeMismatch,
				"%s.%s: argument %d: %v", p.desc.Name(), m.Name, i, err)
		}
		vs[i] = v
	}
	res, err := p.inv.Invoke(ctx, p.handle.ID, uint32(index), vs)
	if err != nil {
		return params.Variant{}, err
	}
	if m.Returns == Void {
		return params.Variant{}, nil
	}
	if !m.Returns.Accepts(res) {
		return params.Variant{}, objerr.New(objerr.TypeMismatch,
			"%s.%s: expected %s result, got %s", p.desc.Name(), m.Name, m.Returns, res.TypeName())
	}
	return res, nil
}

// Call is Invoke by method name.
func (p *Proxy) Call(ctx context.Context, name string, args ...any) (params.Variant, error) {
	i, ok := p.desc.Index(name)
	if !ok {
		return params.Variant{}, objerr.New(objerr.MethodIndexOutOfRange, "%s has no method %q", p.desc.Name(), name)
	}
	return p.Invoke(ctx, i, args...)
}

// Retain takes another reference to the same instance and returns it as a
// separate Proxy.
func (p *Proxy) Retain(ctx context.Context) (*Proxy, error) {
	if p.released.Load() {
		return nil, objerr.New(objerr.UnknownInstance, "%s has been released", p.handle)
	}
	if err := p.inv.Retain(ctx, p.handle.ID); err != nil {
		return nil, err
	}
	return &Proxy{inv: p.inv, desc: p.desc, handle: p.handle}, nil
}

// Release drops this Proxy's reference. Only the first call has an effect.
func (p *Proxy) Release(ctx context.Context) error {
	if !p.released.CompareAndSwap(false, true) {
		return nil
	}
	return p.inv.Release(ctx, p.handle.ID)
}

// Released reports whether Release has been called.
func (p *Proxy) Released() bool { return p.released.Load() }
