// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

//go:generate go run ../../cmd/objrpc gen -p demo -o demo_gen.go demo.cue

// Package demo is the example object model served by `objrpc serve`: a
// per-connection counter, a reentrant globals singleton and a few
// toolkits.
package demo

import (
	"context"
	"sync/atomic"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
	"github.com/luxfi/objrpc/registry"
)

// Stats counts counter lifetimes.
type Stats struct {
	Created   atomic.Int64
	Destroyed atomic.Int64
}

// Live is the number of counters not yet destroyed.
func (s *Stats) Live() int64 { return s.Created.Load() - s.Destroyed.Load() }

// Counter is an integer accumulator.
type Counter struct {
	n      atomic.Int64
	stats  *Stats
	closed atomic.Bool
}

var _ CounterBase = (*Counter)(nil)

// NewCounter returns a zeroed counter. stats may be nil.
func NewCounter(stats *Stats) *Counter {
	if stats != nil {
		stats.Created.Add(1)
	}
	return &Counter{stats: stats}
}

func (c *Counter) Get(context.Context) (int64, error) { return c.n.Load(), nil }

func (c *Counter) Increment(_ context.Context, by int64) error {
	c.n.Add(by)
	return nil
}

func (c *Counter) Reset(context.Context) error {
	c.n.Store(0)
	return nil
}

// Snapshot returns a new counter holding the current value, owned by the
// caller's session.
func (c *Counter) Snapshot(ctx context.Context) (params.Handle, error) {
	s, ok := registry.FromContext(ctx)
	if !ok {
		return params.Handle{}, objerr.New(objerr.ConfigurationError, "snapshot outside a session")
	}
	cp := NewCounter(c.stats)
	cp.n.Store(c.n.Load())
	h, err := s.Adopt(CounterDescriptor.Name(), cp)
	if err != nil {
		_ = cp.Close()
		return params.Handle{}, err
	}
	return h, nil
}

// AddFrom adds the value of another counter in the same session.
func (c *Counter) AddFrom(ctx context.Context, h params.Handle) error {
	s, ok := registry.FromContext(ctx)
	if !ok {
		return objerr.New(objerr.ConfigurationError, "add_from outside a session")
	}
	obj, err := s.Resolve(h)
	if err != nil {
		return err
	}
	other, ok := obj.(*Counter)
	if !ok {
		return objerr.New(objerr.TypeMismatch, "%s is not a counter", h)
	}
	c.n.Add(other.n.Load())
	return nil
}

// Close records the destruction. Repeated calls are no-ops.
func (c *Counter) Close() error {
	if c.closed.CompareAndSwap(false, true) && c.stats != nil {
		c.stats.Destroyed.Add(1)
	}
	return nil
}
