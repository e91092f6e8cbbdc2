// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package table

import (
	"context"
	"sync"
)

// Source produces a table on demand. Objects backed by a lazy dataflow graph
// return a Source from methods typed "table"; the dispatcher forces it before
// the result is encoded.
type Source interface {
	Materialize(ctx context.Context) (*Table, error)
}

// Materialize returns t itself.
func (t *Table) Materialize(context.Context) (*Table, error) { return t, nil }

// Lazy is a memoized Source. The producer runs until it completes once, and
// later callers observe the same table or error. A run cut short by its
// caller's context is not memoized; the next caller runs the producer again.
type Lazy struct {
	mu      sync.Mutex
	produce func(context.Context) (*Table, error)
	done    bool
	t       *Table
	err     error
}

// NewLazy wraps produce in a memoized node.
func NewLazy(produce func(context.Context) (*Table, error)) *Lazy {
	return &Lazy{produce: produce}
}

// Materialize forces the node. Concurrent callers block until the first
// caller's producer returns.
func (l *Lazy) Materialize(ctx context.Context) (*Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return l.t, l.err
	}
	t, err := l.produce(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	l.t, l.err, l.done = t, err, true
	l.produce = nil
	return t, err
}

// Forced reports whether the producer has run.
func (l *Lazy) Forced() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Map returns a Source applying fn to the table produced by src. The result
// is itself memoized.
func Map(src Source, fn func(*Table) (*Table, error)) *Lazy {
	return NewLazy(func(ctx context.Context) (*Table, error) {
		t, err := src.Materialize(ctx)
		if err != nil {
			return nil, err
		}
		return fn(t)
	})
}
