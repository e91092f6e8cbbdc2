// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fifo is an unbounded, synchronized FIFO queue.
package fifo

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// Queue is an unbounded FIFO with any number of writers and blocking
// readers. It must be created with New.
type Queue[T any] struct {
	mu      sync.Mutex
	d       deque.Deque[T]
	closing bool

	// ready holds a token while the queue is non-empty or closing.
	ready chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Push appends elem. It reports false once the queue is closed.
func (q *Queue[T]) Push(elem T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closing {
		return false
	}
	q.d.PushBack(elem)
	q.signal()
	return true
}

// Pop removes the oldest element, waiting until one is available. It
// reports false when the queue is closed and drained, or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool) {
	for {
		q.mu.Lock()
		if q.d.Len() > 0 {
			elem := q.d.PopFront()
			if q.d.Len() > 0 || q.closing {
				q.signal()
			}
			q.mu.Unlock()
			return elem, true
		}
		if q.closing {
			q.signal()
			q.mu.Unlock()
			var zero T
			return zero, false
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Consume calls fn for every element in order until the queue is closed
// and drained or ctx is done.
func (q *Queue[T]) Consume(ctx context.Context, fn func(T)) {
	for {
		elem, ok := q.Pop(ctx)
		if !ok {
			return
		}
		fn(elem)
	}
}

// Close stops further writes. Elements already queued are still delivered.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closing = true
	q.signal()
}

// Drop closes the queue and discards what is buffered. It returns the
// number of discarded elements.
func (q *Queue[T]) Drop() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closing = true
	n := q.d.Len()
	q.d.Clear()
	q.signal()
	return n
}

// Len returns the number of buffered elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.d.Len()
}
