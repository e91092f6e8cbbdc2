// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fifo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBasic(t *testing.T) {
	ctx := context.Background()
	t.Run("order", func(t *testing.T) {
		q := New[string]()
		require.EqualValues(t, 0, q.Len())
		require.True(t, q.Push("one"))
		require.True(t, q.Push("two"))
		require.EqualValues(t, 2, q.Len())
		e, ok := q.Pop(ctx)
		require.True(t, ok)
		require.Equal(t, "one", e)
		e, ok = q.Pop(ctx)
		require.True(t, ok)
		require.Equal(t, "two", e)
		require.EqualValues(t, 0, q.Len())
	})
	t.Run("close drains", func(t *testing.T) {
		q := New[int]()
		for i := 0; i < 3; i++ {
			q.Push(i)
		}
		q.Close()
		require.False(t, q.Push(99))
		var got []int
		q.Consume(ctx, func(i int) { got = append(got, i) })
		require.Equal(t, []int{0, 1, 2}, got)
		_, ok := q.Pop(ctx)
		require.False(t, ok)
	})
	t.Run("drop discards", func(t *testing.T) {
		q := New[int]()
		q.Push(1)
		q.Push(2)
		require.Equal(t, 2, q.Drop())
		_, ok := q.Pop(ctx)
		require.False(t, ok)
		require.False(t, q.Push(3))
	})
	t.Run("many", func(t *testing.T) {
		q := New[int]()
		for i := 0; i < 10000; i++ {
			q.Push(i)
		}
		for i := 0; i < 10000; i++ {
			e, ok := q.Pop(ctx)
			require.True(t, ok)
			require.Equal(t, i, e)
		}
	})
}

func TestPopHonoursContext(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok := q.Pop(ctx)
	require.False(t, ok)
}

func TestPopWakesOnClose(t *testing.T) {
	q := New[int]()
	done := make(chan bool)
	go func() {
		_, ok := q.Pop(context.Background())
		done <- ok
	}()
	time.Sleep(5 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("reader not woken by Close")
	}
}

func TestConcurrentWriters(t *testing.T) {
	const writers, each = 8, 500
	q := New[int]()
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Push(w*each + i)
			}
		}(w)
	}

	seen := make(map[int]bool)
	last := make([]int, writers)
	for i := range last {
		last[i] = -1
	}
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		q.Consume(context.Background(), func(v int) {
			w, i := v/each, v%each
			require.Greater(t, i, last[w], "per-writer order")
			last[w] = i
			seen[v] = true
		})
	}()
	wg.Wait()
	q.Close()
	<-consumed
	require.Len(t, seen, writers*each)
}
