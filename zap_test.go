// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestZAPPipeRoundTrip(t *testing.T) {
	ctx := testContext(t)
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	go func() { _ = a.Send(ctx, []byte("hello world")) }()
	got, err := b.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestZAPTCP(t *testing.T) {
	ctx := testContext(t)
	l, err := listenZAP("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan Transport, 1)
	go func() {
		srv, err := l.Accept()
		if err == nil {
			accepted <- srv
		}
	}()

	client, err := ZAPDial(ctx, l.Addr())
	require.NoError(t, err)
	defer client.Close()
	srv := <-accepted
	defer srv.Close()
	assert.NotEmpty(t, remoteOf(srv))

	require.NoError(t, client.Send(ctx, []byte("ping")))
	got, err := srv.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))

	require.NoError(t, srv.Send(ctx, []byte("pong")))
	got, err = client.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(got))
}

func TestZAPConcurrentSendersKeepFramesWhole(t *testing.T) {
	ctx := testContext(t)
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	const writers, each = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				assert.NoError(t, a.Send(ctx, []byte(fmt.Sprintf("w%d-%03d", w, i))))
			}
		}()
	}

	last := make(map[byte]int)
	for n := 0; n < writers*each; n++ {
		msg, err := b.Recv(ctx)
		require.NoError(t, err)
		require.Len(t, msg, 6)
		var i int
		_, err = fmt.Sscanf(string(msg[3:]), "%03d", &i)
		require.NoError(t, err)
		if prev, ok := last[msg[1]]; ok {
			assert.Equal(t, prev+1, i, "writer %c out of order", msg[1])
		}
		last[msg[1]] = i
	}
	wg.Wait()
}

func TestZAPSendRejectsEmptyFrame(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()
	assert.ErrorIs(t, a.Send(context.Background(), nil), ErrEmptyFrame)
}

func TestZAPRecvRejectsBadLength(t *testing.T) {
	for name, n := range map[string]uint32{"empty": 0, "oversize": MaxFrameSize + 1} {
		t.Run(name, func(t *testing.T) {
			raw, peer := net.Pipe()
			z := NewZAPConn(peer)
			defer raw.Close()
			defer z.Close()

			go func() {
				var hdr [4]byte
				binary.BigEndian.PutUint32(hdr[:], n)
				_, _ = raw.Write(hdr[:])
			}()
			_, err := z.Recv(testContext(t))
			if n == 0 {
				assert.ErrorIs(t, err, ErrEmptyFrame)
			} else {
				assert.ErrorIs(t, err, ErrFrameTooLarge)
			}
		})
	}
}

func TestZAPRecvHonorsContext(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestZAPClose(t *testing.T) {
	ctx := testContext(t)
	a, b := Pipe()
	defer b.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := b.Recv(ctx)
		errc <- err
	}()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, <-errc, ErrZAPClosed)

	assert.ErrorIs(t, a.Send(ctx, []byte("x")), ErrZAPClosed)
	_, err := a.Recv(ctx)
	assert.ErrorIs(t, err, ErrZAPClosed)
}

func TestZAPListenerClose(t *testing.T) {
	l, err := listenZAP("127.0.0.1:0", nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	_, err = l.Accept()
	assert.ErrorIs(t, err, ErrListenerClosed)
}

func TestTransports(t *testing.T) {
	assert.Equal(t, []string{TransportGRPC, TransportZAP}, AvailableTransports())
	assert.True(t, HasTransport(DefaultTransport))
	assert.False(t, HasTransport("carrier-pigeon"))

	_, err := Dial(context.Background(), "127.0.0.1:1", WithTransport("carrier-pigeon"))
	assert.ErrorContains(t, err, "unknown transport")
}
