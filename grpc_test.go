// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/internal/demo"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
)

func TestGRPCTransportFrames(t *testing.T) {
	ctx := testContext(t)
	l, err := listenGRPC("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan Transport, 1)
	go func() {
		st, err := l.Accept()
		if err == nil {
			accepted <- st
		}
	}()

	client, err := GRPCDial(ctx, l.Addr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(ctx, []byte("ping")))
	srv := <-accepted
	got, err := srv.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))
	assert.NotEmpty(t, remoteOf(srv))

	require.NoError(t, srv.Send(ctx, []byte("pong")))
	got, err = client.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(got))

	require.NoError(t, srv.Close())
	_, err = client.Recv(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.ErrorIs(t, srv.Send(ctx, []byte("late")), ErrStreamClosed)
}

func TestGRPCEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()
	srv, stats := newDemoServer(t)
	defer srv.Close()

	l, err := Listen("127.0.0.1:0", WithServerTransport(TransportGRPC))
	require.NoError(t, err)
	go func() { _ = srv.Serve(ctx, l) }()

	conn, err := Dial(ctx, l.Addr(), WithTransport(TransportGRPC), WithLogger(quiet))
	require.NoError(t, err)

	c, err := demo.NewCounterProxy(ctx, conn)
	require.NoError(t, err)
	require.NoError(t, c.Increment(ctx, 5))
	require.NoError(t, c.Increment(ctx, 2))
	n, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	resp, err := conn.Run(ctx, "demo_addone", params.NewBag().Set("x", params.MustFrom(1)))
	require.NoError(t, err)
	assert.True(t, resp.Success)

	_, err = conn.Invoke(ctx, 77, 0, nil)
	assert.True(t, objerr.Is(err, objerr.UnknownInstance))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return stats.Live() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), stats.Destroyed.Load())
}

func TestFrameCodec(t *testing.T) {
	var c frameCodec
	assert.Equal(t, "objrpc-frame", c.Name())

	src := []byte{1, 2, 3}
	b, err := c.Marshal(&src)
	require.NoError(t, err)
	assert.Equal(t, src, b)

	var dst []byte
	require.NoError(t, c.Unmarshal(b, &dst))
	assert.Equal(t, src, dst)
	b[0] = 9
	assert.Equal(t, byte(1), dst[0], "unmarshal copies")

	_, err = c.Marshal("nope")
	assert.Error(t, err)
	assert.Error(t, c.Unmarshal(b, new(string)))
}
