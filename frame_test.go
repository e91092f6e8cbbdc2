// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
)

func mustFrame(t *testing.T) func([]byte, error) []byte {
	return func(b []byte, err error) []byte {
		t.Helper()
		require.NoError(t, err)
		return b
	}
}

func TestFrameGolden(t *testing.T) {
	must := mustFrame(t)
	in := params.NewBag().Set("x", params.MustFrom(5))
	out := params.NewBag().Set("x", params.MustFrom(6))
	cases := map[string][]byte{
		"construct":   encodeConstruct(1, "counter"),
		"constructed": encodeConstructed(1, 1, 0x0102030405060708),
		"invoke": must(encodeInvoke(2, invokeRequest{
			instance: 1,
			method:   1,
			args:     []params.Variant{params.MustFrom(5)},
		})),
		"result_value": encodeResult(2, params.MustFrom(7), nil),
		"result_void":  encodeResult(3, params.Variant{}, nil),
		"result_error": encodeResult(4, params.Variant{}, objerr.New(objerr.UnknownInstance, "unknown instance 9")),
		"release":      encodeInstance(MsgRelease, 5, 1),
		"run":          must(encodeRun(6, runRequest{name: "demo_addone", in: in})),
		"run_result":   must(encodeRunResult(6, runResult{success: true, out: out})),
		"error":        encodeError(0, objerr.New(objerr.DecodeError, "bad frame")),
	}
	g := goldie.New(t)
	for name, b := range cases {
		g.Assert(t, "frame_"+name, []byte(hex.EncodeToString(b)+"\n"))
	}
}

func TestParseFrame(t *testing.T) {
	f, err := parseFrame(encodeConstruct(0xdeadbeef, "counter"))
	require.NoError(t, err)
	assert.Equal(t, MsgConstruct, f.typ)
	assert.Equal(t, uint32(0xdeadbeef), f.id)
	name, err := decodeConstruct(f.payload)
	require.NoError(t, err)
	assert.Equal(t, "counter", name)

	for _, b := range [][]byte{nil, {1}, {1, 0, 0, 0}} {
		_, err := parseFrame(b)
		assert.True(t, objerr.Is(err, objerr.DecodeError), "%x", b)
	}
}

func TestInvokeRoundTrip(t *testing.T) {
	tbl := sampleTable(t)
	req := invokeRequest{
		instance: 7,
		method:   3,
		args: []params.Variant{
			params.MustFrom("s"),
			params.TableOf(tbl),
			params.HandleOf(params.Handle{TypeName: "counter", ID: 2}),
			params.ValueOf(flex.NewVector([]float64{1, 2})),
		},
	}
	b, err := encodeInvoke(9, req)
	require.NoError(t, err)
	f, err := parseFrame(b)
	require.NoError(t, err)
	got, err := decodeInvoke(f.payload)
	require.NoError(t, err)
	assert.Equal(t, req.instance, got.instance)
	assert.Equal(t, req.method, got.method)
	require.Len(t, got.args, len(req.args))
	for i := range req.args {
		assert.True(t, req.args[i].Equal(got.args[i]), "argument %d", i)
	}
}

func TestInvokeDecodeErrors(t *testing.T) {
	b, err := encodeInvoke(1, invokeRequest{instance: 1, args: []params.Variant{params.MustFrom(1)}})
	require.NoError(t, err)
	payload := b[headerLen:]

	for n := 0; n < len(payload); n++ {
		_, err := decodeInvoke(payload[:n])
		assert.True(t, objerr.Is(err, objerr.DecodeError), "truncated at %d", n)
	}
	_, err = decodeInvoke(append(payload, 0))
	assert.True(t, objerr.Is(err, objerr.DecodeError), "trailing byte")

	// An argument count larger than the payload can hold.
	huge := append([]byte{}, payload[:12]...)
	huge = append(huge, 0xff, 0xff, 0xff, 0x7f)
	_, err = decodeInvoke(huge)
	assert.True(t, objerr.Is(err, objerr.DecodeError))
}

func TestResultRoundTrip(t *testing.T) {
	v, remote, err := decodeResult(encodeResult(1, params.MustFrom(7), nil)[headerLen:])
	require.NoError(t, err)
	assert.Nil(t, remote)
	assert.True(t, params.MustFrom(7).Equal(v))

	v, remote, err = decodeResult(encodeResult(1, params.Variant{}, nil)[headerLen:])
	require.NoError(t, err)
	assert.Nil(t, remote)
	assert.False(t, v.IsValid())

	_, remote, err = decodeResult(encodeResult(1, params.Variant{}, objerr.New(objerr.KeyNotFound, "k not found"))[headerLen:])
	require.NoError(t, err)
	require.NotNil(t, remote)
	assert.Equal(t, objerr.KeyNotFound, remote.Kind)
	assert.Equal(t, "k not found", remote.Msg)
}

func TestPlainErrorsTravelAsRemote(t *testing.T) {
	_, remote, err := decodeResult(encodeResult(1, params.Variant{}, errors.New("disk on fire"))[headerLen:])
	require.NoError(t, err)
	assert.Equal(t, objerr.Remote, remote.Kind)
	assert.Equal(t, "disk on fire", remote.Msg)
}

func TestUnknownWireKindBecomesRemote(t *testing.T) {
	b := encodeError(0, objerr.New(objerr.TypeMismatch, "x"))
	b[headerLen] = 0xee
	remote, err := decodeError(b[headerLen:])
	require.NoError(t, err)
	assert.Equal(t, objerr.Remote, remote.Kind)
	assert.Equal(t, "x", remote.Msg)
}

func TestUnknownResultStatus(t *testing.T) {
	_, _, err := decodeResult([]byte{7})
	assert.True(t, objerr.Is(err, objerr.DecodeError))
}

func TestRunRoundTrip(t *testing.T) {
	in := params.NewBag().Set("a", params.MustFrom(1.5)).Set("t", params.TableOf(sampleTable(t)))
	b, err := encodeRun(3, runRequest{name: "demo_scale", in: in})
	require.NoError(t, err)
	req, err := decodeRun(b[headerLen:])
	require.NoError(t, err)
	assert.Equal(t, "demo_scale", req.name)
	assert.True(t, in.Equal(req.in))

	b, err = encodeRunResult(3, runResult{message: "x not found"})
	require.NoError(t, err)
	res, err := decodeRunResult(b[headerLen:])
	require.NoError(t, err)
	assert.False(t, res.success)
	assert.Equal(t, "x not found", res.message)
	assert.Zero(t, res.out.Len())
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "invoke", MsgInvoke.String())
	assert.Equal(t, "MessageType(0x7f)", MessageType(0x7f).String())
}
