// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/objerr"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	var b []byte
	b = AppendU8(b, 7)
	b = AppendU32(b, 0xdeadbeef)
	b = AppendU64(b, 1<<40)
	b = AppendF64(b, 2.5)
	b = AppendString(b, "hi")
	b = AppendBytes(b, []byte{1, 2, 3})

	r := NewReader(b)
	u8, err := r.U8("u8")
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	u32, err := r.U32("u32")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	u64, err := r.U64("u64")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	f, err := r.F64("f64")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	s, err := r.String("s")
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	p, err := r.Bytes("p")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p)

	require.NoError(t, r.Done())
}

func TestLittleEndianLayout(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, AppendU32(nil, 1))
}

func TestTruncation(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.U32("header")
	require.Error(t, err)
	assert.True(t, objerr.Is(err, objerr.DecodeError))
	assert.Contains(t, err.Error(), "truncated header")
}

func TestCountRejectsImpossibleLengths(t *testing.T) {
	b := AppendU32(nil, 1000)
	r := NewReader(append(b, 0, 0, 0))
	_, err := r.Count("vector", 8)
	require.Error(t, err)
	assert.True(t, objerr.Is(err, objerr.DecodeError))
}

func TestTrailingBytes(t *testing.T) {
	r := NewReader([]byte{1})
	err := r.Done()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 trailing bytes")
}
