// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire holds the little-endian primitives shared by the value,
// table and parameter codecs.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/luxfi/objrpc/objerr"
)

var le = binary.LittleEndian

func AppendU8(b []byte, v uint8) []byte { return append(b, v) }

func AppendU32(b []byte, v uint32) []byte { return le.AppendUint32(b, v) }

func AppendU64(b []byte, v uint64) []byte { return le.AppendUint64(b, v) }

func AppendF64(b []byte, v float64) []byte { return le.AppendUint64(b, math.Float64bits(v)) }

// AppendString writes a u32 length prefix followed by the bytes of s.
func AppendString(b []byte, s string) []byte {
	b = AppendU32(b, uint32(len(s)))
	return append(b, s...)
}

// AppendBytes writes a u32 length prefix followed by p.
func AppendBytes(b []byte, p []byte) []byte {
	b = AppendU32(b, uint32(len(p)))
	return append(b, p...)
}

// Reader consumes a byte slice and reports truncation as a DecodeError
// carrying the offset where it happened.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Rest returns the unread bytes without consuming them.
func (r *Reader) Rest() []byte { return r.buf[r.off:] }

func (r *Reader) need(n int, what string) error {
	if n < 0 || r.Remaining() < n {
		return objerr.Decode(r.off, "truncated %s: need %d bytes, have %d", what, n, r.Remaining())
	}
	return nil
}

func (r *Reader) U8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *Reader) U32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := le.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) U64(what string) (uint64, error) {
	if err := r.need(8, what); err != nil {
		return 0, err
	}
	v := le.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *Reader) F64(what string) (float64, error) {
	u, err := r.U64(what)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// Bytes reads a u32 length prefix and returns a copy of that many bytes.
func (r *Reader) Bytes(what string) ([]byte, error) {
	n, err := r.U32(what + " length")
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n), what); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += int(n)
	return out, nil
}

func (r *Reader) String(what string) (string, error) {
	n, err := r.U32(what + " length")
	if err != nil {
		return "", err
	}
	if err := r.need(int(n), what); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

// Count reads a u32 element count and rejects counts that cannot possibly
// fit in the remaining input given the minimum encoded size of one element.
// This keeps a corrupt length from triggering a huge allocation.
func (r *Reader) Count(what string, minElem int) (int, error) {
	at := r.off
	n, err := r.U32(what + " count")
	if err != nil {
		return 0, err
	}
	if minElem > 0 && uint64(n)*uint64(minElem) > uint64(r.Remaining()) {
		return 0, objerr.Decode(at, "%s count %d exceeds remaining input (%d bytes)", what, n, r.Remaining())
	}
	return int(n), nil
}

// Done fails if any input is left over.
func (r *Reader) Done() error {
	if r.Remaining() != 0 {
		return objerr.Decode(r.off, "%d trailing bytes", r.Remaining())
	}
	return nil
}
