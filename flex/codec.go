// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flex

import (
	"maps"
	"math"
	"slices"

	"github.com/luxfi/objrpc/internal/wire"
	"github.com/luxfi/objrpc/objerr"
)

// MaxDepth bounds the nesting of List and Dict values. Deeper values are
// refused by both the encoder and the decoder.
const MaxDepth = 64

// minEncoded is the smallest possible encoding of a tagged value: a tag plus
// an empty string's u32 length.
const minEncoded = 1 + 4

// Append writes the tagged encoding of v to b:
//
//	[1 tag][payload]
//
// The payload is 8 bytes for Int and Float, u32 length + bytes for String,
// u32 count + 8-byte floats for Vector, u32 count + tagged elements for List
// and u32 count + (u32 keylen, key, tagged value) in sorted key order for
// Dict. All integers are little-endian.
func Append(b []byte, v Value) ([]byte, error) { return appendValue(b, v, 0) }

// AppendPayload writes the encoding of v without its tag byte. Table columns
// use it since the column kind already identifies every element.
func AppendPayload(b []byte, v Value) ([]byte, error) { return appendPayload(b, v, 0) }

func appendValue(b []byte, v Value, depth int) ([]byte, error) {
	if !v.IsValid() {
		return b, objerr.New(objerr.TypeMismatch, "cannot encode undefined value")
	}
	b = wire.AppendU8(b, uint8(v.kind))
	return appendPayload(b, v, depth)
}

// appendPayload refuses exactly the nesting that readPayload refuses.
func appendPayload(b []byte, v Value, depth int) ([]byte, error) {
	if depth > MaxDepth {
		return b, objerr.New(objerr.TypeMismatch, "value nesting exceeds %d levels", MaxDepth)
	}
	var err error
	switch v.kind {
	case Int, Float:
		b = wire.AppendU64(b, v.bits)
	case String:
		b = wire.AppendString(b, v.ref.(string))
	case Vector:
		vec := v.ref.([]float64)
		b = wire.AppendU32(b, uint32(len(vec)))
		for _, f := range vec {
			b = wire.AppendF64(b, f)
		}
	case List:
		items := v.ref.([]Value)
		b = wire.AppendU32(b, uint32(len(items)))
		for _, it := range items {
			if b, err = appendValue(b, it, depth+1); err != nil {
				return b, err
			}
		}
	case Dict:
		m := v.ref.(map[string]Value)
		b = wire.AppendU32(b, uint32(len(m)))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			b = wire.AppendString(b, k)
			if b, err = appendValue(b, m[k], depth+1); err != nil {
				return b, err
			}
		}
	default:
		return b, objerr.New(objerr.TypeMismatch, "cannot encode undefined value")
	}
	return b, nil
}

// Marshal returns the tagged encoding of v.
func Marshal(v Value) ([]byte, error) { return Append(nil, v) }

// Unmarshal decodes exactly one tagged value from data.
func Unmarshal(data []byte) (Value, error) {
	r := wire.NewReader(data)
	v, err := Read(r)
	if err != nil {
		return Value{}, err
	}
	if err := r.Done(); err != nil {
		return Value{}, err
	}
	return v, nil
}

// Read decodes one tagged value from r.
func Read(r *wire.Reader) (Value, error) { return read(r, 0) }

// ReadPayload decodes one untagged value of kind k from r.
func ReadPayload(r *wire.Reader, k Kind) (Value, error) {
	if !k.Valid() {
		return Value{}, objerr.Decode(r.Offset(), "unknown value tag %d", uint8(k))
	}
	return readPayload(r, k, 0)
}

func read(r *wire.Reader, depth int) (Value, error) {
	at := r.Offset()
	tag, err := r.U8("value tag")
	if err != nil {
		return Value{}, err
	}
	k := Kind(tag)
	if !k.Valid() {
		return Value{}, objerr.Decode(at, "unknown value tag %d", tag)
	}
	return readPayload(r, k, depth)
}

func readPayload(r *wire.Reader, k Kind, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, objerr.Decode(r.Offset(), "value nesting exceeds %d levels", MaxDepth)
	}
	switch k {
	case Int:
		u, err := r.U64("integer")
		if err != nil {
			return Value{}, err
		}
		return Value{kind: Int, bits: u}, nil
	case Float:
		u, err := r.U64("float")
		if err != nil {
			return Value{}, err
		}
		return Value{kind: Float, bits: u}, nil
	case String:
		s, err := r.String("string")
		if err != nil {
			return Value{}, err
		}
		return NewString(s), nil
	case Vector:
		n, err := r.Count("vector", 8)
		if err != nil {
			return Value{}, err
		}
		vec := make([]float64, n)
		for i := range vec {
			u, err := r.U64("vector element")
			if err != nil {
				return Value{}, err
			}
			vec[i] = math.Float64frombits(u)
		}
		return NewVector(vec), nil
	case List:
		n, err := r.Count("list", minEncoded)
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, n)
		for i := range items {
			if items[i], err = read(r, depth+1); err != nil {
				return Value{}, err
			}
		}
		return NewList(items...), nil
	case Dict:
		n, err := r.Count("dict", 4+minEncoded)
		if err != nil {
			return Value{}, err
		}
		m := make(map[string]Value, n)
		for i := 0; i < n; i++ {
			at := r.Offset()
			key, err := r.String("dict key")
			if err != nil {
				return Value{}, err
			}
			if _, dup := m[key]; dup {
				return Value{}, objerr.Decode(at, "duplicate dict key %q", key)
			}
			if m[key], err = read(r, depth+1); err != nil {
				return Value{}, err
			}
		}
		return NewDict(m), nil
	default:
		return Value{}, objerr.Decode(r.Offset(), "unknown value tag %d", uint8(k))
	}
}
