// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/internal/wire"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/table"
)

// AppendVariant writes the encoding of v:
//
//	value:  [flex tag][flex payload]
//	table:  [0x10][table encoding]
//	handle: [0x11][u32 len][type name][u64 id]
//	result: [0x12][u32 len][type][u32 len][payload]
func AppendVariant(b []byte, v Variant) ([]byte, error) {
	switch {
	case v.IsValue():
		return flex.Append(b, v.val)
	case v.kind == KindTable:
		return table.Append(wire.AppendU8(b, uint8(KindTable)), v.tbl)
	case v.kind == KindHandle:
		b = wire.AppendU8(b, uint8(KindHandle))
		b = wire.AppendString(b, v.handle.TypeName)
		return wire.AppendU64(b, v.handle.ID), nil
	case v.kind == KindResult:
		b = wire.AppendU8(b, uint8(KindResult))
		b = wire.AppendString(b, v.result.Type)
		return wire.AppendBytes(b, v.result.Payload), nil
	}
	return b, objerr.New(objerr.TypeMismatch, "cannot encode invalid variant")
}

// ReadVariant decodes one variant from r.
func ReadVariant(r *wire.Reader) (Variant, error) {
	at := r.Offset()
	tag, err := r.U8("variant tag")
	if err != nil {
		return Variant{}, err
	}
	k := Kind(tag)
	switch {
	case flex.Kind(k).Valid():
		fv, err := flex.ReadPayload(r, flex.Kind(k))
		if err != nil {
			return Variant{}, err
		}
		return ValueOf(fv), nil
	case k == KindTable:
		t, err := table.Read(r)
		if err != nil {
			return Variant{}, err
		}
		return TableOf(t), nil
	case k == KindHandle:
		name, err := r.String("handle type")
		if err != nil {
			return Variant{}, err
		}
		id, err := r.U64("handle id")
		if err != nil {
			return Variant{}, err
		}
		return HandleOf(Handle{TypeName: name, ID: id}), nil
	case k == KindResult:
		typ, err := r.String("result type")
		if err != nil {
			return Variant{}, err
		}
		payload, err := r.Bytes("result payload")
		if err != nil {
			return Variant{}, err
		}
		return ResultOf(Result{Type: typ, Payload: payload}), nil
	}
	return Variant{}, objerr.Decode(at, "unknown variant tag 0x%02x", tag)
}

// MarshalVariant returns the encoding of v.
func MarshalVariant(v Variant) ([]byte, error) { return AppendVariant(nil, v) }

// UnmarshalVariant decodes exactly one variant from data.
func UnmarshalVariant(data []byte) (Variant, error) {
	r := wire.NewReader(data)
	v, err := ReadVariant(r)
	if err != nil {
		return Variant{}, err
	}
	return v, r.Done()
}

// Append writes the encoding of b:
//
//	[u32 count] then per entry [u32 keylen][key][variant]
func Append(buf []byte, b *Bag) ([]byte, error) {
	buf = wire.AppendU32(buf, uint32(b.Len()))
	var err error
	for _, k := range b.Keys() {
		buf = wire.AppendString(buf, k)
		if buf, err = AppendVariant(buf, b.m[k]); err != nil {
			return buf, objerr.New(objerr.KindOf(err), "%s: %v", k, err)
		}
	}
	return buf, nil
}

// Marshal returns the encoding of b.
func Marshal(b *Bag) ([]byte, error) { return Append(nil, b) }

// Read decodes one bag from r. Duplicate keys are rejected.
func Read(r *wire.Reader) (*Bag, error) {
	n, err := r.Count("bag entry", 4+1)
	if err != nil {
		return nil, err
	}
	b := NewBag()
	for i := 0; i < n; i++ {
		at := r.Offset()
		key, err := r.String("bag key")
		if err != nil {
			return nil, err
		}
		if b.Has(key) {
			return nil, objerr.Decode(at, "duplicate bag key %q", key)
		}
		v, err := ReadVariant(r)
		if err != nil {
			return nil, err
		}
		b.Set(key, v)
	}
	return b, nil
}

// Unmarshal decodes exactly one bag from data.
func Unmarshal(data []byte) (*Bag, error) {
	r := wire.NewReader(data)
	b, err := Read(r)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return b, nil
}
