// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package table

import (
	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/internal/wire"
	"github.com/luxfi/objrpc/objerr"
)

// Append writes the encoding of t:
//
//	[u32 column count]
//	per column: [u32 name len][name][1 kind][u32 length][payload...]
//
// Column elements are written without their tag byte since the column kind
// already identifies them.
func Append(b []byte, t *Table) ([]byte, error) {
	b = wire.AppendU32(b, uint32(len(t.cols)))
	var err error
	for _, c := range t.cols {
		b = wire.AppendString(b, c.Name)
		b = wire.AppendU8(b, uint8(c.Kind))
		b = wire.AppendU32(b, uint32(len(c.Values)))
		for _, v := range c.Values {
			if b, err = flex.AppendPayload(b, v); err != nil {
				return b, err
			}
		}
	}
	return b, nil
}

// Marshal returns the encoding of t.
func Marshal(t *Table) ([]byte, error) { return Append(nil, t) }

// Unmarshal decodes exactly one table from data.
func Unmarshal(data []byte) (*Table, error) {
	r := wire.NewReader(data)
	t, err := Read(r)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return t, nil
}

// Read decodes one table from r, rejecting duplicate names, unknown kinds
// and columns of unequal length.
func Read(r *wire.Reader) (*Table, error) {
	n, err := r.Count("column", 4+1+4)
	if err != nil {
		return nil, err
	}
	t := New()
	for i := 0; i < n; i++ {
		at := r.Offset()
		name, err := r.String("column name")
		if err != nil {
			return nil, err
		}
		if _, dup := t.index[name]; dup || name == "" {
			return nil, objerr.Decode(at, "invalid or duplicate column name %q", name)
		}
		kat := r.Offset()
		tag, err := r.U8("column kind")
		if err != nil {
			return nil, err
		}
		kind := flex.Kind(tag)
		if !kind.Valid() {
			return nil, objerr.Decode(kat, "unknown column kind %d", tag)
		}
		lat := r.Offset()
		rows, err := r.Count("row", 1)
		if err != nil {
			return nil, err
		}
		if i > 0 && rows != t.RowCount() {
			return nil, objerr.Decode(lat, "column %q has %d rows, expected %d", name, rows, t.RowCount())
		}
		values := make([]flex.Value, rows)
		for j := range values {
			if values[j], err = flex.ReadPayload(r, kind); err != nil {
				return nil, err
			}
		}
		t.index[name] = len(t.cols)
		t.cols = append(t.cols, Column{Name: name, Kind: kind, Values: values})
	}
	return t, nil
}
