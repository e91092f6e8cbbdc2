// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package table

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
)

type jsonColumn struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Values []json.RawMessage `json:"values"`
}

type jsonTable struct {
	Columns []jsonColumn `json:"columns"`
}

// MarshalJSON renders t as {"columns":[{"name","type","values"}...]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	jt := jsonTable{Columns: make([]jsonColumn, len(t.cols))}
	for i, c := range t.cols {
		jc := jsonColumn{Name: c.Name, Type: c.Kind.String(), Values: make([]json.RawMessage, len(c.Values))}
		for j, v := range c.Values {
			b, err := v.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", c.Name, j, err)
			}
			jc.Values[j] = b
		}
		jt.Columns[i] = jc
	}
	return json.Marshal(jt)
}

// UnmarshalJSON parses the form written by MarshalJSON. Integer cells in a
// float column are widened.
func (t *Table) UnmarshalJSON(data []byte) error {
	var jt jsonTable
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jt); err != nil {
		return objerr.New(objerr.DecodeError, "invalid table JSON: %v", err)
	}
	out := New()
	for _, jc := range jt.Columns {
		kind, err := flex.ParseKind(jc.Type)
		if err != nil {
			return fmt.Errorf("column %q: %w", jc.Name, err)
		}
		values := make([]flex.Value, len(jc.Values))
		for j, raw := range jc.Values {
			var v flex.Value
			if err := v.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("column %q row %d: %w", jc.Name, j, err)
			}
			v, err = coerce(v, kind)
			if err != nil {
				return fmt.Errorf("column %q row %d: %w", jc.Name, j, err)
			}
			values[j] = v
		}
		if err := out.AddColumn(jc.Name, values, kind); err != nil {
			return err
		}
	}
	*t = *out
	return nil
}

// coerce adapts the kinds JSON cannot tell apart: integers in float columns,
// and numeric arrays that were read back as vectors in list columns.
func coerce(v flex.Value, kind flex.Kind) (flex.Value, error) {
	if v.Kind() == kind {
		return v, nil
	}
	switch {
	case kind == flex.Float && v.Kind() == flex.Int:
		f, _ := v.AsFloat()
		return flex.NewFloat(f), nil
	case kind == flex.Vector && v.Kind() == flex.List:
		items, _ := v.List()
		if len(items) == 0 {
			return flex.NewVector(nil), nil
		}
	case kind == flex.List && v.Kind() == flex.Vector:
		vec, _ := v.Vector()
		items := make([]flex.Value, len(vec))
		for i, f := range vec {
			items[i] = flex.NewFloat(f)
		}
		return flex.NewList(items...), nil
	}
	return v, objerr.New(objerr.TypeMismatch, "expected %s, got %s", kind, v.Kind())
}
