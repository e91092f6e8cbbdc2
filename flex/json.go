// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/luxfi/objrpc/objerr"
)

// MarshalJSON renders v so that UnmarshalJSON restores the same kind:
// floats always carry a '.' or an exponent, vectors are arrays of numbers and
// lists are arrays that are not entirely numeric.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case Int:
		buf.WriteString(strconv.FormatInt(int64(v.bits), 10))
	case Float:
		return writeFloat(buf, math.Float64frombits(v.bits))
	case String:
		b, err := json.Marshal(v.ref.(string))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Vector:
		buf.WriteByte('[')
		for i, f := range v.ref.([]float64) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeFloat(buf, f); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case List:
		items := v.ref.([]Value)
		if len(items) > 0 && allNumeric(items) {
			// Would read back as a vector.
			return objerr.New(objerr.TypeMismatch, "list of numbers has no JSON form distinct from vector")
		}
		buf.WriteByte('[')
		for i, it := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, it); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Dict:
		m := v.ref.(map[string]Value)
		buf.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(m)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeJSON(buf, m[k]); err != nil {
				return fmt.Errorf("dict[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return objerr.New(objerr.TypeMismatch, "cannot encode undefined value")
	}
	return nil
}

func writeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return objerr.New(objerr.TypeMismatch, "float %v has no JSON form", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	buf.WriteString(s)
	return nil
}

func allNumeric(items []Value) bool {
	for _, it := range items {
		if !it.kind.Numeric() {
			return false
		}
	}
	return true
}

// UnmarshalJSON parses a JSON document into v. null is rejected since the
// union has no null member.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return objerr.New(objerr.DecodeError, "invalid JSON value: %v", err)
	}
	out, err := FromJSON(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// FromJSON converts a value produced by a json.Decoder with UseNumber into a
// Value.
func FromJSON(raw any) (Value, error) {
	switch t := raw.(type) {
	case json.Number:
		return numberValue(t)
	case float64:
		return NewFloat(t), nil
	case string:
		return NewString(t), nil
	case bool:
		return Value{}, objerr.New(objerr.TypeMismatch, "booleans are not supported, use an integer")
	case nil:
		return Value{}, objerr.New(objerr.TypeMismatch, "null is not a value")
	case []any:
		if len(t) > 0 && allJSONNumbers(t) {
			vec := make([]float64, len(t))
			for i, e := range t {
				f, err := jsonFloat(e)
				if err != nil {
					return Value{}, fmt.Errorf("vector[%d]: %w", i, err)
				}
				vec[i] = f
			}
			return NewVector(vec), nil
		}
		items := make([]Value, len(t))
		for i, e := range t {
			it, err := FromJSON(e)
			if err != nil {
				return Value{}, fmt.Errorf("list[%d]: %w", i, err)
			}
			items[i] = it
		}
		return NewList(items...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			it, err := FromJSON(e)
			if err != nil {
				return Value{}, fmt.Errorf("dict[%q]: %w", k, err)
			}
			m[k] = it
		}
		return NewDict(m), nil
	default:
		return Value{}, objerr.New(objerr.TypeMismatch, "unsupported JSON type %T", raw)
	}
}

func numberValue(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return NewInt(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, objerr.New(objerr.TypeMismatch, "invalid number %s", s)
	}
	return NewFloat(f), nil
}

func allJSONNumbers(xs []any) bool {
	for _, x := range xs {
		switch x.(type) {
		case json.Number, float64:
		default:
			return false
		}
	}
	return true
}

func jsonFloat(x any) (float64, error) {
	switch t := x.(type) {
	case json.Number:
		return t.Float64()
	case float64:
		return t, nil
	default:
		return 0, objerr.New(objerr.TypeMismatch, "expected a number, got %T", x)
	}
}
