// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package flex implements the dynamic value that crosses the boundary between
// a dynamically-typed client and the statically-typed server.
//
// A Value is a closed tagged union over integer, float, string, float vector,
// list and dict. The tag fully determines which accessor is valid; reading
// the wrong one returns a TypeMismatch error.
package flex

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/luxfi/objrpc/objerr"
)

// Kind is the tag of a Value. The numeric values are also the wire tags.
type Kind uint8

const (
	Undefined Kind = iota
	Int
	Float
	String
	Vector
	List
	Dict
)

var kindNames = [...]string{
	Undefined: "undefined",
	Int:       "integer",
	Float:     "float",
	String:    "string",
	Vector:    "vector",
	List:      "list",
	Dict:      "dict",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k names one of the union members.
func (k Kind) Valid() bool { return k >= Int && k <= Dict }

// Numeric reports whether k is Int or Float.
func (k Kind) Numeric() bool { return k == Int || k == Float }

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k := Int; k <= Dict; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return Undefined, objerr.New(objerr.TypeMismatch, "unknown value kind %q", s)
}

// Value is the dynamic value. The zero Value is undefined: every accessor on
// it fails and it cannot be encoded.
//
// Invariants:
//   - Int and Float store their payload in bits.
//   - String, Vector, List and Dict store theirs in ref as string,
//     []float64, []Value and map[string]Value respectively.
type Value struct {
	kind Kind
	bits uint64
	ref  any
}

func NewInt(n int64) Value { return Value{kind: Int, bits: uint64(n)} }

func NewFloat(f float64) Value { return Value{kind: Float, bits: math.Float64bits(f)} }

func NewString(s string) Value { return Value{kind: String, ref: s} }

// NewVector stores vec without copying; callers hand over ownership.
func NewVector(vec []float64) Value {
	if vec == nil {
		vec = []float64{}
	}
	return Value{kind: Vector, ref: vec}
}

func NewList(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: List, ref: items}
}

func NewDict(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: Dict, ref: m}
}

// Kind returns the active tag.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds one of the union members.
func (v Value) IsValid() bool { return v.kind.Valid() }

func mismatch(want Kind, got Kind) error {
	return objerr.New(objerr.TypeMismatch, "expected %s, got %s", want, got)
}

func (v Value) Int() (int64, error) {
	if v.kind != Int {
		return 0, mismatch(Int, v.kind)
	}
	return int64(v.bits), nil
}

func (v Value) Float() (float64, error) {
	if v.kind != Float {
		return 0, mismatch(Float, v.kind)
	}
	return math.Float64frombits(v.bits), nil
}

// AsFloat returns the numeric value of an Int or Float.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case Int:
		return float64(int64(v.bits)), nil
	case Float:
		return math.Float64frombits(v.bits), nil
	default:
		return 0, objerr.New(objerr.TypeMismatch, "expected a number, got %s", v.kind)
	}
}

// Str returns the payload of a String value. It is not named String so that
// Value can implement fmt.Stringer.
func (v Value) Str() (string, error) {
	if v.kind != String {
		return "", mismatch(String, v.kind)
	}
	return v.ref.(string), nil
}

func (v Value) Vector() ([]float64, error) {
	if v.kind != Vector {
		return nil, mismatch(Vector, v.kind)
	}
	return v.ref.([]float64), nil
}

func (v Value) List() ([]Value, error) {
	if v.kind != List {
		return nil, mismatch(List, v.kind)
	}
	return v.ref.([]Value), nil
}

func (v Value) Dict() (map[string]Value, error) {
	if v.kind != Dict {
		return nil, mismatch(Dict, v.kind)
	}
	return v.ref.(map[string]Value), nil
}

// String renders a human-friendly debug representation.
func (v Value) String() string {
	switch v.kind {
	case Int:
		return strconv.FormatInt(int64(v.bits), 10)
	case Float:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'g', -1, 64)
	case String:
		return strconv.Quote(v.ref.(string))
	case Vector:
		vec := v.ref.([]float64)
		parts := make([]string, len(vec))
		for i, f := range vec {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case List:
		items := v.ref.([]Value)
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Dict:
		m := v.ref.(map[string]Value)
		keys := slices.Sorted(maps.Keys(m))
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<undefined>"
	}
}

// FromGo converts a host Go value into a Value. Supported inputs are Value,
// signed and unsigned integers, floats, strings, []float64, slices and maps
// with string keys whose elements are themselves convertible.
func FromGo(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		if !t.IsValid() {
			return Value{}, objerr.New(objerr.TypeMismatch, "undefined value")
		}
		return t, nil
	case int:
		return NewInt(int64(t)), nil
	case int8:
		return NewInt(int64(t)), nil
	case int16:
		return NewInt(int64(t)), nil
	case int32:
		return NewInt(int64(t)), nil
	case int64:
		return NewInt(t), nil
	case uint8:
		return NewInt(int64(t)), nil
	case uint16:
		return NewInt(int64(t)), nil
	case uint32:
		return NewInt(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, objerr.New(objerr.TypeMismatch, "integer %d overflows int64", t)
		}
		return NewInt(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, objerr.New(objerr.TypeMismatch, "integer %d overflows int64", t)
		}
		return NewInt(int64(t)), nil
	case float32:
		return NewFloat(float64(t)), nil
	case float64:
		return NewFloat(t), nil
	case string:
		return NewString(t), nil
	case []byte:
		return NewString(string(t)), nil
	case []float64:
		return NewVector(slices.Clone(t)), nil
	case []Value:
		return NewList(slices.Clone(t)...), nil
	case map[string]Value:
		return NewDict(maps.Clone(t)), nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			v, err := FromGo(e)
			if err != nil {
				return Value{}, fmt.Errorf("list[%d]: %w", i, err)
			}
			items[i] = v
		}
		return NewList(items...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromGo(e)
			if err != nil {
				return Value{}, fmt.Errorf("dict[%q]: %w", k, err)
			}
			m[k] = v
		}
		return NewDict(m), nil
	case nil:
		return Value{}, objerr.New(objerr.TypeMismatch, "cannot convert nil to a value")
	default:
		return Value{}, objerr.New(objerr.TypeMismatch, "cannot convert %s to a value", reflect.TypeOf(x))
	}
}

// MustFromGo is FromGo for literals in tests and static tables.
func MustFromGo(x any) Value {
	v, err := FromGo(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Interface returns the payload as a plain Go value: int64, float64,
// string, []float64, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case Int:
		return int64(v.bits)
	case Float:
		return math.Float64frombits(v.bits)
	case String:
		return v.ref.(string)
	case Vector:
		return slices.Clone(v.ref.([]float64))
	case List:
		items := v.ref.([]Value)
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = it.Interface()
		}
		return out
	case Dict:
		m := v.ref.(map[string]Value)
		out := make(map[string]any, len(m))
		for k, it := range m {
			out[k] = it.Interface()
		}
		return out
	default:
		return nil
	}
}
