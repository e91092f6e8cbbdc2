// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package params implements the Parameter Bag, an insertion-ordered map from
// names to Variants, and the Variant union it stores. Bags are the argument
// and result carrier for toolkit functions; Variants are the argument and
// result carrier for remote method calls.
package params

import (
	"bytes"
	"fmt"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/table"
)

// Kind identifies the member of a Variant. Value variants share the tag
// space of flex.Kind so that a Value variant encodes exactly like a flex
// Value.
type Kind uint8

const (
	Invalid Kind = 0
	// KindValue is not a wire tag; it selects any flex value in TryGet.
	KindValue  Kind = 0x0f
	KindTable  Kind = 0x10
	KindHandle Kind = 0x11
	KindResult Kind = 0x12
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindTable:
		return "table"
	case KindHandle:
		return "handle"
	case KindResult:
		return "result"
	}
	if fk := flex.Kind(k); fk.Valid() {
		return fk.String()
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Handle names a remote object instance owned by one server session.
type Handle struct {
	TypeName string
	ID       uint64
}

func (h Handle) String() string { return fmt.Sprintf("%s#%d", h.TypeName, h.ID) }

// Result is an opaque record produced by a toolkit. The core never looks
// inside Payload.
type Result struct {
	Type    string
	Payload []byte
}

// Variant is the closed union {flex.Value, *table.Table, Handle, Result}.
// The zero Variant is invalid.
type Variant struct {
	kind   Kind
	val    flex.Value
	tbl    *table.Table
	handle Handle
	result Result
}

// ValueOf wraps v. An undefined v yields an invalid Variant.
func ValueOf(v flex.Value) Variant {
	if !v.IsValid() {
		return Variant{}
	}
	return Variant{kind: Kind(v.Kind()), val: v}
}

// TableOf wraps t. A nil t yields an invalid Variant.
func TableOf(t *table.Table) Variant {
	if t == nil {
		return Variant{}
	}
	return Variant{kind: KindTable, tbl: t}
}

func HandleOf(h Handle) Variant { return Variant{kind: KindHandle, handle: h} }

func ResultOf(r Result) Variant { return Variant{kind: KindResult, result: r} }

// Kind returns the member tag. For Value variants it is the flex kind.
func (v Variant) Kind() Kind { return v.kind }

// IsValue reports whether v holds a flex.Value.
func (v Variant) IsValue() bool { return flex.Kind(v.kind).Valid() }

func (v Variant) IsValid() bool {
	return v.IsValue() || v.kind == KindTable || v.kind == KindHandle || v.kind == KindResult
}

// TypeName is the name used in type mismatch messages: the flex kind name
// for values, otherwise "table", "handle" or "result".
func (v Variant) TypeName() string {
	if !v.IsValid() {
		return "undefined"
	}
	return v.kind.String()
}

func (v Variant) mismatch(want string) error {
	return objerr.New(objerr.TypeMismatch, "expected %s, got %s", want, v.TypeName())
}

func (v Variant) Value() (flex.Value, error) {
	if !v.IsValue() {
		return flex.Value{}, v.mismatch("value")
	}
	return v.val, nil
}

func (v Variant) Table() (*table.Table, error) {
	if v.kind != KindTable {
		return nil, v.mismatch("table")
	}
	return v.tbl, nil
}

func (v Variant) Handle() (Handle, error) {
	if v.kind != KindHandle {
		return Handle{}, v.mismatch("handle")
	}
	return v.handle, nil
}

func (v Variant) Result() (Result, error) {
	if v.kind != KindResult {
		return Result{}, v.mismatch("result")
	}
	return v.result, nil
}

// Matches reports whether v is a member of k. KindValue matches any value.
func (v Variant) Matches(k Kind) bool {
	if k == KindValue {
		return v.IsValue()
	}
	return v.IsValid() && v.kind == k
}

// Equal compares two variants. Values use flex.Equal and additionally
// require the same kind so that 2 and 2.0 differ.
func (v Variant) Equal(o Variant) bool {
	if v.kind != o.kind {
		return false
	}
	switch {
	case v.IsValue():
		return flex.Equal(v.val, o.val)
	case v.kind == KindTable:
		return v.tbl.Equal(o.tbl)
	case v.kind == KindHandle:
		return v.handle == o.handle
	case v.kind == KindResult:
		return v.result.Type == o.result.Type && bytes.Equal(v.result.Payload, o.result.Payload)
	}
	return true
}

func (v Variant) String() string {
	switch {
	case v.IsValue():
		return v.val.String()
	case v.kind == KindTable:
		return fmt.Sprintf("table(%d cols x %d rows)", v.tbl.NumColumns(), v.tbl.RowCount())
	case v.kind == KindHandle:
		return "handle(" + v.handle.String() + ")"
	case v.kind == KindResult:
		return fmt.Sprintf("result(%s, %d bytes)", v.result.Type, len(v.result.Payload))
	}
	return "<invalid>"
}

// From converts a host Go value into a Variant. Variant, flex.Value,
// *table.Table, Handle and Result are wrapped directly; everything else goes
// through flex.FromGo.
func From(x any) (Variant, error) {
	switch t := x.(type) {
	case Variant:
		if !t.IsValid() {
			return Variant{}, objerr.New(objerr.TypeMismatch, "invalid variant")
		}
		return t, nil
	case *table.Table:
		if t == nil {
			return Variant{}, objerr.New(objerr.TypeMismatch, "nil table")
		}
		return TableOf(t), nil
	case Handle:
		return HandleOf(t), nil
	case Result:
		return ResultOf(t), nil
	}
	fv, err := flex.FromGo(x)
	if err != nil {
		return Variant{}, err
	}
	return ValueOf(fv), nil
}

// MustFrom is From for literals.
func MustFrom(x any) Variant {
	v, err := From(x)
	if err != nil {
		panic(err)
	}
	return v
}
