// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flex

import (
	"cmp"
	"math"
	"strings"

	"github.com/luxfi/objrpc/objerr"
)

// Op is a binary arithmetic operator.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	default:
		return "?"
	}
}

// Apply evaluates a op b using the coercion rule:
//
//	int   op int   -> int   (wrapping; / and % truncate, zero divisor is an error)
//	int   op float -> float
//	float op int   -> float
//	float op float -> float (IEEE semantics)
//
// Any non-numeric operand is a TypeMismatch.
func Apply(op Op, a, b Value) (Value, error) {
	if !a.kind.Numeric() || !b.kind.Numeric() {
		return Value{}, objerr.New(objerr.TypeMismatch,
			"unsupported operand kinds for %s: %s and %s", op, a.kind, b.kind)
	}
	if a.kind == Int && b.kind == Int {
		x, y := int64(a.bits), int64(b.bits)
		switch op {
		case OpAdd:
			return NewInt(x + y), nil
		case OpSub:
			return NewInt(x - y), nil
		case OpMul:
			return NewInt(x * y), nil
		case OpDiv, OpMod:
			if y == 0 {
				return Value{}, objerr.New(objerr.Arithmetic, "integer division by zero")
			}
			if op == OpDiv {
				return NewInt(x / y), nil
			}
			return NewInt(x % y), nil
		}
		return Value{}, objerr.New(objerr.TypeMismatch, "unknown operator %d", op)
	}
	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	switch op {
	case OpAdd:
		return NewFloat(x + y), nil
	case OpSub:
		return NewFloat(x - y), nil
	case OpMul:
		return NewFloat(x * y), nil
	case OpDiv:
		return NewFloat(x / y), nil
	case OpMod:
		return NewFloat(math.Mod(x, y)), nil
	}
	return Value{}, objerr.New(objerr.TypeMismatch, "unknown operator %d", op)
}

func Add(a, b Value) (Value, error) { return Apply(OpAdd, a, b) }
func Sub(a, b Value) (Value, error) { return Apply(OpSub, a, b) }
func Mul(a, b Value) (Value, error) { return Apply(OpMul, a, b) }
func Div(a, b Value) (Value, error) { return Apply(OpDiv, a, b) }
func Mod(a, b Value) (Value, error) { return Apply(OpMod, a, b) }

// Neg negates a numeric value.
func Neg(a Value) (Value, error) {
	switch a.kind {
	case Int:
		return NewInt(-int64(a.bits)), nil
	case Float:
		return NewFloat(-math.Float64frombits(a.bits)), nil
	default:
		return Value{}, objerr.New(objerr.TypeMismatch, "cannot negate %s", a.kind)
	}
}

// Equal reports whether a and b hold the same value. Integers and floats
// compare by numeric value; any other pair of different kinds is unequal.
func Equal(a, b Value) bool {
	if a.kind.Numeric() && b.kind.Numeric() {
		return compareNumeric(a, b) == 0 && !isNaN(a) && !isNaN(b)
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case String:
		return a.ref.(string) == b.ref.(string)
	case Vector:
		x, y := a.ref.([]float64), b.ref.([]float64)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case List:
		x, y := a.ref.([]Value), b.ref.([]Value)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Dict:
		x, y := a.ref.(map[string]Value), b.ref.(map[string]Value)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	default:
		// two undefined values
		return true
	}
}

// Equal is the method form of the package-level Equal.
func (v Value) Equal(o Value) bool { return Equal(v, o) }

// Compare orders a and b, returning -1, 0 or +1. Ordering is defined between
// numbers (with int/float coercion) and between strings; every other pair is
// a TypeMismatch.
func Compare(a, b Value) (int, error) {
	switch {
	case a.kind.Numeric() && b.kind.Numeric():
		return compareNumeric(a, b), nil
	case a.kind == String && b.kind == String:
		return strings.Compare(a.ref.(string), b.ref.(string)), nil
	default:
		return 0, objerr.New(objerr.TypeMismatch, "cannot order %s and %s", a.kind, b.kind)
	}
}

// compareNumeric orders two numeric values exactly. Mixed int/float pairs
// are not rounded through float64, so integers beyond 2^53 keep their
// identity. NaN sorts below every number, as in cmp.Compare.
func compareNumeric(a, b Value) int {
	switch {
	case a.kind == Int && b.kind == Int:
		return cmp.Compare(int64(a.bits), int64(b.bits))
	case a.kind == Int:
		return compareIntFloat(int64(a.bits), math.Float64frombits(b.bits))
	case b.kind == Int:
		return -compareIntFloat(int64(b.bits), math.Float64frombits(a.bits))
	default:
		return cmp.Compare(math.Float64frombits(a.bits), math.Float64frombits(b.bits))
	}
}

func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= 0x1p63:
		return -1
	case f < -0x1p63:
		return 1
	}
	whole := math.Trunc(f)
	if c := cmp.Compare(i, int64(whole)); c != 0 {
		return c
	}
	switch frac := f - whole; {
	case frac > 0:
		return -1
	case frac < 0:
		return 1
	}
	return 0
}

func isNaN(v Value) bool {
	return v.kind == Float && math.IsNaN(math.Float64frombits(v.bits))
}

// Less is Compare(a, b) < 0, treating unordered pairs as an error.
func Less(a, b Value) (bool, error) {
	c, err := Compare(a, b)
	return c < 0, err
}
