// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package iface

import (
	"context"
	"math"
	"reflect"

	"github.com/luxfi/objrpc/flex"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
	"github.com/luxfi/objrpc/table"
)

var (
	variantType = reflect.TypeFor[params.Variant]()
	valueType   = reflect.TypeFor[flex.Value]()
	anyType     = reflect.TypeFor[any]()
	tableType   = reflect.TypeFor[*table.Table]()
	sourceType  = reflect.TypeFor[table.Source]()
	handleType  = reflect.TypeFor[params.Handle]()
	resultType  = reflect.TypeFor[params.Result]()
	vectorType  = reflect.TypeFor[[]float64]()
	listType    = reflect.TypeFor[[]flex.Value]()
	anyListType = reflect.TypeFor[[]any]()
	dictType    = reflect.TypeFor[map[string]flex.Value]()
	anyDictType = reflect.TypeFor[map[string]any]()
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// compatible reports whether Go type gt can carry values of tag t. Returns
// typed table may also use any table.Source, which is forced before the
// result is sent.
func compatible(gt reflect.Type, t Type, isReturn bool) bool {
	if gt == variantType {
		return t != Void
	}
	switch t {
	case Integer:
		switch gt.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
	case Float:
		return gt.Kind() == reflect.Float64 || gt.Kind() == reflect.Float32
	case String:
		return gt.Kind() == reflect.String
	case Vector:
		return gt == vectorType
	case List:
		return gt == listType || gt == anyListType
	case Dict:
		return gt == dictType || gt == anyDictType
	case Value:
		return gt == valueType || gt == anyType
	case Table:
		if isReturn {
			return gt == tableType || gt.Implements(sourceType)
		}
		return gt == tableType || gt == sourceType
	case Handle:
		return gt == handleType
	case Result:
		return gt == resultType
	}
	return false
}

// Coerce checks v against tag t and widens integers passed where a float is
// expected.
func Coerce(t Type, v params.Variant) (params.Variant, error) {
	if !t.Accepts(v) {
		return params.Variant{}, objerr.New(objerr.TypeMismatch, "expected %s, got %s", t, v.TypeName())
	}
	if t == Float && v.Kind() == params.Kind(flex.Int) {
		fv, _ := v.Value()
		f, _ := fv.AsFloat()
		return params.ValueOf(flex.NewFloat(f)), nil
	}
	return v, nil
}

// toVariant converts a Go value into a variant. Sources are forced.
func toVariant(ctx context.Context, rv reflect.Value) (params.Variant, error) {
	if rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return params.Variant{}, objerr.New(objerr.TypeMismatch, "nil %s result", rv.Type())
		}
	}
	x := rv.Interface()
	if src, ok := x.(table.Source); ok {
		t, err := src.Materialize(ctx)
		if err != nil {
			return params.Variant{}, err
		}
		if t == nil {
			return params.Variant{}, objerr.New(objerr.TypeMismatch, "table source produced nil")
		}
		return params.TableOf(t), nil
	}
	switch rv.Kind() {
	case reflect.String:
		return params.ValueOf(flex.NewString(rv.String())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return params.ValueOf(flex.NewInt(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return params.Variant{}, objerr.New(objerr.TypeMismatch, "integer %d overflows int64", rv.Uint())
		}
		return params.ValueOf(flex.NewInt(int64(rv.Uint()))), nil
	case reflect.Float32, reflect.Float64:
		return params.ValueOf(flex.NewFloat(rv.Float())), nil
	}
	return params.From(x)
}

// fromVariant converts v into a Go value of type gt.
func fromVariant(v params.Variant, gt reflect.Type) (reflect.Value, error) {
	mismatch := func() (reflect.Value, error) {
		return reflect.Value{}, objerr.New(objerr.TypeMismatch, "cannot convert %s to %s", v.TypeName(), gt)
	}
	switch gt {
	case variantType:
		return reflect.ValueOf(v), nil
	case valueType:
		fv, err := v.Value()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(fv), nil
	case tableType, sourceType:
		t, err := v.Table()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(t).Convert(gt), nil
	case handleType:
		h, err := v.Handle()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(h), nil
	case resultType:
		r, err := v.Result()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(r), nil
	case anyType:
		out := reflect.New(anyType).Elem()
		switch {
		case v.IsValue():
			fv, _ := v.Value()
			out.Set(reflect.ValueOf(fv.Interface()))
		case v.IsValid():
			inner, err := fromVariant(v, nativeType(v))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Set(inner)
		default:
			return mismatch()
		}
		return out, nil
	}

	fv, err := v.Value()
	if err != nil {
		return mismatch()
	}
	switch gt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := fv.Int()
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(gt).Elem()
		if out.OverflowInt(n) {
			return reflect.Value{}, objerr.New(objerr.TypeMismatch, "integer %d overflows %s", n, gt)
		}
		out.SetInt(n)
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := fv.Int()
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(gt).Elem()
		if n < 0 || out.OverflowUint(uint64(n)) {
			return reflect.Value{}, objerr.New(objerr.TypeMismatch, "integer %d overflows %s", n, gt)
		}
		out.SetUint(uint64(n))
		return out, nil
	case reflect.Float32, reflect.Float64:
		f, err := fv.AsFloat()
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(gt).Elem()
		out.SetFloat(f)
		return out, nil
	case reflect.String:
		s, err := fv.Str()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s).Convert(gt), nil
	}
	switch gt {
	case vectorType:
		vec, err := fv.Vector()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(vec), nil
	case listType:
		items, err := fv.List()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(items), nil
	case anyListType:
		if fv.Kind() != flex.List {
			return mismatch()
		}
		return reflect.ValueOf(fv.Interface()), nil
	case dictType:
		m, err := fv.Dict()
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(m), nil
	case anyDictType:
		if fv.Kind() != flex.Dict {
			return mismatch()
		}
		return reflect.ValueOf(fv.Interface()), nil
	}
	return mismatch()
}

// nativeType is the Go type a non-value variant converts to.
func nativeType(v params.Variant) reflect.Type {
	switch v.Kind() {
	case params.KindTable:
		return tableType
	case params.KindHandle:
		return handleType
	case params.KindResult:
		return resultType
	}
	return valueType
}

// As converts a call result into T. T may be params.Variant, flex.Value,
// *table.Table, params.Handle, params.Result, any, a Go integer, float or
// string type, []float64, []flex.Value, []any, map[string]flex.Value or
// map[string]any.
func As[T any](v params.Variant) (T, error) {
	var zero T
	rv, err := fromVariant(v, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}
