// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package iface

import (
	"context"
	"fmt"
	"reflect"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
)

// Binding is the method table of a Go type that implements a descriptor.
// It is computed once at registration and indexed by method position, so a
// call does no name lookup.
type Binding struct {
	desc    *Descriptor
	typ     reflect.Type
	methods []boundMethod
}

type boundMethod struct {
	meth    Method
	fn      reflect.Value
	withCtx bool
	args    []reflect.Type
	result  bool
	withErr bool
}

// Bind checks that typ implements desc and precomputes its method table.
//
// Every descriptor entry must map to an exported method named
// Method.GoMethodName. The method may take a leading context.Context, then
// one parameter per argument tag. It returns (), (error), (R) or (R, error),
// where R is absent exactly when the return tag is void.
func Bind(desc *Descriptor, typ reflect.Type) (*Binding, error) {
	if typ == nil || typ.Kind() == reflect.Interface {
		return nil, objerr.New(objerr.ConfigurationError, "%s: cannot bind interface type %v", desc.Name(), typ)
	}
	b := &Binding{desc: desc, typ: typ, methods: make([]boundMethod, desc.Len())}
	for i, meth := range desc.methods {
		bm, err := bindMethod(typ, meth)
		if err != nil {
			return nil, objerr.New(objerr.ConfigurationError, "%s: %s on %s: %v", desc.Name(), meth.Name, typ, err)
		}
		b.methods[i] = bm
	}
	return b, nil
}

func bindMethod(typ reflect.Type, meth Method) (boundMethod, error) {
	goName := meth.GoMethodName()
	m, ok := typ.MethodByName(goName)
	if !ok {
		return boundMethod{}, fmt.Errorf("missing method %s", goName)
	}
	ft := m.Type
	bm := boundMethod{meth: meth, fn: m.Func}

	// In(0) is the receiver.
	in := 1
	if ft.NumIn() > 1 && ft.In(1) == contextType {
		bm.withCtx = true
		in++
	}
	if ft.IsVariadic() {
		return boundMethod{}, fmt.Errorf("%s is variadic", goName)
	}
	if got := ft.NumIn() - in; got != len(meth.Args) {
		return boundMethod{}, fmt.Errorf("%s takes %d arguments, descriptor declares %d", goName, got, len(meth.Args))
	}
	for j, tag := range meth.Args {
		at := ft.In(in + j)
		if !compatible(at, tag, false) {
			return boundMethod{}, fmt.Errorf("argument %d: %s cannot carry %s", j, at, tag)
		}
		bm.args = append(bm.args, at)
	}

	outs := ft.NumOut()
	if outs > 0 && ft.Out(outs-1) == errorType {
		bm.withErr = true
		outs--
	}
	switch {
	case outs > 1:
		return boundMethod{}, fmt.Errorf("%s returns too many values", goName)
	case outs == 1 && meth.Returns == Void:
		return boundMethod{}, fmt.Errorf("%s returns a value but descriptor declares void", goName)
	case outs == 0 && meth.Returns != Void:
		return boundMethod{}, fmt.Errorf("%s returns nothing but descriptor declares %s", goName, meth.Returns)
	case outs == 1:
		if rt := ft.Out(0); !compatible(rt, meth.Returns, true) {
			return boundMethod{}, fmt.Errorf("result: %s cannot carry %s", rt, meth.Returns)
		}
		bm.result = true
	}
	return bm, nil
}

func (b *Binding) Descriptor() *Descriptor { return b.desc }

func (b *Binding) Type() reflect.Type { return b.typ }

// Call invokes method index on obj. Arguments are checked against the
// descriptor and converted; the result is converted back and checked
// against the return tag. A void method yields the zero Variant. Errors
// returned by the method body are passed through unchanged and panics are
// not recovered.
func (b *Binding) Call(ctx context.Context, obj any, index int, args []params.Variant) (params.Variant, error) {
	if index < 0 || index >= len(b.methods) {
		return params.Variant{}, objerr.New(objerr.MethodIndexOutOfRange,
			"%s: method index %d out of range [0,%d)", b.desc.Name(), index, len(b.methods))
	}
	bm := &b.methods[index]
	if len(args) != len(bm.args) {
		return params.Variant{}, objerr.New(objerr.TypeMismatch,
			"%s.%s: expected %d arguments, got %d", b.desc.Name(), bm.meth.Name, len(bm.args), len(args))
	}
	recv := reflect.ValueOf(obj)
	if recv.Type() != b.typ {
		return params.Variant{}, objerr.New(objerr.TypeMismatch,
			"%s: receiver is %s, bound to %s", b.desc.Name(), recv.Type(), b.typ)
	}

	in := make([]reflect.Value, 0, 2+len(args))
	in = append(in, recv)
	if bm.withCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	for j, a := range args {
		a, err := Coerce(bm.meth.Args[j], a)
		if err != nil {
			return params.Variant{}, objerr.New(objerr.TypeMismatch,
				"%s.%s: argument %d: %v", b.desc.Name(), bm.meth.Name, j, err)
		}
		rv, err := fromVariant(a, bm.args[j])
		if err != nil {
			return params.Variant{}, objerr.New(objerr.TypeMismatch,
				"%s.%s: argument %d: %v", b.desc.Name(), bm.meth.Name, j, err)
		}
		in = append(in, rv)
	}

	out := bm.fn.Call(in)
	if bm.withErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return params.Variant{}, errv.Interface().(error)
		}
	}
	if !bm.result {
		return params.Variant{}, nil
	}
	res, err := toVariant(ctx, out[0])
	if err != nil {
		return params.Variant{}, err
	}
	res, err = Coerce(bm.meth.Returns, res)
	if err != nil {
		return params.Variant{}, objerr.New(objerr.TypeMismatch,
			"%s.%s: result: %v", b.desc.Name(), bm.meth.Name, err)
	}
	return res, nil
}
