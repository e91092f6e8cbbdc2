// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package iface

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/luxfi/objrpc/objerr"
)

//go:embed schema/descriptor.cue
var schemaSource []byte

// LoadCUE reads interface descriptors from CUE source of the form
//
//	interfaces: counter: methods: [
//		{name: "get", returns: "integer"},
//		{name: "increment", args: ["integer"]},
//	]
//
// The source is unified with the embedded schema and must be concrete.
// A method without returns is void. Descriptors are returned in source
// order.
func LoadCUE(filename string, src []byte) ([]*Descriptor, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("descriptor.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling descriptor schema: %w", err)
	}
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	ifaces := v.LookupPath(cue.ParsePath("interfaces"))
	if !ifaces.Exists() {
		return nil, objerr.New(objerr.ConfigurationError, "%s: no interfaces defined", filename)
	}
	iter, err := ifaces.Fields()
	if err != nil {
		return nil, cueError(err)
	}
	var out []*Descriptor
	for iter.Next() {
		name := iter.Label()
		methods, err := cueMethods(iter.Value().LookupPath(cue.ParsePath("methods")))
		if err != nil {
			return nil, objerr.New(objerr.ConfigurationError, "%s: interfaces.%s: %v", filename, name, err)
		}
		d, err := New(name, methods...)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, objerr.New(objerr.ConfigurationError, "%s: no interfaces defined", filename)
	}
	return out, nil
}

// LoadCUEFile is LoadCUE on the contents of path.
func LoadCUEFile(path string) ([]*Descriptor, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadCUE(path, src)
}

func cueMethods(list cue.Value) ([]Method, error) {
	it, err := list.List()
	if err != nil {
		return nil, err
	}
	var methods []Method
	for it.Next() {
		mv := it.Value()
		var m Method
		if m.Name, err = mv.LookupPath(cue.ParsePath("name")).String(); err != nil {
			return nil, err
		}
		if gv := mv.LookupPath(cue.ParsePath("go_name")); gv.Exists() {
			if m.GoName, err = gv.String(); err != nil {
				return nil, err
			}
		}
		if rv := mv.LookupPath(cue.ParsePath("returns")); rv.Exists() {
			s, err := rv.String()
			if err != nil {
				return nil, err
			}
			if m.Returns, err = ParseType(s); err != nil {
				return nil, err
			}
		}
		if av := mv.LookupPath(cue.ParsePath("args")); av.Exists() {
			args, err := av.List()
			if err != nil {
				return nil, err
			}
			for args.Next() {
				s, err := args.Value().String()
				if err != nil {
					return nil, err
				}
				t, err := ParseType(s)
				if err != nil {
					return nil, err
				}
				m.Args = append(m.Args, t)
			}
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// cueError reports the first CUE error with its source position.
func cueError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return objerr.New(objerr.ConfigurationError, "%v", err)
	}
	first := errs[0]
	if pos := cueerrors.Positions(first); len(pos) > 0 && pos[0].IsValid() {
		p := pos[0]
		return objerr.New(objerr.ConfigurationError, "%s:%d:%d: %v", p.Filename(), p.Line(), p.Column(), first)
	}
	return objerr.New(objerr.ConfigurationError, "%v", first)
}
