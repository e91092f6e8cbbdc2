// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package iface

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc/objerr"
)

func declared(t *testing.T, src []byte) map[string]bool {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, 0)
	require.NoError(t, err, string(src))
	names := map[string]bool{}
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					names[s.Name.Name] = true
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names[n.Name] = true
					}
				}
			}
		case *ast.FuncDecl:
			name := d.Name.Name
			if d.Recv != nil {
				name = d.Recv.List[0].Type.(*ast.Ident).Name + "." + name
			}
			names[name] = true
		}
	}
	return names
}

func TestGenerateCounter(t *testing.T) {
	src, err := Generate("demo", counterDesc(t))
	require.NoError(t, err)

	names := declared(t, src)
	for _, want := range []string{
		"CounterDescriptor", "CounterBase", "CounterProxy", "NewCounterProxy",
		"CounterProxy.Get", "CounterProxy.Increment",
	} {
		assert.True(t, names[want], "missing %s", want)
	}

	s := string(src)
	assert.Contains(t, s, "// Code generated by objrpc gen. DO NOT EDIT.")
	assert.Contains(t, s, `iface.M("get", iface.Integer)`)
	assert.Contains(t, s, `iface.M("increment", iface.Void, iface.Integer)`)
	assert.Contains(t, s, "Get(ctx context.Context) (int64, error)")
	assert.Contains(t, s, "Increment(ctx context.Context, a0 int64) error")
	assert.NotContains(t, s, "objrpc/flex", "unused imports are omitted")
}

func TestGenerateImportsAndOverrides(t *testing.T) {
	d := MustNew("graph_store",
		M("load", Table, String),
		M("tag", Void, Dict, Handle),
		Method{Name: "dump", GoName: "DumpAll", Returns: Result},
	)
	src, err := Generate("store", d, counterDesc(t))
	require.NoError(t, err)

	names := declared(t, src)
	assert.True(t, names["GraphStoreProxy.DumpAll"])
	assert.True(t, names["CounterProxy.Get"])

	s := string(src)
	for _, imp := range []string{`"github.com/luxfi/objrpc/flex"`, `"github.com/luxfi/objrpc/params"`, `"github.com/luxfi/objrpc/table"`} {
		assert.Contains(t, s, imp)
	}
	assert.Contains(t, s, `GoName: "DumpAll"`)
	assert.Contains(t, s, "Load(ctx context.Context, a0 string) (*table.Table, error)")
}

func TestGenerateRejects(t *testing.T) {
	_, err := Generate("not a package", counterDesc(t))
	assert.True(t, objerr.Is(err, objerr.ConfigurationError))

	_, err = Generate("p", MustNew("x", M("release", Void)))
	assert.ErrorContains(t, err, "reserved")

	_, err = Generate("p", counterDesc(t), counterDesc(t))
	assert.ErrorContains(t, err, "both generate Counter")

	_, err = Generate("p", MustNew("x", Method{Name: "a", GoName: "lower", Returns: Void}))
	assert.ErrorContains(t, err, "exported")
}
