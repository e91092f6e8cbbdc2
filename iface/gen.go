// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package iface

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"strconv"
	"strings"
	"text/template"

	"github.com/luxfi/objrpc/objerr"
)

// goTypes is the Go type used for each tag in generated code.
var goTypes = [...]string{
	Integer: "int64",
	Float:   "float64",
	String:  "string",
	Vector:  "[]float64",
	List:    "[]flex.Value",
	Dict:    "map[string]flex.Value",
	Value:   "flex.Value",
	Table:   "*table.Table",
	Handle:  "params.Handle",
	Result:  "params.Result",
}

// Methods promoted from the embedded *Proxy; generated methods must not
// shadow them.
var reservedGoNames = map[string]bool{
	"Invoke": true, "Call": true, "Retain": true, "Release": true,
	"Released": true, "Handle": true, "Descriptor": true,
}

type genArg struct {
	Name string
	Type string
}

type genMethod struct {
	Index   int
	GoName  string
	Literal string
	Args    []genArg
	Result  string
}

type genIface struct {
	Name    string
	Type    string
	Methods []genMethod
}

type genFile struct {
	Package string
	Imports []string
	Ifaces  []genIface
}

var genTemplate = template.Must(template.New("gen").Parse(`// Code generated by objrpc gen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	{{.}}
{{- end}}
)
{{range .Ifaces}}{{$t := .Type}}
// {{$t}}Descriptor is the method table of the {{printf "%q" .Name}} interface.
var {{$t}}Descriptor = iface.MustNew({{printf "%q" .Name}},
{{- range .Methods}}
	{{.Literal}},
{{- end}}
)

// {{$t}}Base is implemented by {{printf "%q" .Name}} objects.
type {{$t}}Base interface {
{{- range .Methods}}
	{{.GoName}}(ctx context.Context{{range .Args}}, {{.Name}} {{.Type}}{{end}}) {{if .Result}}({{.Result}}, error){{else}}error{{end}}
{{- end}}
}

// {{$t}}Proxy forwards {{$t}}Base calls to a remote instance.
type {{$t}}Proxy struct {
	*iface.Proxy
}

var _ {{$t}}Base = {{$t}}Proxy{}

// New{{$t}}Proxy constructs a remote {{printf "%q" .Name}} instance.
func New{{$t}}Proxy(ctx context.Context, inv iface.Invoker) ({{$t}}Proxy, error) {
	p, err := iface.NewProxy(ctx, inv, {{$t}}Descriptor)
	if err != nil {
		return {{$t}}Proxy{}, err
	}
	return {{$t}}Proxy{p}, nil
}
{{range .Methods}}
func (p {{$t}}Proxy) {{.GoName}}(ctx context.Context{{range .Args}}, {{.Name}} {{.Type}}{{end}}) {{if .Result}}({{.Result}}, error){{else}}error{{end}} {
{{- if .Result}}
	res, err := p.Invoke(ctx, {{.Index}}{{range .Args}}, {{.Name}}{{end}})
	if err != nil {
		var zero {{.Result}}
		return zero, err
	}
	return iface.As[{{.Result}}](res)
{{- else}}
	_, err := p.Invoke(ctx, {{.Index}}{{range .Args}}, {{.Name}}{{end}})
	return err
{{- end}}
}
{{end}}{{end}}`))

// Generate emits gofmt'd Go source declaring, for each descriptor, the
// descriptor variable, a <Name>Base interface and a <Name>Proxy type whose
// methods forward to the remote instance.
func Generate(pkg string, descs ...*Descriptor) ([]byte, error) {
	if !token.IsIdentifier(pkg) {
		return nil, objerr.New(objerr.ConfigurationError, "invalid package name %q", pkg)
	}
	f := genFile{Package: pkg}
	uses := map[string]bool{}
	seen := map[string]string{}
	for _, d := range descs {
		gi := genIface{Name: d.Name(), Type: CamelCase(d.Name())}
		if !token.IsIdentifier(gi.Type) {
			return nil, objerr.New(objerr.ConfigurationError, "%s: %q is not a Go identifier", d.Name(), gi.Type)
		}
		if other, dup := seen[gi.Type]; dup {
			return nil, objerr.New(objerr.ConfigurationError, "%q and %q both generate %s", other, d.Name(), gi.Type)
		}
		seen[gi.Type] = d.Name()
		for i, m := range d.methods {
			gm := genMethod{Index: i, GoName: m.GoMethodName(), Literal: methodLiteral(m)}
			if !token.IsIdentifier(gm.GoName) || !token.IsExported(gm.GoName) {
				return nil, objerr.New(objerr.ConfigurationError, "%s.%s: %q is not an exported Go identifier", d.Name(), m.Name, gm.GoName)
			}
			if reservedGoNames[gm.GoName] {
				return nil, objerr.New(objerr.ConfigurationError, "%s.%s: Go name %s is reserved by Proxy", d.Name(), m.Name, gm.GoName)
			}
			for j, a := range m.Args {
				gm.Args = append(gm.Args, genArg{Name: "a" + strconv.Itoa(j), Type: goTypes[a]})
				markUse(uses, a)
			}
			if m.Returns != Void {
				gm.Result = goTypes[m.Returns]
				markUse(uses, m.Returns)
			}
			gi.Methods = append(gi.Methods, gm)
		}
		f.Ifaces = append(f.Ifaces, gi)
	}

	f.Imports = []string{`"context"`, ""}
	for _, p := range []string{"flex", "iface", "params", "table"} {
		if p == "iface" || uses[p] {
			f.Imports = append(f.Imports, strconv.Quote("github.com/luxfi/objrpc/"+p))
		}
	}

	var buf bytes.Buffer
	if err := genTemplate.Execute(&buf, f); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated source: %w", err)
	}
	return out, nil
}

func markUse(uses map[string]bool, t Type) {
	switch t {
	case List, Dict, Value:
		uses["flex"] = true
	case Table:
		uses["table"] = true
	case Handle, Result:
		uses["params"] = true
	}
}

func typeConst(t Type) string { return "iface." + CamelCase(t.String()) }

func methodLiteral(m Method) string {
	if m.GoName == "" {
		parts := []string{strconv.Quote(m.Name), typeConst(m.Returns)}
		for _, a := range m.Args {
			parts = append(parts, typeConst(a))
		}
		return "iface.M(" + strings.Join(parts, ", ") + ")"
	}
	args := make([]string, len(m.Args))
	for i, a := range m.Args {
		args[i] = typeConst(a)
	}
	return fmt.Sprintf("iface.Method{Name: %q, GoName: %q, Returns: %s, Args: []iface.Type{%s}}",
		m.Name, m.GoName, typeConst(m.Returns), strings.Join(args, ", "))
}
