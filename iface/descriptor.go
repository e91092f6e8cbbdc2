// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package iface describes remotely callable interfaces.
//
// A Descriptor is an ordered table of methods, each with a return type tag
// and argument type tags. Method indices are positions in that table and
// are what travels on the wire. From one Descriptor the package derives the
// server-side binding of a Go type (Bind), the client-side Proxy, and
// generated Go source for both.
package iface

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
)

// Type is a method argument or return type tag. Integer through Dict share
// their numbering with flex.Kind.
type Type uint8

const (
	Void Type = iota
	Integer
	Float
	String
	Vector
	List
	Dict
	// Value accepts any flex value.
	Value
	Table
	Handle
	Result
)

var typeNames = [...]string{
	Void:    "void",
	Integer: "integer",
	Float:   "float",
	String:  "string",
	Vector:  "vector",
	List:    "list",
	Dict:    "dict",
	Value:   "value",
	Table:   "table",
	Handle:  "handle",
	Result:  "result",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

func (t Type) Valid() bool { return int(t) < len(typeNames) }

// ParseType maps a type name back to its tag.
func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if n == s {
			return Type(i), nil
		}
	}
	return Void, objerr.New(objerr.ConfigurationError, "unknown type %q", s)
}

// Accepts reports whether v is a member of t. Integers are accepted where a
// float is expected.
func (t Type) Accepts(v params.Variant) bool {
	switch t {
	case Void:
		return false
	case Float:
		return v.Kind() == params.Kind(Float) || v.Kind() == params.Kind(Integer)
	case Value:
		return v.IsValue()
	case Table:
		return v.Kind() == params.KindTable
	case Handle:
		return v.Kind() == params.KindHandle
	case Result:
		return v.Kind() == params.KindResult
	}
	return v.Kind() == params.Kind(t)
}

// Method is one entry of a descriptor.
type Method struct {
	Name string
	// GoName overrides the Go method name derived from Name.
	GoName  string
	Returns Type
	Args    []Type
}

// M builds a Method.
func M(name string, ret Type, args ...Type) Method {
	return Method{Name: name, Returns: ret, Args: args}
}

// GoMethodName is the Go method implementing m on a bound type.
func (m Method) GoMethodName() string {
	if m.GoName != "" {
		return m.GoName
	}
	return CamelCase(m.Name)
}

func (m Method) String() string {
	args := make([]string, len(m.Args))
	for i, a := range m.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s) -> %s", m.Name, strings.Join(args, ", "), m.Returns)
}

// Descriptor is an immutable, ordered method table.
type Descriptor struct {
	name    string
	methods []Method
	index   map[string]int
	fp      uint64
}

// New validates methods and builds a descriptor. Method names must be
// unique and non-empty, and void is only allowed as a return type.
func New(name string, methods ...Method) (*Descriptor, error) {
	if name == "" {
		return nil, objerr.New(objerr.ConfigurationError, "descriptor name must not be empty")
	}
	d := &Descriptor{
		name:    name,
		methods: make([]Method, len(methods)),
		index:   make(map[string]int, len(methods)),
	}
	goNames := make(map[string]string, len(methods))
	for i, m := range methods {
		if m.Name == "" {
			return nil, objerr.New(objerr.ConfigurationError, "%s: method %d has no name", name, i)
		}
		if _, dup := d.index[m.Name]; dup {
			return nil, objerr.New(objerr.ConfigurationError, "%s: duplicate method %q", name, m.Name)
		}
		if !m.Returns.Valid() {
			return nil, objerr.New(objerr.ConfigurationError, "%s.%s: invalid return type %s", name, m.Name, m.Returns)
		}
		for j, a := range m.Args {
			if !a.Valid() || a == Void {
				return nil, objerr.New(objerr.ConfigurationError, "%s.%s: argument %d has invalid type %s", name, m.Name, j, a)
			}
		}
		gn := m.GoMethodName()
		if other, dup := goNames[gn]; dup {
			return nil, objerr.New(objerr.ConfigurationError,
				"%s: methods %q and %q both map to Go method %s", name, other, m.Name, gn)
		}
		goNames[gn] = m.Name
		m.Args = append([]Type(nil), m.Args...)
		d.methods[i] = m
		d.index[m.Name] = i
	}
	d.fp = fingerprint(d.methods)
	return d, nil
}

// MustNew is New for package-level descriptors.
func MustNew(name string, methods ...Method) *Descriptor {
	d, err := New(name, methods...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) Name() string { return d.name }

func (d *Descriptor) Len() int { return len(d.methods) }

// Method returns entry i.
func (d *Descriptor) Method(i int) (Method, error) {
	if i < 0 || i >= len(d.methods) {
		return Method{}, objerr.New(objerr.MethodIndexOutOfRange,
			"%s: method index %d out of range [0,%d)", d.name, i, len(d.methods))
	}
	m := d.methods[i]
	m.Args = append([]Type(nil), m.Args...)
	return m, nil
}

// Index returns the position of the named method.
func (d *Descriptor) Index(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// Methods returns a copy of the method table.
func (d *Descriptor) Methods() []Method {
	out := make([]Method, len(d.methods))
	for i := range d.methods {
		out[i], _ = d.Method(i)
	}
	return out
}

// Fingerprint identifies the method table. Client and server compare
// fingerprints on construction so that index-based dispatch cannot silently
// target the wrong method.
func (d *Descriptor) Fingerprint() uint64 { return d.fp }

func fingerprint(methods []Method) uint64 {
	var buf []byte
	for _, m := range methods {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Name)))
		buf = append(buf, m.Name...)
		buf = append(buf, byte(m.Returns), byte(len(m.Args)))
		for _, a := range m.Args {
			buf = append(buf, byte(a))
		}
	}
	sum := blake2b.Sum256(buf)
	return binary.BigEndian.Uint64(sum[:8])
}

func (d *Descriptor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s {", d.name)
	for i, m := range d.methods {
		fmt.Fprintf(&sb, "\n  %d: %s", i, m)
	}
	sb.WriteString("\n}")
	return sb.String()
}

// CamelCase converts snake_case or kebab-case names to an exported Go
// identifier: "add_one" becomes "AddOne".
func CamelCase(s string) string {
	var sb strings.Builder
	upper := true
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			upper = true
		case upper:
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
