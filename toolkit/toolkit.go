// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package toolkit dispatches named functions that take and return a
// parameter bag.
//
// A toolkit body reports failure by returning an error or panicking. Run
// never propagates either; it turns them into a Response with Success set
// to false and a non-empty Message.
package toolkit

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
)

// Func is a toolkit body.
type Func func(ctx context.Context, in *params.Bag) (*params.Bag, error)

// Spec describes one toolkit.
type Spec struct {
	Name        string
	Description string
	// Defaults fill keys missing from the caller's bag.
	Defaults *params.Bag
	Fn       Func
}

// Info is the public description of a registered toolkit.
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Defaults    *params.Bag `json:"defaults,omitempty"`
}

// Response is the outcome of Run. Message is set exactly when Success is
// false.
type Response struct {
	Params  *params.Bag `json:"params"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
}

// Err returns the failure as a ToolkitExecutionError, or nil on success.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return &objerr.Error{Kind: objerr.ToolkitExecutionError, Msg: r.Message}
}

// Failed builds a failure response. An empty message is replaced so that
// failures always carry one.
func Failed(msg string) Response {
	if msg == "" {
		msg = "toolkit failed"
	}
	return Response{Params: params.NewBag(), Message: msg}
}

// Registry maps toolkit names to specs. Register everything at startup,
// then Seal; Run is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	sealed bool
	specs  map[string]Spec
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds s. The name is NFC-normalized.
func (r *Registry) Register(s Spec) error {
	s.Name = norm.NFC.String(s.Name)
	switch {
	case s.Name == "":
		return objerr.New(objerr.ConfigurationError, "toolkit name must not be empty")
	case s.Fn == nil:
		return objerr.New(objerr.ConfigurationError, "toolkit %q has no function", s.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return objerr.New(objerr.ConfigurationError, "registry is sealed, cannot register toolkit %q", s.Name)
	}
	if _, dup := r.specs[s.Name]; dup {
		return objerr.New(objerr.ConfigurationError, "toolkit %q already registered", s.Name)
	}
	s.Defaults = s.Defaults.Clone()
	r.specs[s.Name] = s
	return nil
}

// MustRegister panics on a ConfigurationError.
func (r *Registry) MustRegister(specs ...Spec) {
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) lookup(name string) (Spec, error) {
	r.mu.RLock()
	s, ok := r.specs[norm.NFC.String(name)]
	r.mu.RUnlock()
	if !ok {
		return Spec{}, objerr.New(objerr.UnknownToolkit, "unknown toolkit %q", name)
	}
	return s, nil
}

// Run executes toolkit name with in merged over its defaults. The only
// error Run returns is UnknownToolkit; everything that goes wrong inside
// the toolkit is reported in the Response.
func (r *Registry) Run(ctx context.Context, name string, in *params.Bag) (Response, error) {
	s, err := r.lookup(name)
	if err != nil {
		return Response{}, err
	}
	return execute(ctx, s, in.WithDefaults(s.Defaults)), nil
}

func execute(ctx context.Context, s Spec, in *params.Bag) (resp Response) {
	defer func() {
		if p := recover(); p != nil {
			resp = Failed(fmt.Sprintf("%s: panic: %v", s.Name, p))
		}
	}()
	out, err := s.Fn(ctx, in)
	if err != nil {
		return Failed(err.Error())
	}
	if out == nil {
		out = params.NewBag()
	}
	return Response{Params: out, Success: true}
}

// Names lists the registered toolkits in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Describe returns the public description of name.
func (r *Registry) Describe(name string) (Info, error) {
	s, err := r.lookup(name)
	if err != nil {
		return Info{}, err
	}
	return Info{Name: s.Name, Description: s.Description, Defaults: s.Defaults.Clone()}, nil
}

// List describes every registered toolkit in lexical order.
func (r *Registry) List() []Info {
	names := r.Names()
	out := make([]Info, 0, len(names))
	for _, n := range names {
		if info, err := r.Describe(n); err == nil {
			out = append(out, info)
		}
	}
	return slices.Clip(out)
}
