// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
)

// Reentrant is implemented by objects that may be invoked concurrently.
// Instances of other types see one call at a time.
type Reentrant interface {
	Reentrant() bool
}

type instance struct {
	id    uint64
	entry *entry
	obj   any
	refs  int // guarded by Session.mu

	// lock serializes calls on non-reentrant objects. Destruction takes it
	// exclusively so that in-flight calls finish first.
	lock      *sync.RWMutex
	reentrant bool
	destroyed bool // guarded by lock
}

func (in *instance) handle() params.Handle {
	return params.Handle{TypeName: in.entry.name, ID: in.id}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithDestroyHook registers fn to run after an instance is destroyed.
func WithDestroyHook(fn func(params.Handle)) SessionOption {
	return func(s *Session) { s.onDestroy = fn }
}

// Session is the instance table of one connection.
type Session struct {
	reg *Registry
	log *slog.Logger

	onDestroy func(params.Handle)

	mu        sync.Mutex
	next      uint64
	instances map[uint64]*instance
	closed    bool
}

// NewSession starts an empty instance table backed by r.
func (r *Registry) NewSession(opts ...SessionOption) *Session {
	s := &Session{
		reg:       r,
		log:       slog.Default(),
		instances: make(map[uint64]*instance),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sessionKey struct{}

// NewContext returns ctx carrying s. Invoke passes such a context to
// methods that accept one.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session a method is being invoked on.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}

func errClosed() error {
	return objerr.New(objerr.ConnectionLost, "session closed")
}

// CreateInstance constructs an instance of name and returns its id and the
// type's descriptor fingerprint. Ids start at 1 and are never reused. An
// unknown name fails without calling any factory.
func (s *Session) CreateInstance(name string) (uint64, uint64, error) {
	e, err := s.reg.lookup(name)
	if err != nil {
		return 0, 0, err
	}
	obj := e.singleton
	if e.factory != nil {
		if obj, err = construct(e); err != nil {
			return 0, 0, err
		}
	}
	h, err := s.add(e, obj)
	if err != nil {
		if e.factory != nil {
			closeObject(obj)
		}
		return 0, 0, err
	}
	s.log.Debug("instance created", "type", e.name, "id", h.ID)
	return h.ID, e.desc().Fingerprint(), nil
}

func construct(e *entry) (obj any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = objerr.New(objerr.Remote, "%s factory panicked: %v", e.name, r)
		}
	}()
	obj = e.factory()
	if isNil(obj) {
		return nil, objerr.New(objerr.Remote, "%s factory returned nil", e.name)
	}
	return obj, nil
}

func isNil(x any) bool {
	if x == nil {
		return true
	}
	switch rv := reflect.ValueOf(x); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (s *Session) add(e *entry, obj any) (params.Handle, error) {
	in := &instance{entry: e, obj: obj, refs: 1}
	if r, ok := obj.(Reentrant); ok {
		in.reentrant = r.Reentrant()
	}
	if e.lock != nil {
		in.lock = e.lock
	} else {
		in.lock = new(sync.RWMutex)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return params.Handle{}, errClosed()
	}
	s.next++
	in.id = s.next
	s.instances[in.id] = in
	return in.handle(), nil
}

// Adopt registers obj, created by a method body, as a new instance of the
// registered type name and returns its handle with one reference. obj must
// have the type the name was registered with.
func (s *Session) Adopt(name string, obj any) (params.Handle, error) {
	e, err := s.reg.lookup(name)
	if err != nil {
		return params.Handle{}, err
	}
	if e.factory == nil {
		return params.Handle{}, objerr.New(objerr.ConfigurationError, "cannot adopt into singleton type %q", e.name)
	}
	if isNil(obj) || reflect.TypeOf(obj) != e.binding.Type() {
		return params.Handle{}, objerr.New(objerr.TypeMismatch, "cannot adopt %T as %q", obj, e.name)
	}
	return s.add(e, obj)
}

// Resolve returns the live object behind h.
func (s *Session) Resolve(h params.Handle) (any, error) {
	in, err := s.get(h.ID)
	if err != nil {
		return nil, err
	}
	if in.entry.name != h.TypeName {
		return nil, objerr.New(objerr.UnknownInstance, "instance %d is not a %s", h.ID, h.TypeName)
	}
	return in.obj, nil
}

func (s *Session) get(id uint64) (*instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed()
	}
	in, ok := s.instances[id]
	if !ok {
		return nil, objerr.New(objerr.UnknownInstance, "unknown instance %d", id)
	}
	return in, nil
}

// Invoke calls method on instance id. Errors from the method body keep
// their message verbatim; those that are not already objrpc errors, and
// panics, are reported as Remote.
func (s *Session) Invoke(ctx context.Context, id uint64, method uint32, args []params.Variant) (params.Variant, error) {
	in, err := s.get(id)
	if err != nil {
		return params.Variant{}, err
	}
	desc := in.entry.desc()
	if uint64(method) >= uint64(desc.Len()) {
		return params.Variant{}, objerr.New(objerr.MethodIndexOutOfRange,
			"%s: method index %d out of range [0,%d)", in.entry.name, method, desc.Len())
	}

	if in.reentrant {
		in.lock.RLock()
		defer in.lock.RUnlock()
	} else {
		in.lock.Lock()
		defer in.lock.Unlock()
	}
	if in.destroyed {
		return params.Variant{}, objerr.New(objerr.UnknownInstance, "unknown instance %d", id)
	}
	return s.call(NewContext(ctx, s), in, int(method), args)
}

func (s *Session) call(ctx context.Context, in *instance, method int, args []params.Variant) (res params.Variant, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, _ := in.entry.desc().Method(method)
			s.log.Error("method panicked", "type", in.entry.name, "id", in.id, "method", m.Name, "panic", r)
			res, err = params.Variant{}, objerr.New(objerr.Remote, "%v", r)
		}
	}()
	res, err = in.entry.binding.Call(ctx, in.obj, method, args)
	if err != nil {
		if objerr.KindOf(err) == objerr.Unknown {
			err = &objerr.Error{Kind: objerr.Remote, Msg: err.Error()}
		}
		return params.Variant{}, err
	}
	return res, nil
}

// Retain adds a reference to instance id.
func (s *Session) Retain(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}
	in, ok := s.instances[id]
	if !ok {
		return objerr.New(objerr.UnknownInstance, "unknown instance %d", id)
	}
	in.refs++
	return nil
}

// Release drops a reference to instance id and destroys the instance when
// none remain.
func (s *Session) Release(id uint64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	in, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return objerr.New(objerr.UnknownInstance, "unknown instance %d", id)
	}
	in.refs--
	if in.refs > 0 {
		s.mu.Unlock()
		return nil
	}
	delete(s.instances, id)
	s.mu.Unlock()
	s.destroy(in)
	return nil
}

// Close destroys every remaining instance exactly once. Later calls on the
// session fail with ConnectionLost.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	live := make([]*instance, 0, len(s.instances))
	for _, in := range s.instances {
		live = append(live, in)
	}
	s.instances = nil
	s.mu.Unlock()

	for _, in := range live {
		s.destroy(in)
	}
	if len(live) > 0 {
		s.log.Debug("session closed", "reclaimed", len(live))
	}
	return nil
}

func (s *Session) destroy(in *instance) {
	if in.entry.factory != nil {
		in.lock.Lock()
		in.destroyed = true
		in.lock.Unlock()
		if err := closeObject(in.obj); err != nil {
			s.log.Warn("instance close failed", "type", in.entry.name, "id", in.id, "error", err)
		}
	}
	s.log.Debug("instance destroyed", "type", in.entry.name, "id", in.id)
	if s.onDestroy != nil {
		s.onDestroy(in.handle())
	}
}

func closeObject(obj any) (err error) {
	c, ok := obj.(io.Closer)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("close panicked: %v", r)
		}
	}()
	return c.Close()
}

// Reentrant reports whether instance id accepts concurrent invocations.
// Unknown ids report false.
func (s *Session) Reentrant(id uint64) bool {
	in, err := s.get(id)
	return err == nil && in.reentrant
}

// Len returns the number of live instances.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

// Handles lists the live instances.
func (s *Session) Handles() []params.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]params.Handle, 0, len(s.instances))
	for _, in := range s.instances {
		out = append(out, in.handle())
	}
	return out
}
