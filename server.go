// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxfi/objrpc/internal/fifo"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
	"github.com/luxfi/objrpc/registry"
	"github.com/luxfi/objrpc/toolkit"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("objrpc: server closed")

// Server dispatches connections to a sealed type registry and toolkit
// registry. Each connection gets its own registry.Session.
type Server struct {
	reg      *registry.Registry
	toolkits *toolkit.Registry
	log      *slog.Logger
	journal  Journal

	mu        sync.Mutex
	closed    bool
	listeners map[Listener]struct{}
	conns     map[*serverConn]struct{}
	wg        sync.WaitGroup
}

// NewServer seals reg and the toolkit registry; neither may change once
// connections are being served.
func NewServer(reg *registry.Registry, opts ...ServerOption) *Server {
	o := newServerOptions(opts)
	reg.Seal()
	o.toolkits.Seal()
	return &Server{
		reg:       reg,
		toolkits:  o.toolkits,
		log:       o.log,
		journal:   o.journal,
		listeners: make(map[Listener]struct{}),
		conns:     make(map[*serverConn]struct{}),
	}
}

// Toolkits returns the toolkit registry the server runs.
func (s *Server) Toolkits() *toolkit.Registry { return s.toolkits }

// Serve accepts connections on l until ctx is done or the server is
// closed. l is closed on return.
func (s *Server) Serve(ctx context.Context, l Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listeners[l] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.listeners, l)
		s.mu.Unlock()
		l.Close()
	}()
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	s.log.Info("serving", "addr", l.Addr())
	for {
		t, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() || errors.Is(err, ErrListenerClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() { _ = s.ServeTransport(ctx, t) }()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ServeTransport serves one connection until the peer goes away, ctx is
// done or the server is closed. All instances the connection created are
// destroyed before it returns.
func (s *Server) ServeTransport(ctx context.Context, t Transport) error {
	id := newSessionID()
	remote := remoteOf(t)
	log := s.log.With("session", id)

	ctx, cancel := context.WithCancel(ctx)
	sc := &serverConn{
		srv:    s,
		id:     id,
		t:      t,
		log:    log,
		queue:  fifo.New[[]byte](),
		cancel: cancel,
	}
	sc.sess = s.reg.NewSession(
		registry.WithLogger(log),
		registry.WithDestroyHook(func(h params.Handle) { sc.record("destroy", h.String(), 0, nil) }),
	)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		t.Close()
		return ErrServerClosed
	}
	s.conns[sc] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if s.journal != nil {
		if err := s.journal.OpenSession(id, remote); err != nil {
			log.Warn("journal open failed", "error", err)
		}
	}
	log.Info("session opened", "remote", remote)

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		sc.readLoop(ctx)
	}()
	sc.queue.Consume(ctx, func(b []byte) { sc.handle(ctx, b) })

	cancel()
	t.Close()
	<-readerDone
	sc.inflight.Wait()
	reclaimed := sc.sess.Len()
	sc.sess.Close()

	s.mu.Lock()
	delete(s.conns, sc)
	s.mu.Unlock()
	if s.journal != nil {
		if err := s.journal.CloseSession(id); err != nil {
			log.Warn("journal close failed", "error", err)
		}
	}
	log.Info("session closed", "reclaimed", reclaimed)
	return nil
}

func newSessionID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Close stops every listener and connection and waits for their sessions
// to be reclaimed.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for l := range s.listeners {
		l.Close()
	}
	for sc := range s.conns {
		sc.cancel()
		sc.t.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// serverConn is one connection's reader, request queue and worker.
type serverConn struct {
	srv    *Server
	id     string
	t      Transport
	log    *slog.Logger
	sess   *registry.Session
	queue  *fifo.Queue[[]byte]
	cancel context.CancelFunc

	// inflight counts invocations on reentrant instances, which run
	// outside the worker.
	inflight sync.WaitGroup
}

// readLoop feeds the queue until the transport fails. Requests still
// queued at that point are dropped; their answers could not be delivered.
func (sc *serverConn) readLoop(ctx context.Context) {
	defer sc.cancel()
	for {
		b, err := sc.t.Recv(ctx)
		if err != nil {
			if n := sc.queue.Drop(); n > 0 {
				sc.log.Debug("dropped queued requests", "count", n)
			}
			if ctx.Err() == nil && !errors.Is(err, ErrZAPClosed) && !errors.Is(err, ErrStreamClosed) {
				sc.log.Warn("transport failed", "error", err)
			}
			return
		}
		if !sc.queue.Push(b) {
			return
		}
	}
}

func (sc *serverConn) send(ctx context.Context, b []byte) {
	if err := sc.t.Send(ctx, b); err != nil && ctx.Err() == nil {
		sc.log.Debug("send failed", "error", err)
	}
}

func (sc *serverConn) record(op, target string, elapsed time.Duration, err error) {
	if sc.srv.journal == nil {
		return
	}
	if jerr := sc.srv.journal.RecordCall(sc.id, op, target, elapsed, err); jerr != nil {
		sc.log.Warn("journal write failed", "error", jerr)
	}
}

func (sc *serverConn) handle(ctx context.Context, b []byte) {
	f, err := parseFrame(b)
	if err != nil {
		sc.log.Warn("malformed frame", "error", err)
		sc.send(ctx, encodeError(0, err))
		return
	}
	start := time.Now()

	switch f.typ {
	case MsgConstruct:
		name, err := decodeConstruct(f.payload)
		if err != nil {
			sc.reject(ctx, f, err)
			return
		}
		inst, fp, err := sc.sess.CreateInstance(name)
		sc.record("construct", name, time.Since(start), err)
		if err != nil {
			sc.log.Info("construct failed", "type", name, "error", err)
			sc.send(ctx, encodeError(f.id, err))
			return
		}
		sc.send(ctx, encodeConstructed(f.id, inst, fp))

	case MsgInvoke:
		req, err := decodeInvoke(f.payload)
		if err != nil {
			sc.reject(ctx, f, err)
			return
		}
		if sc.sess.Reentrant(req.instance) {
			sc.inflight.Add(1)
			go func() {
				defer sc.inflight.Done()
				sc.invoke(ctx, f.id, req, start)
			}()
			return
		}
		sc.invoke(ctx, f.id, req, start)

	case MsgRetain, MsgRelease:
		inst, err := decodeInstance(f.payload)
		if err != nil {
			sc.reject(ctx, f, err)
			return
		}
		if f.typ == MsgRetain {
			err = sc.sess.Retain(inst)
		} else {
			err = sc.sess.Release(inst)
		}
		sc.record(f.typ.String(), fmt.Sprint(inst), time.Since(start), err)
		sc.send(ctx, encodeResult(f.id, params.Variant{}, err))

	case MsgRun:
		req, err := decodeRun(f.payload)
		if err != nil {
			sc.reject(ctx, f, err)
			return
		}
		resp, err := sc.srv.toolkits.Run(ctx, req.name, req.in)
		if err != nil {
			sc.record("run", req.name, time.Since(start), err)
			sc.send(ctx, encodeError(f.id, err))
			return
		}
		sc.record("run", req.name, time.Since(start), resp.Err())
		out, err := encodeRunResult(f.id, runResult{success: resp.Success, message: resp.Message, out: resp.Params})
		if err != nil {
			sc.send(ctx, encodeError(f.id, err))
			return
		}
		sc.send(ctx, out)

	default:
		sc.reject(ctx, f, objerr.New(objerr.DecodeError, "unknown message type %s", f.typ))
	}
}

// reject answers a request whose payload could not be understood. The
// connection stays up.
func (sc *serverConn) reject(ctx context.Context, f frame, err error) {
	sc.log.Warn("rejected request", "type", f.typ, "error", err)
	sc.send(ctx, encodeError(f.id, err))
}

func (sc *serverConn) invoke(ctx context.Context, rid uint32, req invokeRequest, start time.Time) {
	res, err := sc.sess.Invoke(ctx, req.instance, req.method, req.args)
	target := fmt.Sprintf("%d.%d", req.instance, req.method)
	sc.record("invoke", target, time.Since(start), err)
	if err != nil && objerr.Is(err, objerr.Remote) {
		sc.log.Info("method failed", "instance", req.instance, "method", req.method, "error", err)
	}
	sc.send(ctx, encodeResult(rid, res, err))
}
