// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/objrpc/internal/wire"
	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
)

// MessageType identifies a frame.
type MessageType uint8

const (
	MsgConstruct   MessageType = 0x01
	MsgConstructed MessageType = 0x02
	MsgInvoke      MessageType = 0x03
	MsgResult      MessageType = 0x04
	MsgRetain      MessageType = 0x05
	MsgRelease     MessageType = 0x06
	MsgRun         MessageType = 0x07
	MsgRunResult   MessageType = 0x08
	MsgError       MessageType = 0x09
)

var messageNames = map[MessageType]string{
	MsgConstruct:   "construct",
	MsgConstructed: "constructed",
	MsgInvoke:      "invoke",
	MsgResult:      "result",
	MsgRetain:      "retain",
	MsgRelease:     "release",
	MsgRun:         "run",
	MsgRunResult:   "run-result",
	MsgError:       "error",
}

func (t MessageType) String() string {
	if n, ok := messageNames[t]; ok {
		return n
	}
	return fmt.Sprintf("MessageType(0x%02x)", uint8(t))
}

// Result status byte.
const (
	statusOK    uint8 = 0
	statusError uint8 = 1
)

// headerLen is [type u8][request id u32 BE].
const headerLen = 5

// frame is one decoded message.
type frame struct {
	typ     MessageType
	id      uint32
	payload []byte
}

func newFrame(t MessageType, id uint32, sizeHint int) []byte {
	b := make([]byte, headerLen, headerLen+sizeHint)
	b[0] = byte(t)
	binary.BigEndian.PutUint32(b[1:headerLen], id)
	return b
}

func parseFrame(b []byte) (frame, error) {
	if len(b) < headerLen {
		return frame{}, objerr.Decode(len(b), "frame of %d bytes is shorter than its header", len(b))
	}
	return frame{
		typ:     MessageType(b[0]),
		id:      binary.BigEndian.Uint32(b[1:headerLen]),
		payload: b[headerLen:],
	}, nil
}

func encodeConstruct(id uint32, typeName string) []byte {
	return wire.AppendString(newFrame(MsgConstruct, id, 4+len(typeName)), typeName)
}

func decodeConstruct(p []byte) (string, error) {
	r := wire.NewReader(p)
	name, err := r.String("type name")
	if err != nil {
		return "", err
	}
	return name, r.Done()
}

func encodeConstructed(id uint32, instance, fingerprint uint64) []byte {
	b := newFrame(MsgConstructed, id, 16)
	b = wire.AppendU64(b, instance)
	return wire.AppendU64(b, fingerprint)
}

func decodeConstructed(p []byte) (instance, fingerprint uint64, err error) {
	r := wire.NewReader(p)
	if instance, err = r.U64("instance id"); err != nil {
		return 0, 0, err
	}
	if fingerprint, err = r.U64("fingerprint"); err != nil {
		return 0, 0, err
	}
	return instance, fingerprint, r.Done()
}

type invokeRequest struct {
	instance uint64
	method   uint32
	args     []params.Variant
}

func encodeInvoke(id uint32, req invokeRequest) ([]byte, error) {
	b := newFrame(MsgInvoke, id, 16+16*len(req.args))
	b = wire.AppendU64(b, req.instance)
	b = wire.AppendU32(b, req.method)
	b = wire.AppendU32(b, uint32(len(req.args)))
	for i, a := range req.args {
		var err error
		if b, err = params.AppendVariant(b, a); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return b, nil
}

func decodeInvoke(p []byte) (invokeRequest, error) {
	r := wire.NewReader(p)
	var (
		req invokeRequest
		err error
	)
	if req.instance, err = r.U64("instance id"); err != nil {
		return req, err
	}
	if req.method, err = r.U32("method index"); err != nil {
		return req, err
	}
	// Every variant carries at least a tag byte.
	n, err := r.Count("argument count", 1)
	if err != nil {
		return req, err
	}
	req.args = make([]params.Variant, n)
	for i := range req.args {
		if req.args[i], err = params.ReadVariant(r); err != nil {
			return req, err
		}
	}
	return req, r.Done()
}

func encodeInstance(t MessageType, id uint32, instance uint64) []byte {
	return wire.AppendU64(newFrame(t, id, 8), instance)
}

func decodeInstance(p []byte) (uint64, error) {
	r := wire.NewReader(p)
	instance, err := r.U64("instance id")
	if err != nil {
		return 0, err
	}
	return instance, r.Done()
}

// encodeResult answers an invoke, retain or release. An invalid res means
// the call produced no value.
func encodeResult(id uint32, res params.Variant, callErr error) []byte {
	b := newFrame(MsgResult, id, 16)
	if callErr != nil {
		b = wire.AppendU8(b, statusError)
		return appendError(b, callErr)
	}
	if !res.IsValid() {
		b = wire.AppendU8(b, statusOK)
		return wire.AppendU8(b, 0)
	}
	withResult := wire.AppendU8(wire.AppendU8(b, statusOK), 1)
	out, err := params.AppendVariant(withResult, res)
	if err != nil {
		b = wire.AppendU8(b, statusError)
		return appendError(b, err)
	}
	return out
}

// decodeResult returns the call's value or the remote error. A malformed
// payload returns a DecodeError.
func decodeResult(p []byte) (params.Variant, *objerr.Error, error) {
	r := wire.NewReader(p)
	status, err := r.U8("status")
	if err != nil {
		return params.Variant{}, nil, err
	}
	switch status {
	case statusOK:
		has, err := r.U8("result flag")
		if err != nil {
			return params.Variant{}, nil, err
		}
		var v params.Variant
		if has != 0 {
			if v, err = params.ReadVariant(r); err != nil {
				return params.Variant{}, nil, err
			}
		}
		return v, nil, r.Done()
	case statusError:
		remote, err := readError(r)
		if err != nil {
			return params.Variant{}, nil, err
		}
		return params.Variant{}, remote, r.Done()
	default:
		return params.Variant{}, nil, objerr.Decode(0, "unknown result status %d", status)
	}
}

type runRequest struct {
	name string
	in   *params.Bag
}

func encodeRun(id uint32, req runRequest) ([]byte, error) {
	b := wire.AppendString(newFrame(MsgRun, id, 32), req.name)
	return params.Append(b, req.in)
}

func decodeRun(p []byte) (runRequest, error) {
	r := wire.NewReader(p)
	name, err := r.String("toolkit name")
	if err != nil {
		return runRequest{}, err
	}
	in, err := params.Read(r)
	if err != nil {
		return runRequest{}, err
	}
	return runRequest{name: name, in: in}, r.Done()
}

type runResult struct {
	success bool
	message string
	out     *params.Bag
}

func encodeRunResult(id uint32, res runResult) ([]byte, error) {
	b := newFrame(MsgRunResult, id, 32)
	var ok uint8
	if res.success {
		ok = 1
	}
	b = wire.AppendU8(b, ok)
	b = wire.AppendString(b, res.message)
	return params.Append(b, res.out)
}

func decodeRunResult(p []byte) (runResult, error) {
	r := wire.NewReader(p)
	ok, err := r.U8("success")
	if err != nil {
		return runResult{}, err
	}
	msg, err := r.String("message")
	if err != nil {
		return runResult{}, err
	}
	out, err := params.Read(r)
	if err != nil {
		return runResult{}, err
	}
	return runResult{success: ok != 0, message: msg, out: out}, r.Done()
}

func encodeError(id uint32, err error) []byte {
	return appendError(newFrame(MsgError, id, 16), err)
}

func decodeError(p []byte) (*objerr.Error, error) {
	r := wire.NewReader(p)
	e, err := readError(r)
	if err != nil {
		return nil, err
	}
	return e, r.Done()
}

// appendError writes [kind u8][message]. Errors without a kind travel as
// Remote.
func appendError(b []byte, err error) []byte {
	kind := objerr.KindOf(err)
	if kind == objerr.Unknown {
		kind = objerr.Remote
	}
	b = wire.AppendU8(b, uint8(kind))
	return wire.AppendString(b, err.Error())
}

func readError(r *wire.Reader) (*objerr.Error, error) {
	k, err := r.U8("error kind")
	if err != nil {
		return nil, err
	}
	msg, err := r.String("error message")
	if err != nil {
		return nil, err
	}
	kind := objerr.Kind(k)
	if !kind.Valid() || kind == objerr.Unknown {
		kind = objerr.Remote
	}
	return &objerr.Error{Kind: kind, Msg: msg}, nil
}
