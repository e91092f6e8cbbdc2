// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package objerr defines the error kinds shared by every layer of objrpc.
//
// A remote caller only ever sees an error message, so every Error carries a
// human-readable Msg that is preserved verbatim across the connection. The
// Kind travels alongside it so the client can re-raise an equivalent error.
package objerr

import (
	"errors"
	"fmt"
)

// Kind classifies an objrpc error.
type Kind uint8

const (
	Unknown Kind = iota
	TypeMismatch
	KeyNotFound
	DecodeError
	UnknownType
	UnknownInstance
	MethodIndexOutOfRange
	ConnectionLost
	ConfigurationError
	ToolkitExecutionError
	UnknownToolkit
	Remote
	Arithmetic
)

var kindNames = [...]string{
	Unknown:               "Unknown",
	TypeMismatch:          "TypeMismatch",
	KeyNotFound:           "KeyNotFound",
	DecodeError:           "DecodeError",
	UnknownType:           "UnknownType",
	UnknownInstance:       "UnknownInstance",
	MethodIndexOutOfRange: "MethodIndexOutOfRange",
	ConnectionLost:        "ConnectionLost",
	ConfigurationError:    "ConfigurationError",
	ToolkitExecutionError: "ToolkitExecutionError",
	UnknownToolkit:        "UnknownToolkit",
	Remote:                "Remote",
	Arithmetic:            "Arithmetic",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind returns the kind named name. Unknown names report false.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return Unknown, false
}

// Valid reports whether k is a known kind. Kinds read off the wire are
// checked with Valid before use.
func (k Kind) Valid() bool { return int(k) < len(kindNames) }

// Error is the concrete error type returned by objrpc packages.
type Error struct {
	Kind Kind
	Msg  string
}

// Error returns the message verbatim so that the text a remote caller sees
// is exactly what the server produced.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

// Is matches any *Error of the same kind, which lets the sentinels below be
// used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is.
var (
	ErrTypeMismatch          = &Error{Kind: TypeMismatch}
	ErrKeyNotFound           = &Error{Kind: KeyNotFound}
	ErrDecode                = &Error{Kind: DecodeError}
	ErrUnknownType           = &Error{Kind: UnknownType}
	ErrUnknownInstance       = &Error{Kind: UnknownInstance}
	ErrMethodIndexOutOfRange = &Error{Kind: MethodIndexOutOfRange}
	ErrConnectionLost        = &Error{Kind: ConnectionLost}
	ErrConfiguration         = &Error{Kind: ConfigurationError}
	ErrToolkitExecution      = &Error{Kind: ToolkitExecutionError}
	ErrUnknownToolkit        = &Error{Kind: UnknownToolkit}
	ErrRemote                = &Error{Kind: Remote}
	ErrArithmetic            = &Error{Kind: Arithmetic}
)

// KindOf returns the kind of err, or Unknown if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return Unknown
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Decode builds a DecodeError that reports where in the input it occurred.
func Decode(offset int, format string, args ...any) *Error {
	return &Error{
		Kind: DecodeError,
		Msg:  fmt.Sprintf("decode error at offset %d: %s", offset, fmt.Sprintf(format, args...)),
	}
}
