// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/objrpc/objerr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran and reported failure
	ExitCommandError = 2 // bad input, unreachable server, unreadable file
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Errors without one exit
// with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Output writes command results as text or as a JSON envelope.
type Output struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope.
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error is the error member of Response. Kind is the objerr kind name.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Success writes data. In text mode text is called to render it.
func (o *Output) Success(data any, text func(w io.Writer)) error {
	if o.Format == "json" {
		return json.NewEncoder(o.Writer).Encode(Response{Status: "ok", Data: data})
	}
	text(o.Writer)
	return nil
}

// Failure writes err.
func (o *Output) Failure(err error) error {
	kind := objerr.KindOf(err)
	if o.Format == "json" {
		return json.NewEncoder(o.Writer).Encode(Response{
			Status: "error",
			Error:  &Error{Kind: kind.String(), Message: err.Error()},
		})
	}
	fmt.Fprintf(o.Writer, "Error [%s]: %v\n", kind, err)
	return nil
}
