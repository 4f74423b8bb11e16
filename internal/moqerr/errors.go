// Package moqerr defines the single tagged error type that crosses every
// layer of the core: wire codec, data model, origin registry, stream
// engine, and session (internal/cache reports closure with its own
// ErrClosed). Every error kind maps to a stable 32-bit
// code used on stream resets and session closure (spec §7).
package moqerr

import (
	"errors"
	"fmt"
)

// Code is a stable, wire-visible error code.
type Code uint32

// Defined codes, per the spec's error table. Codes 64 and above are
// reserved for application-defined errors; use App to construct one.
const (
	Cancel            Code = 0
	RequiredExtension Code = 1
	Old               Code = 2
	Timeout           Code = 3
	Transport         Code = 4
	Decode            Code = 5
	Version           Code = 9
	UnexpectedStream  Code = 10
	BoundsExceeded    Code = 11
	Duplicate         Code = 12
	NotFound          Code = 13
	WrongSize         Code = 14
	ProtocolViolation Code = 15

	appBase Code = 64
)

// App returns the code for application-defined error n.
func App(n uint32) Code {
	return appBase + Code(n)
}

// IsApp reports whether c is an application-defined code, returning its n.
func (c Code) IsApp() (n uint32, ok bool) {
	if c < appBase {
		return 0, false
	}
	return uint32(c - appBase), true
}

var names = map[Code]string{
	Cancel:            "cancel",
	RequiredExtension: "required extension",
	Old:               "old",
	Timeout:           "timeout",
	Transport:         "transport",
	Decode:            "decode",
	Version:           "version",
	UnexpectedStream:  "unexpected stream",
	BoundsExceeded:    "bounds exceeded",
	Duplicate:         "duplicate",
	NotFound:          "not found",
	WrongSize:         "wrong size",
	ProtocolViolation: "protocol violation",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if n, ok := c.IsApp(); ok {
		return fmt.Sprintf("app(%d)", n)
	}
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", uint32(c))
}

// Error wraps a Code with context. It is the concrete error type returned
// by every public operation in this module that can fail with a
// spec-defined code.
type Error struct {
	Code Code
	Err  error // optional wrapped cause; may be nil
}

// New returns an *Error for the given code with no wrapped cause.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap returns an *Error for the given code, wrapping err for context.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("moq: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("moq: %s", e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error. A
// nil err yields Cancel; any other error yields Transport — the
// catch-all for errors that originated outside this module (e.g. a raw
// I/O failure).
func CodeOf(err error) Code {
	if err == nil {
		return Cancel
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Transport
}
