// Copyright (c) 2024 The alsanna authors. MIT License.

// Package alerr provides the small, coded error type used across alsanna's
// components, in the manner of nabbar-golib/errors: a stable string code
// plus an optional parent error, trimmed from that package's HTTP-status
// hierarchy and gin integration down to the handful of failure modes the
// proxy's error-handling design actually distinguishes.
package alerr

import "fmt"

// Code classifies a failure the way §7 categorizes error handling policy.
type Code string

const (
	CodeHandlerSetup Code = "handler_setup"
	CodeDecode       Code = "decode"
	CodeEncode       Code = "encode"
	CodeSend         Code = "send"
	CodeCA           Code = "ca"
	CodeEditor       Code = "editor"
	CodeListener     Code = "listener"
)

// Error is a coded error with an optional parent for context chaining.
type Error struct {
	Code    Code
	Summary string
	Parent  error
}

func (e *Error) Error() string {
	if e.Parent != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Summary, e.Parent)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Summary)
}

func (e *Error) Unwrap() error {
	return e.Parent
}

// New builds a coded error with no parent.
func New(code Code, summary string) *Error {
	return &Error{Code: code, Summary: summary}
}

// Wrap builds a coded error around an existing error.
func Wrap(code Code, summary string, parent error) *Error {
	return &Error{Code: code, Summary: summary, Parent: parent}
}

// Detail renders the (summary, detail) pair the UI Coordinator prints for
// "Err" display messages: a short headline plus the full parent chain.
func (e *Error) Detail() (summary string, detail string) {
	if e.Parent != nil {
		return e.Summary, e.Parent.Error()
	}
	return e.Summary, ""
}
