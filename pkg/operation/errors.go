// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package operation

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable category for programmatic error handling. Callers
// should branch on Kind rather than matching error strings.
type Kind string

const (
	// KindParse means tool output did not match the expected layout.
	KindParse Kind = "Parse"
	// KindAuthentication means the credential was rejected. Retrying with
	// the right passphrase is safe.
	KindAuthentication Kind = "Authentication"
	// KindLockedOut means the drive refuses further attempts until it is
	// power cycled.
	KindLockedOut Kind = "LockedOut"
	// KindStep means a command failed without a more specific signal.
	KindStep Kind = "Step"
	// KindVerification means the drive state contradicts a reported
	// success.
	KindVerification Kind = "Verification"
	// KindTimeout means the operation outlived its time bound. The work
	// itself continues. The engine never returns it: a timeout reaches
	// callers as session.EventTimedOut, not as a failed Result.
	KindTimeout Kind = "Timeout"
	// KindPrecondition means the device is in the wrong state for the
	// operation. Nothing was run.
	KindPrecondition Kind = "Precondition"
	// KindValidation means a passphrase or PSID was rejected before use.
	KindValidation Kind = "Validation"
)

// Error is the structured error of a failed operation.
type Error struct {
	Kind Kind
	Op   Op
	// Step is the flag of the command that failed, if any.
	Step string
	// Statuses holds the exit status of every step run, in order.
	Statuses []int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Op.String())
	if e.Step != "" {
		fmt.Fprintf(&b, " (%s)", e.Step)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of err, or "" for unstructured errors.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
