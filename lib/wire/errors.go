// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation matches every [*ProtocolError].
var ErrProtocolViolation = errors.New("upty protocol violation")

// ProtocolError reports a frame field that could not be transferred in
// full or carried an invalid value.
type ProtocolError struct {
	// Field names the frame field being transferred ("version",
	// "return code", "payload", ...).
	Field string

	// Want and Got are the expected and actual byte counts for short
	// transfers. Both are zero for value errors.
	Want int
	Got  int

	// Err is the underlying cause: an I/O error for short transfers, a
	// description for invalid values.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("%v: %s: transferred %d of %d bytes: %v", ErrProtocolViolation, e.Field, e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrProtocolViolation, e.Field, e.Err)
}

// Is reports whether target is [ErrProtocolViolation].
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolViolation
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// invalidField builds a value error for field.
func invalidField(field string, format string, args ...any) *ProtocolError {
	return &ProtocolError{Field: field, Err: fmt.Errorf(format, args...)}
}
