// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"io"
)

// byteOrder is the host's native order. Both ends of every connection
// share a kernel, so no canonical order is needed.
var byteOrder = binary.NativeEndian

// readField fills buffer from r or returns a ProtocolError naming
// field. io.ReadFull already retries short reads; anything it returns
// is a genuine truncation.
func readField(r io.Reader, field string, buffer []byte) error {
	count, err := io.ReadFull(r, buffer)
	if err != nil {
		return &ProtocolError{Field: field, Want: len(buffer), Got: count, Err: err}
	}
	return nil
}

// writeField writes all of buffer to w or returns a ProtocolError
// naming field.
func writeField(w io.Writer, field string, buffer []byte) error {
	count, err := w.Write(buffer)
	if err == nil && count < len(buffer) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &ProtocolError{Field: field, Want: len(buffer), Got: count, Err: err}
	}
	return nil
}
