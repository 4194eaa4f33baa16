// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"io"
)

// bridgeCopyResult holds the outcome of one direction of a bidirectional copy.
type bridgeCopyResult struct {
	bytesCopied int64
	err         error
}

// BridgeResult reports what a finished [Bridge] transferred.
type BridgeResult struct {
	// BytesAToB and BytesBToA count the bytes copied in each direction.
	BytesAToB int64
	BytesBToA int64
}

// Bridge copies data bidirectionally between a and b.
//
// Returns when either direction finishes. Both streams are closed before
// returning to unblock the surviving goroutine. Returns the error from the
// direction that terminated first, or nil if termination was due to normal
// closure (EOF, peer disconnect, broken pipe, connection reset, or the
// EIO a PTY master reports once its slave is gone).
func Bridge(a, b io.ReadWriteCloser) (BridgeResult, error) {
	aToB := make(chan bridgeCopyResult, 1)
	bToA := make(chan bridgeCopyResult, 1)

	go func() {
		bytesCopied, err := io.Copy(b, a)
		aToB <- bridgeCopyResult{bytesCopied, err}
	}()

	go func() {
		bytesCopied, err := io.Copy(a, b)
		bToA <- bridgeCopyResult{bytesCopied, err}
	}()

	// Wait for one direction to finish, then close both to unblock the other.
	var first bridgeCopyResult
	var result BridgeResult
	select {
	case first = <-aToB:
		a.Close()
		b.Close()
		result.BytesAToB = first.bytesCopied
		result.BytesBToA = (<-bToA).bytesCopied
	case first = <-bToA:
		a.Close()
		b.Close()
		result.BytesBToA = first.bytesCopied
		result.BytesAToB = (<-aToB).bytesCopied
	}

	if first.err != nil && !IsExpectedCloseError(first.err) {
		return result, first.err
	}
	return result, nil
}
