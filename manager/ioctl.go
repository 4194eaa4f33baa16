// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/lib/wire"
)

// acknowledged requests would act on the manager's own session rather
// than the client's, so they succeed without effect.
var acknowledged = map[uint]bool{
	unix.TIOCSCTTY:   true,
	unix.TIOCNOTTY:   true,
	unix.TIOCSPGRP:   true,
	unix.TIOCCONS:    true,
	unix.TIOCVHANGUP: true,
}

// ioctlResult labels the outcome of a request in metrics.
type ioctlResult string

const (
	ioctlApplied         ioctlResult = "applied"
	ioctlFailed          ioctlResult = "failed"
	ioctlAcknowledged    ioctlResult = "acknowledged"
	ioctlUnknownInstance ioctlResult = "unknown_instance"
	ioctlRejected        ioctlResult = "rejected"
)

// applyIoctl performs request on file and builds the response. The
// request payload is the starting image for pointer shapes.
func applyIoctl(file *os.File, request wire.IoctlRequest) (wire.IoctlResponse, ioctlResult) {
	var response wire.IoctlResponse
	if request.ArgType.IsPointer() {
		response.Image = append([]byte(nil), request.Payload...)
	}

	if acknowledged[request.RequestCode] {
		return response, ioctlAcknowledged
	}

	var argument facility.Argument
	switch {
	case request.ArgType.IsPointer():
		argument = facility.PointerArgument(unsafe.Pointer(&response.Image[0]))
	case request.ArgType == wire.ArgInt:
		argument = facility.ValueArgument(uintptr(wire.DecodeInt(request.Payload)))
	}

	rawConn, err := file.SyscallConn()
	if err != nil {
		return failure(response, err), ioctlFailed
	}
	var result int
	var ioctlErr error
	controlErr := rawConn.Control(func(fd uintptr) {
		result, ioctlErr = facility.System{}.Ioctl(int(fd), request.RequestCode, argument)
	})
	if controlErr != nil {
		return failure(response, controlErr), ioctlFailed
	}
	if ioctlErr != nil {
		return failure(response, ioctlErr), ioctlFailed
	}
	response.ReturnCode = int32(result)
	return response, ioctlApplied
}

// failure marks response as failed with the errno carried by err.
func failure(response wire.IoctlResponse, err error) wire.IoctlResponse {
	response.ReturnCode = -1
	response.ErrorCode = int32(errnoOf(err))
	return response
}

func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}

// unknownInstance answers a request for an instance that does not
// exist.
func unknownInstance(request wire.IoctlRequest) wire.IoctlResponse {
	return rejected(request, unix.ENXIO)
}

// rejected answers request with errno without touching any device.
// The image is echoed unchanged.
func rejected(request wire.IoctlRequest, errno unix.Errno) wire.IoctlResponse {
	response := wire.IoctlResponse{ReturnCode: -1, ErrorCode: int32(errno)}
	if request.ArgType.IsPointer() {
		response.Image = append([]byte(nil), request.Payload...)
	}
	return response
}
