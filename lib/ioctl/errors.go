// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ioctl

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/dial"
	"github.com/bureau-foundation/upty/lib/identity"
	"github.com/bureau-foundation/upty/lib/wire"
)

// ErrNotMaster is returned when TIOCGPTPEER is issued on a descriptor
// whose identity is a slave. No channel is opened.
var ErrNotMaster = errors.New("companion endpoint requested on a slave")

// RemoteError reports a request the session manager answered with a
// negative return code.
type RemoteError struct {
	Request  uint
	Identity identity.Identity

	// ReturnCode is the negative value the manager returned.
	ReturnCode int32

	// Code is the manager's error code, an errno value.
	Code unix.Errno
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ioctl %#x on %v: session manager returned %d: %v", e.Request, e.Identity, e.ReturnCode, e.Code)
}

// Unwrap returns the errno so that errors.Is(err, unix.EIO) and
// similar checks work.
func (e *RemoteError) Unwrap() error {
	return e.Code
}

// Errno maps err onto the errno a native caller observes. Nil maps to
// 0.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var remoteError *RemoteError
	if errors.As(err, &remoteError) {
		return remoteError.Code
	}
	switch {
	case errors.Is(err, ErrNotMaster):
		return unix.EINVAL
	case dial.IsTimeout(err):
		return unix.ETIMEDOUT
	case errors.Is(err, wire.ErrProtocolViolation), errors.Is(err, dial.ErrConnect):
		return unix.EIO
	}
	// Pass-through failures and local argument errors carry their own
	// errno.
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}
