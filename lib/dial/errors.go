// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dial

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/bureau-foundation/upty/lib/wire"
)

// ErrConnect matches every [*ConnectError].
var ErrConnect = errors.New("cannot reach upty session manager")

// ErrTimeout is reported when an exchange with the session manager
// outlives the configured timeout.
var ErrTimeout = errors.New("upty session manager did not answer in time")

// ConnectError reports a failed dial of the rendezvous socket.
type ConnectError struct {
	Endpoint string
	Role     wire.Role
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("dialing upty session manager at %s for %s channel: %v", e.Endpoint, e.Role, e.Err)
}

// Is reports whether target is [ErrConnect].
func (e *ConnectError) Is(target error) bool {
	return target == ErrConnect
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a timeout from any channel kind:
// [ErrTimeout] from raw descriptors, or a deadline or dial timeout from
// a control channel.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netError net.Error
	return errors.As(err, &netError) && netError.Timeout()
}
