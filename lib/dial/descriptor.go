// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dial

import (
	"io"
	"time"

	"golang.org/x/sys/unix"
)

// descriptorConn adapts a raw socket descriptor to io.Reader and
// io.Writer for the handshake. It never closes the descriptor.
type descriptorConn int

func (c descriptorConn) Read(buffer []byte) (int, error) {
	for {
		count, err := unix.Read(int(c), buffer)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			// SO_RCVTIMEO expired.
			return 0, ErrTimeout
		case err != nil:
			return 0, err
		case count == 0 && len(buffer) > 0:
			return 0, io.EOF
		}
		return count, nil
	}
}

func (c descriptorConn) Write(buffer []byte) (int, error) {
	written := 0
	for written < len(buffer) {
		count, err := unix.Write(int(c), buffer[written:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return written, ErrTimeout
		case err != nil:
			return written, err
		}
		written += count
	}
	return written, nil
}

// setHandshakeTimeout bounds blocking reads and writes on fd. A zero
// timeout restores indefinite blocking.
func setHandshakeTimeout(fd int, timeout time.Duration) error {
	timeval := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &timeval); err != nil {
		return err
	}
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &timeval)
}
