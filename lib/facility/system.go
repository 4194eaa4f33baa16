// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package facility

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// System is the [Facility] backed directly by the kernel.
type System struct{}

var _ Facility = System{}

// Ioctl implements [Facility].
func (System) Ioctl(fd int, request uint, argument Argument) (int, error) {
	var result uintptr
	var errno unix.Errno
	if argument.Pointer != nil {
		result, _, errno = unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), uintptr(argument.Pointer))
	} else {
		result, _, errno = unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), argument.Value)
	}
	if errno != 0 {
		return -1, errno
	}
	return int(result), nil
}

// Open implements [Facility].
func (System) Open(path string, flags int, mode uint32) (int, error) {
	return unix.Open(path, flags, mode)
}

// Dup implements [Facility].
func (System) Dup(fd int) (int, error) {
	return unix.Dup(fd)
}

// Dup2 implements [Facility]. dup3 refuses fd == target where dup2
// returns target after checking fd is open; that case is handled with
// fcntl so the result matches dup2 on every architecture.
func (System) Dup2(fd, target int) (int, error) {
	if fd == target {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
			return -1, err
		}
		return target, nil
	}
	if err := unix.Dup3(fd, target, 0); err != nil {
		return -1, err
	}
	return target, nil
}

// Dup3 implements [Facility].
func (System) Dup3(fd, target, flags int) (int, error) {
	if err := unix.Dup3(fd, target, flags); err != nil {
		return -1, err
	}
	return target, nil
}

// Close implements [Facility].
func (System) Close(fd int) error {
	return unix.Close(fd)
}

// IsTerminal implements [Facility].
func (System) IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// Ptsname implements [Facility].
func (System) Ptsname(fd int) (string, error) {
	number, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	if err != nil {
		return "", err
	}
	return "/dev/pts/" + strconv.FormatUint(uint64(number), 10), nil
}

// Ttyname implements [Facility].
func (System) Ttyname(fd int) (string, error) {
	if !term.IsTerminal(fd) {
		return "", unix.ENOTTY
	}
	path, err := os.Readlink(fmt.Sprintf("/proc/self/fd/%d", fd))
	if err != nil {
		return "", fmt.Errorf("resolving terminal path for fd %d: %w", fd, err)
	}
	return path, nil
}

// Grantpt implements [Facility]. On devpts the slave is created with
// the right owner and mode, so grantpt only has to confirm fd is a PTY
// master.
func (System) Grantpt(fd int) error {
	_, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	return err
}

// Unlockpt implements [Facility].
func (System) Unlockpt(fd int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0)
}

// Tcgetpgrp implements [Facility].
func (System) Tcgetpgrp(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCGPGRP)
}
