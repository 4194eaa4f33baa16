// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"testing"
	"unsafe"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// kernelWriteLength issues request on fd into a canary-filled buffer
// twice, with different canaries, and returns the length of the prefix
// the kernel wrote. A byte counts as written when it differs from the
// canary in either run.
func kernelWriteLength(t *testing.T, fd uintptr, request uint) int {
	t.Helper()
	const bufferSize = 128
	var runs [2][bufferSize]byte
	for run, canary := range []byte{0xaa, 0x55} {
		for i := range runs[run] {
			runs[run][i] = canary
		}
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(request), uintptr(unsafe.Pointer(&runs[run][0])))
		if errno != 0 {
			t.Fatalf("ioctl %#x: %v", request, errno)
		}
	}
	written := 0
	for i := range bufferSize {
		if runs[0][i] != 0xaa || runs[1][i] != 0x55 {
			written = i + 1
		}
	}
	return written
}

func TestPayloadSizesMatchKernel(t *testing.T) {
	t.Parallel()

	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("host pty unavailable: %v", err)
	}
	t.Cleanup(func() {
		master.Close()
		slave.Close()
	})

	tests := []struct {
		name    string
		request uint
		argType ArgType
	}{
		{"TCGETS", unix.TCGETS, ArgTermiosPointer},
		{"TIOCGWINSZ", unix.TIOCGWINSZ, ArgWinsizePointer},
		{"TIOCGPTN", unix.TIOCGPTN, ArgIntPointer},
	}
	for _, test := range tests {
		got := kernelWriteLength(t, master.Fd(), test.request)
		if got != test.argType.PayloadSize() {
			t.Errorf("%s: kernel wrote %d bytes, %s payload is %d", test.name, got, test.argType, test.argType.PayloadSize())
		}
	}
}
