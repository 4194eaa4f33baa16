// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/identity"
	"github.com/bureau-foundation/upty/lib/wire"
)

func TestApplyIoctlWinsize(t *testing.T) {
	t.Parallel()
	requireHostPTY(t)

	master, slave, err := pty.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer master.Close()
	defer slave.Close()

	want := unix.Winsize{Row: 40, Col: 132}
	image := unsafe.Slice((*byte)(unsafe.Pointer(&want)), unsafe.Sizeof(want))
	response, result := applyIoctl(master, wire.IoctlRequest{
		Half:        identity.Master,
		RequestCode: unix.TIOCSWINSZ,
		ArgType:     wire.ArgWinsizePointer,
		Payload:     append([]byte(nil), image...),
	})
	if result != ioctlApplied || response.ReturnCode != 0 {
		t.Fatalf("TIOCSWINSZ = %s/%d", result, response.ReturnCode)
	}

	response, result = applyIoctl(slave, wire.IoctlRequest{
		Half:        identity.Slave,
		RequestCode: unix.TIOCGWINSZ,
		ArgType:     wire.ArgWinsizePointer,
		Payload:     make([]byte, len(image)),
	})
	if result != ioctlApplied {
		t.Fatalf("TIOCGWINSZ result = %s", result)
	}
	got := *(*unix.Winsize)(unsafe.Pointer(&response.Image[0]))
	if got.Row != want.Row || got.Col != want.Col {
		t.Errorf("window size = %dx%d, want %dx%d", got.Col, got.Row, want.Col, want.Row)
	}
}

func TestApplyIoctlIntArgument(t *testing.T) {
	t.Parallel()
	requireHostPTY(t)

	master, slave, err := pty.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer master.Close()
	defer slave.Close()

	// TCFLSH with TCIFLUSH succeeds on either half.
	response, result := applyIoctl(master, wire.IoctlRequest{
		RequestCode: unix.TCFLSH,
		ArgType:     wire.ArgInt,
		Payload:     wire.EncodeInt(unix.TCIFLUSH),
	})
	if result != ioctlApplied || response.ReturnCode != 0 {
		t.Errorf("TCFLSH = %s/%d errno %v", result, response.ReturnCode, unix.Errno(response.ErrorCode))
	}
	if response.Image != nil {
		t.Errorf("Int request produced image %v", response.Image)
	}
}

func TestApplyIoctlFailureCarriesErrno(t *testing.T) {
	t.Parallel()
	requireHostPTY(t)

	master, slave, err := pty.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer master.Close()
	defer slave.Close()

	response, result := applyIoctl(master, wire.IoctlRequest{
		RequestCode: unix.TCFLSH,
		ArgType:     wire.ArgInt,
		Payload:     wire.EncodeInt(99),
	})
	if result != ioctlFailed || response.ReturnCode != -1 {
		t.Fatalf("TCFLSH(99) = %s/%d, want failure", result, response.ReturnCode)
	}
	if unix.Errno(response.ErrorCode) != unix.EINVAL {
		t.Errorf("errno = %v, want EINVAL", unix.Errno(response.ErrorCode))
	}
}

func TestApplyIoctlAcknowledged(t *testing.T) {
	t.Parallel()
	requireHostPTY(t)

	master, slave, err := pty.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer master.Close()
	defer slave.Close()

	for _, request := range []uint{unix.TIOCSCTTY, unix.TIOCNOTTY, unix.TIOCVHANGUP} {
		response, result := applyIoctl(slave, wire.IoctlRequest{
			RequestCode: request,
			ArgType:     wire.ArgNone,
		})
		if result != ioctlAcknowledged || response.ReturnCode != 0 {
			t.Errorf("request 0x%x = %s/%d, want acknowledged", request, result, response.ReturnCode)
		}
	}

	pgrp := make([]byte, 4)
	binary.NativeEndian.PutUint32(pgrp, 12345)
	response, result := applyIoctl(slave, wire.IoctlRequest{
		RequestCode: unix.TIOCSPGRP,
		ArgType:     wire.ArgIntPointer,
		Payload:     pgrp,
	})
	if result != ioctlAcknowledged || string(response.Image) != string(pgrp) {
		t.Errorf("TIOCSPGRP = %s image %v, want acknowledged echo", result, response.Image)
	}
}

func TestRejectedEchoesImage(t *testing.T) {
	t.Parallel()

	payload := []byte{1, 2, 3, 4}
	response := rejected(wire.IoctlRequest{ArgType: wire.ArgIntPointer, Payload: payload}, unix.EINVAL)
	if response.ReturnCode != -1 || unix.Errno(response.ErrorCode) != unix.EINVAL {
		t.Errorf("response = %d/%d", response.ReturnCode, response.ErrorCode)
	}
	if string(response.Image) != string(payload) {
		t.Errorf("Image = %v, want %v", response.Image, payload)
	}
	if response := unknownInstance(wire.IoctlRequest{ArgType: wire.ArgInt, Payload: payload}); response.Image != nil || unix.Errno(response.ErrorCode) != unix.ENXIO {
		t.Errorf("unknownInstance(Int) = %+v", response)
	}
}

func TestDevptsIndex(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name    string
		want    uint32
		wantErr bool
	}{
		{"/dev/pts/0", 0, false},
		{"/dev/pts/17", 17, false},
		{"/dev/pts/x", 0, true},
		{"/dev/tty1", 0, true},
	} {
		got, err := devptsIndex(test.name)
		if (err != nil) != test.wantErr || got != test.want {
			t.Errorf("devptsIndex(%q) = %d, %v", test.name, got, err)
		}
	}
}
