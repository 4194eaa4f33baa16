// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package ioctl

import (
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/wire"
)

// table classifies the terminal requests upty forwards. The argument
// shape decides how many bytes travel in each direction.
var table = map[uint]wire.ArgType{
	// struct termios.
	unix.TCGETS:         wire.ArgTermiosPointer,
	unix.TCSETS:         wire.ArgTermiosPointer,
	unix.TCSETSW:        wire.ArgTermiosPointer,
	unix.TCSETSF:        wire.ArgTermiosPointer,
	unix.TIOCGLCKTRMIOS: wire.ArgTermiosPointer,
	unix.TIOCSLCKTRMIOS: wire.ArgTermiosPointer,

	// struct termio.
	unix.TCGETA:  wire.ArgTermioPointer,
	unix.TCSETA:  wire.ArgTermioPointer,
	unix.TCSETAW: wire.ArgTermioPointer,
	unix.TCSETAF: wire.ArgTermioPointer,

	// struct winsize.
	unix.TIOCGWINSZ: wire.ArgWinsizePointer,
	unix.TIOCSWINSZ: wire.ArgWinsizePointer,

	// Integer by value.
	unix.TCSBRK:      wire.ArgInt,
	unix.TCXONC:      wire.ArgInt,
	unix.TCFLSH:      wire.ArgInt,
	unix.TCSBRKP:     wire.ArgInt,
	unix.TIOCSCTTY:   wire.ArgInt,
	unix.TIOCSIG:     wire.ArgInt,
	unix.TIOCGPTPEER: wire.ArgInt,

	// No argument.
	unix.TIOCEXCL:    wire.ArgNone,
	unix.TIOCNXCL:    wire.ArgNone,
	unix.TIOCNOTTY:   wire.ArgNone,
	unix.TIOCSBRK:    wire.ArgNone,
	unix.TIOCCBRK:    wire.ArgNone,
	unix.TIOCCONS:    wire.ArgNone,
	unix.TIOCVHANGUP: wire.ArgNone,

	// Pointer to int.
	unix.TIOCGPGRP:    wire.ArgIntPointer,
	unix.TIOCSPGRP:    wire.ArgIntPointer,
	unix.TIOCOUTQ:     wire.ArgIntPointer,
	unix.TIOCINQ:      wire.ArgIntPointer,
	unix.TIOCMGET:     wire.ArgIntPointer,
	unix.TIOCMBIS:     wire.ArgIntPointer,
	unix.TIOCMBIC:     wire.ArgIntPointer,
	unix.TIOCMSET:     wire.ArgIntPointer,
	unix.TIOCGSOFTCAR: wire.ArgIntPointer,
	unix.TIOCSSOFTCAR: wire.ArgIntPointer,
	unix.TIOCPKT:      wire.ArgIntPointer,
	unix.TIOCGPKT:     wire.ArgIntPointer,
	unix.TIOCSETD:     wire.ArgIntPointer,
	unix.TIOCGETD:     wire.ArgIntPointer,
	unix.TIOCGSID:     wire.ArgIntPointer,
	unix.TIOCGEXCL:    wire.ArgIntPointer,
	unix.TIOCGDEV:     wire.ArgIntPointer,
	unix.TIOCSPTLCK:   wire.ArgIntPointer,
	unix.TIOCGPTLCK:   wire.ArgIntPointer,
	unix.TIOCGPTN:     wire.ArgIntPointer,

	// Pointer to a single byte.
	unix.TIOCSTI: wire.ArgCharPointer,
}

// Lookup returns the argument shape of request, or
// [wire.ArgUnsupported] for codes upty does not forward.
func Lookup(request uint) wire.ArgType {
	if argType, ok := table[request]; ok {
		return argType
	}
	return wire.ArgUnsupported
}

// Requests returns every classified request code, in no particular
// order.
func Requests() []uint {
	requests := make([]uint, 0, len(table))
	for request := range table {
		requests = append(requests, request)
	}
	return requests
}
