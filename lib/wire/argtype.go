// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ArgType classifies the third argument of a terminal-control request:
// whether it carries a value, and if it is a pointer, the size of the
// object it points at.
type ArgType byte

const (
	// ArgNone: the argument is ignored. No payload.
	ArgNone ArgType = iota

	// ArgInt: the argument is an int passed by value. 4-byte payload,
	// no image in the response.
	ArgInt

	// ArgIntPointer: the argument points at an int.
	ArgIntPointer

	// ArgCharPointer: the argument points at a single char.
	ArgCharPointer

	// ArgWinsizePointer: the argument points at a struct winsize.
	ArgWinsizePointer

	// ArgTermioPointer: the argument points at a legacy struct termio.
	ArgTermioPointer

	// ArgTermiosPointer: the argument points at the kernel's struct
	// termios.
	ArgTermiosPointer

	// ArgUnsupported: the request is not marshaled at all.
	ArgUnsupported
)

// Payload sizes of the struct-shaped arguments. The layouts belong to
// the host ABI; only the sizes matter to the protocol.
const (
	intSize     = 4
	charSize    = 1
	winsizeSize = int(unsafe.Sizeof(unix.Winsize{}))

	// termioSize is sizeof(struct termio): four unsigned shorts, c_line,
	// and NCC (8) control characters, padded to short alignment.
	// x/sys/unix has no Termio type.
	termioSize = 4*2 + 1 + 8 + 1
)

// MaxPayloadLength is the largest payload the 1-byte length field can
// describe.
const MaxPayloadLength = 255

// String returns the tag name used in logs.
func (t ArgType) String() string {
	switch t {
	case ArgNone:
		return "none"
	case ArgInt:
		return "int"
	case ArgIntPointer:
		return "int*"
	case ArgCharPointer:
		return "char*"
	case ArgWinsizePointer:
		return "winsize*"
	case ArgTermioPointer:
		return "termio*"
	case ArgTermiosPointer:
		return "termios*"
	case ArgUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("argtype(%d)", byte(t))
	}
}

// Valid reports whether t may appear in a request frame. ArgUnsupported
// never goes on the wire.
func (t ArgType) Valid() bool {
	return t <= ArgTermiosPointer
}

// IsPointer reports whether the argument is a pointer whose target is
// sent in the request and read back from the response.
func (t ArgType) IsPointer() bool {
	switch t {
	case ArgIntPointer, ArgCharPointer, ArgWinsizePointer, ArgTermioPointer, ArgTermiosPointer:
		return true
	default:
		return false
	}
}

// PayloadSize is the exact request payload size for t, which is also
// the response image size for pointer shapes.
func (t ArgType) PayloadSize() int {
	switch t {
	case ArgInt, ArgIntPointer:
		return intSize
	case ArgCharPointer:
		return charSize
	case ArgWinsizePointer:
		return winsizeSize
	case ArgTermioPointer:
		return termioSize
	case ArgTermiosPointer:
		return termiosSize
	default:
		return 0
	}
}

// ResponseImageSize is the number of payload bytes preceding the
// return code in a response to a request tagged t.
func (t ArgType) ResponseImageSize() int {
	if t.IsPointer() {
		return t.PayloadSize()
	}
	return 0
}

// EncodeInt returns the payload of an [ArgInt] request carrying value.
func EncodeInt(value int32) []byte {
	return byteOrder.AppendUint32(make([]byte, 0, intSize), uint32(value))
}

// DecodeInt returns the value carried by an [ArgInt] payload. payload
// must be at least four bytes long.
func DecodeInt(payload []byte) int32 {
	return int32(byteOrder.Uint32(payload))
}
