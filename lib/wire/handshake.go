// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"fmt"
	"io"
)

// Version is the 4-byte tag opening every connection.
var Version = [4]byte{'u', 'p', 't', 'y'}

// Role is the handshake byte selecting what a connection is for.
type Role byte

const (
	// RoleBack allocates a new instance and becomes its master side.
	RoleBack Role = 0x01

	// RoleFront attaches to an existing instance as its slave side.
	RoleFront Role = 0x02

	// RoleIoctlRequest carries exactly one terminal-control request.
	RoleIoctlRequest Role = 0x03
)

// String returns the role name used in logs.
func (r Role) String() string {
	switch r {
	case RoleBack:
		return "back"
	case RoleFront:
		return "front"
	case RoleIoctlRequest:
		return "ioctl"
	default:
		return fmt.Sprintf("role(0x%02x)", byte(r))
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r == RoleBack || r == RoleFront || r == RoleIoctlRequest
}

// handshakeLength is version(4) + role(1).
const handshakeLength = 5

// InstanceNumberLength is the size of an instance number on the wire.
const InstanceNumberLength = 4

func appendHandshake(frame []byte, role Role) []byte {
	frame = append(frame, Version[:]...)
	return append(frame, byte(role))
}

// WriteHandshake writes the version tag and role. It is the entire
// request for [RoleBack].
func WriteHandshake(w io.Writer, role Role) error {
	return writeField(w, "handshake", appendHandshake(make([]byte, 0, handshakeLength), role))
}

// WriteFrontHandshake writes the handshake for [RoleFront] followed by
// the instance number of the master being attached to, in one write.
func WriteFrontHandshake(w io.Writer, instanceNumber uint32) error {
	frame := appendHandshake(make([]byte, 0, handshakeLength+InstanceNumberLength), RoleFront)
	frame = byteOrder.AppendUint32(frame, instanceNumber)
	return writeField(w, "front handshake", frame)
}

// ReadHandshake reads and validates the version tag and role. Used by
// the session manager.
func ReadHandshake(r io.Reader) (Role, error) {
	var header [handshakeLength]byte
	if err := readField(r, "handshake", header[:]); err != nil {
		return 0, err
	}
	if !bytes.Equal(header[:4], Version[:]) {
		return 0, invalidField("version", "got %q, want %q", header[:4], Version[:])
	}
	role := Role(header[4])
	if !role.Valid() {
		return 0, invalidField("role", "unknown role 0x%02x", header[4])
	}
	return role, nil
}

// WriteInstanceNumber writes a 4-byte instance number: the manager's
// reply to [RoleBack].
func WriteInstanceNumber(w io.Writer, instanceNumber uint32) error {
	return writeField(w, "instance number", byteOrder.AppendUint32(nil, instanceNumber))
}

// ReadInstanceNumber reads a 4-byte instance number.
func ReadInstanceNumber(r io.Reader) (uint32, error) {
	var buffer [InstanceNumberLength]byte
	if err := readField(r, "instance number", buffer[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buffer[:]), nil
}
