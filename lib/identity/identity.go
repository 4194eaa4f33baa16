// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import "fmt"

// Half is the side of a virtual PTY pair a descriptor represents.
type Half uint8

const (
	// Master is the controlling half, allocated first. The session
	// manager calls connections carrying it "back" connections.
	Master Half = 0

	// Slave is the companion half, allocated against an existing
	// master's instance number ("front" connections).
	Slave Half = 1
)

// String returns "master" or "slave".
func (h Half) String() string {
	switch h {
	case Master:
		return "master"
	case Slave:
		return "slave"
	default:
		return fmt.Sprintf("half(%d)", uint8(h))
	}
}

// None is the encoded form of "no identity".
const None = -1

// Identity is the virtual PTY identity of a descriptor. InstanceNumber
// is opaque: it is allocated by the session manager and the client
// never checks it for uniqueness.
type Identity struct {
	InstanceNumber uint32
	Half           Half
}

// String formats the identity as "(7, master)".
func (id Identity) String() string {
	return fmt.Sprintf("(%d, %s)", id.InstanceNumber, id.Half)
}

// Companion returns the slave identity paired with id's instance.
func (id Identity) Companion() Identity {
	return Identity{InstanceNumber: id.InstanceNumber, Half: Slave}
}

// Encode packs the identity into instance*2 + (half == Slave). The
// result is always non-negative, leaving negative values free for
// [None].
func (id Identity) Encode() int64 {
	encoded := int64(id.InstanceNumber) * 2
	if id.Half == Slave {
		encoded++
	}
	return encoded
}

// Decode reverses [Identity.Encode]. Negative values (including [None])
// report ok=false. Values whose instance number does not fit in 32 bits
// are rejected with an error, since no session manager can have
// assigned them.
func Decode(encoded int64) (id Identity, ok bool, err error) {
	if encoded < 0 {
		return Identity{}, false, nil
	}
	instance := encoded / 2
	if instance > int64(^uint32(0)) {
		return Identity{}, false, fmt.Errorf("encoded identity %d: instance number %d exceeds 32 bits", encoded, instance)
	}
	id = Identity{InstanceNumber: uint32(instance), Half: Master}
	if encoded%2 == 1 {
		id.Half = Slave
	}
	return id, true, nil
}
