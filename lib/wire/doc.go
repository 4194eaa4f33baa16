// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the byte-level protocol spoken between a
// virtual PTY client and the session manager.
//
// Every connection to the rendezvous socket begins with a handshake: the
// 4-byte version tag "upty" followed by a 1-byte [Role]. The role
// decides what follows:
//
//   - [RoleBack]: nothing further. The manager allocates a new instance
//     and replies with its 4-byte instance number; the connection then
//     carries the master side's terminal bytes.
//   - [RoleFront]: a 4-byte instance number naming an existing master.
//     No reply; the connection then carries the slave side's bytes.
//   - [RoleIoctlRequest]: the remainder of an [IoctlRequest] frame. The
//     manager answers with an [IoctlResponse] and the connection closes.
//
// The ioctl request frame is, in order:
//
//	version(4) role(1) instance(4) half(1) request(N) tag(1) length(1) payload(length)
//
// where N is the width of the host's unsigned long ([RequestCodeSize]).
// The response is the pointer image (pointer-shaped tags only, same size
// as the request payload) followed by a 4-byte signed return code and a
// 4-byte signed error code.
//
// Both ends run on the same host, so all integers use the host's native
// byte order, and struct payloads (winsize, termio, termios) are raw
// byte images whose layout the protocol does not interpret.
//
// Any short read or write is reported as a [*ProtocolError] matching
// [ErrProtocolViolation]. A truncated value is never returned.
package wire
