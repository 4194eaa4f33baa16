// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package facility defines the forwarding layer: the underlying
// implementations of every terminal operation upty intercepts.
//
// When a descriptor has no virtual PTY identity, upty hands the call to
// a [Facility] unchanged. A native interposition shim supplies one
// whose methods call the symbols it resolved with dlsym(RTLD_NEXT, ...);
// [System] calls the kernel directly through golang.org/x/sys/unix and
// serves Go hosts and tests.
//
// Errors follow the syscall convention: a failing call returns an
// error that is (or wraps) a [unix.Errno], which is what a shim stores
// in errno.
package facility

import "unsafe"

// Facility is the set of underlying terminal operations.
type Facility interface {
	// Ioctl performs the request on fd with the untouched argument.
	Ioctl(fd int, request uint, argument Argument) (int, error)

	// Open opens path with open(2) semantics.
	Open(path string, flags int, mode uint32) (int, error)

	// Dup, Dup2 and Dup3 duplicate fd with the dup family's semantics.
	Dup(fd int) (int, error)
	Dup2(fd, target int) (int, error)
	Dup3(fd, target, flags int) (int, error)

	// Close closes fd.
	Close(fd int) error

	// IsTerminal reports whether fd refers to a terminal.
	IsTerminal(fd int) bool

	// Ptsname returns the slave device path for a PTY master.
	Ptsname(fd int) (string, error)

	// Ttyname returns the device path of the terminal open on fd.
	Ttyname(fd int) (string, error)

	// Grantpt and Unlockpt prepare a PTY master's slave for opening.
	Grantpt(fd int) error
	Unlockpt(fd int) error

	// Tcgetpgrp returns the foreground process group of the terminal.
	Tcgetpgrp(fd int) (int, error)
}

// Argument is the untyped third argument of an ioctl. Requests whose
// argument is an integer use Value; requests whose argument points at
// memory use Pointer. Exactly one is meaningful for a given request,
// and which one is decided by the request code, not by the caller.
type Argument struct {
	Value   uintptr
	Pointer unsafe.Pointer
}

// ValueArgument wraps an integer argument.
func ValueArgument(value uintptr) Argument {
	return Argument{Value: value}
}

// PointerArgument wraps a pointer argument.
func PointerArgument(pointer unsafe.Pointer) Argument {
	return Argument{Pointer: pointer}
}

// Bytes returns a view of the size bytes the argument points at, or
// nil when the pointer is nil. The view aliases the caller's memory:
// writes through it are visible to the caller.
func (a Argument) Bytes(size int) []byte {
	if a.Pointer == nil || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(a.Pointer), size)
}

// Int returns the argument as a C int.
func (a Argument) Int() int32 {
	return int32(a.Value)
}
