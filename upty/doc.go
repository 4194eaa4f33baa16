// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package upty is the entry point to user-space PTY virtualization.
//
// A [Client] ties together the identity store, the dialer, the ioctl
// dispatcher and the descriptor lifecycle propagator, all sharing one
// store and one rendezvous endpoint. A native interposition shim
// creates one Client per process (usually with [NewFromEnvironment])
// and routes each intercepted call to the method of the same name,
// converting a returned error into errno with [Errno]:
//
//	client, err := upty.NewFromEnvironment(facility)
//	...
//	fd, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
//	if err != nil {
//		errno = upty.Errno(err)
//		return -1
//	}
//
// Go programs may use a Client directly to drive virtual terminals
// without any interposition; see cmd/upty.
package upty
