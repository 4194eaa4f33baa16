// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dial opens channels to the upty session manager.
//
// All channels go to one rendezvous socket ([ResolveEndpoint]) and are
// told apart by the handshake role. Three kinds exist:
//
//   - Master channels ([Dialer.OpenMaster]) replace a PTY master. The
//     manager allocates an instance and replies with its number. A
//     process that cannot allocate a master has no way to continue, so
//     a failure here is handed to the fatal handler (by default
//     [process.Fatal]).
//   - Slave channels ([Dialer.OpenSlave]) replace a PTY slave and name
//     the master instance they pair with. Failure is returned to the
//     caller.
//   - Control channels ([Dialer.Control]) carry one ioctl request and
//     its response, then close.
//
// Master and slave channels are raw socket descriptors rather than
// net.Conn values: they are handed to code that expects an OS file
// descriptor, may be duplicated or inherited across exec, and must not
// be closed by a Go finalizer. Each successful dial registers the new
// descriptor's identity in the [identity.Store].
//
// A channel moves from unconnected to connected once its handshake
// completes and to closed when its descriptor is closed. Channels are
// never reconnected.
package dial
