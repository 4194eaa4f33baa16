// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manager is a reference session manager for upty clients,
// backed by host pseudo-terminals.
//
// A [Manager] listens on the rendezvous socket and serves the three
// connection roles of the upty protocol:
//
//   - Back: allocates a host PTY pair with creack/pty, answers with the
//     pair's devpts index as the instance number, and relays bytes
//     between the connection and the PTY master for as long as the
//     client keeps the connection open.
//   - Front: opens the slave device of the named instance and relays
//     bytes between it and the connection. Unknown instances are
//     closed without an answer.
//   - IoctlRequest: performs the request with a real ioctl on the
//     instance's master or slave and answers with the resulting image,
//     return value and errno. Requests that would change the manager's
//     own controlling terminal or process group are acknowledged
//     without effect.
//
// An optional admin socket serves CBOR queries ("status",
// "list-instances"), one request per connection, and [Metrics] exports
// Prometheus instrumentation for every role.
package manager
