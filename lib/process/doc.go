// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers shared by the upty
// binaries and by the client library when it runs inside a host
// program:
//
//   - [Fatal] reports an unrecoverable error on stderr and exits. It is
//     the default handler for a failed virtual master allocation, the
//     one failure the client cannot report through a return value.
//   - [NewLogger] builds the structured logger every binary uses.
package process
