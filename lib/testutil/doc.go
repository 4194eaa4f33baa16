// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds test helpers shared by upty packages.
//
// [SocketDir] returns a short directory under /tmp for rendezvous and
// admin sockets, which must fit the 108-byte sun_path limit.
// [RequireReceive] and [RequireClosed] bound waits on channels fed by
// stub managers and server goroutines.
//
// Helpers fail the test with t.Fatalf rather than returning errors.
package testutil
