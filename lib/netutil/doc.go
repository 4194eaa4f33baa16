// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides byte-stream plumbing shared by the session
// manager and the CLI.
//
// [Bridge] copies bytes in both directions between two streams until
// either side ends, which is how the manager joins a client's master or
// slave connection to a host PTY and how `upty attach` joins a terminal
// to a virtual slave. [IsExpectedCloseError] classifies the errors that
// occur during normal teardown of such a bridge.
package netutil
