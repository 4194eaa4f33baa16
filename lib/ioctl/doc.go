// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ioctl intercepts terminal-control requests on descriptors
// that carry a virtual PTY identity.
//
// A [Dispatcher] classifies every request code against a static table
// ([Lookup]) and then takes one of five paths:
//
//   - descriptors without an identity go to the [facility.Facility]
//     untouched;
//   - unclassified codes succeed with 0 and open no channel;
//   - TIOCGPTPEER on a master opens a companion slave through the dialer;
//   - TIOCGPTN is answered from the stored identity;
//   - everything else is framed onto an ephemeral control channel and
//     the manager's answer is returned, with pointer images copied back
//     into the caller's memory.
//
// Failures are Go errors. [Errno] maps any of them onto the errno a
// native shim stores before returning -1.
package ioctl
