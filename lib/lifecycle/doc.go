// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle keeps virtual PTY identities attached to the right
// descriptors as they are duplicated and closed, and answers the
// terminal predicates (isatty, ptsname, ttyname, grantpt, unlockpt,
// tcgetpgrp) for virtual descriptors without contacting the session
// manager.
//
// It also routes opens of /dev/ptmx and /dev/pts/N to master
// allocation and slave attachment, so programs that open the devices
// by path get virtual endpoints too.
//
// Every operation on a descriptor without an identity is forwarded to
// the [facility.Facility] unchanged.
package lifecycle
