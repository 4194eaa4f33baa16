// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build ppc64 || ppc64le

package wire

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// termiosSize is sizeof(struct termios). On powerpc the kernel's struct
// termios carries the speed fields, matching unix.Termios.
const termiosSize = int(unsafe.Sizeof(unix.Termios{}))
