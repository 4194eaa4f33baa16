// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !ppc64 && !ppc64le

package wire

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// termiosSize is sizeof(struct termios) as TCGETS copies it. unix.Termios
// follows struct termios2, which appends the two speed fields; the
// kernel's struct termios ends before them.
const termiosSize = int(unsafe.Offsetof(unix.Termios{}.Ispeed))
