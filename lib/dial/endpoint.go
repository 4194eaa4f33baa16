// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dial

import (
	"os"
	"path/filepath"
	"strconv"
)

// SocketName is the rendezvous socket's file name.
const SocketName = "upty.sock"

// ResolveEndpoint returns the rendezvous socket path: override when
// non-empty, else ~/.upty/upty.sock, else /tmp/upty-<uid>/upty.sock
// when no home directory can be determined.
func ResolveEndpoint(override string) string {
	if override != "" {
		return override
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".upty", SocketName)
	}
	return filepath.Join("/tmp", "upty-"+strconv.Itoa(os.Getuid()), SocketName)
}
