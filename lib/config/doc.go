// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for upty clients and
// the reference session manager.
//
// Configuration is assembled in three layers, each overriding the last:
//
//   - [Default] values;
//   - an optional YAML file named by the UPTY_CONFIG environment
//     variable (via [Load]) or passed explicitly (via [LoadFile]).
//     Files named *.json or *.jsonc are read as JSON with comments;
//   - UPTY_* environment variables, decoded with envconfig
//     (UPTY_SOCKET, UPTY_DIAL_TIMEOUT, UPTY_IDENTITY_STORE, UPTY_DEBUG,
//     UPTY_MANAGER_ADMIN_SOCKET, UPTY_MANAGER_METRICS_LISTEN,
//     UPTY_MANAGER_SHELL).
//
// An unset UPTY_CONFIG is not an error for [Load]: upty runs inside
// arbitrary programs, most of which never set it. A file that is named
// but unreadable is.
//
// Path fields are expanded after loading: ${HOME} and ${VAR:-default}
// patterns are replaced.
//
// This package depends on no other upty packages.
package config
