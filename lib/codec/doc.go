// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used on the session
// manager's admin socket.
//
// The PTY protocol itself is a fixed binary layout (see lib/wire) and
// does not use this package. Admin requests and responses are small
// self-describing messages where CBOR gives forward compatibility
// without a schema.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
// Types only ever serialized as CBOR use `cbor` tags. Types that are
// also printed by the CLI with --json use `json` tags; fxamacker/cbor
// reads `json` tags when `cbor` tags are absent. Never use both on one
// field.
package codec
