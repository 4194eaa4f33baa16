// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity records which virtual PTY endpoint an OS file
// descriptor stands for.
//
// An [Identity] pairs the instance number assigned by the session
// manager with the half of the pair (master or slave) the descriptor
// represents. Identities are assigned once, when the descriptor is
// dialed, and never change afterwards. [Identity.Encode] packs an
// identity into a single non-negative integer (instance*2 + slave bit)
// for storage in places that only hold integers; [None] is the negative
// sentinel meaning "no identity".
//
// A [Store] maps descriptor numbers to identities. The OS reuses
// descriptor numbers, so every close must clear the entry or a later
// descriptor with the same number is silently routed to the session
// manager. There is no generation counter: the last Set for a
// descriptor wins.
//
// Two stores are provided:
//
//   - [MemoryStore] keeps the mapping in a mutex-guarded map. It is the
//     injectable store for tests and for hosts that never exec.
//   - [EnvironmentStore] keeps the mapping in the process environment
//     (one variable per descriptor) so the mapping survives exec along
//     with the inherited descriptors.
package identity
