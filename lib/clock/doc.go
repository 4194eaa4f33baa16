// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used for the
// session manager's timestamps.
//
// Production code takes a [Clock] instead of calling time.Now; tests
// inject [Fake] to get timestamps they can assert on exactly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	m := manager.New(manager.Config{Clock: c})
//	c.Advance(time.Minute)
package clock
