// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package facilitytest provides a recording [facility.Facility] for
// tests that must prove a call was, or was not, passed through.
package facilitytest

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/facility"
)

// Call records one invocation on a [Fake].
type Call struct {
	Operation string
	FD        int
	Target    int
	Request   uint
	Path      string
}

func (c Call) String() string {
	return fmt.Sprintf("%s(fd=%d target=%d request=%#x path=%q)", c.Operation, c.FD, c.Target, c.Request, c.Path)
}

// Fake is an in-memory facility. Descriptors it hands out start at
// NextFD and count upward; Dup2 and Dup3 return their target. Every
// call is recorded, and Err, when set, is returned from every
// fallible operation.
type Fake struct {
	// IoctlResult is returned from Ioctl when Err is nil.
	IoctlResult int

	// Terminal is what IsTerminal reports.
	Terminal bool

	// Err, when non-nil, fails every fallible operation.
	Err error

	mutex  sync.Mutex
	nextFD int
	calls  []Call
}

// New returns a Fake handing out descriptors from firstFD.
func New(firstFD int) *Fake {
	return &Fake{nextFD: firstFD}
}

// Calls returns every call recorded so far.
func (f *Fake) Calls() []Call {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many times operation was called.
func (f *Fake) Count(operation string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	count := 0
	for _, call := range f.calls {
		if call.Operation == operation {
			count++
		}
	}
	return count
}

func (f *Fake) record(call Call) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls = append(f.calls, call)
	return f.Err
}

func (f *Fake) allocate() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	fd := f.nextFD
	f.nextFD++
	return fd
}

func (f *Fake) Ioctl(fd int, request uint, argument facility.Argument) (int, error) {
	if err := f.record(Call{Operation: "ioctl", FD: fd, Request: request}); err != nil {
		return -1, err
	}
	return f.IoctlResult, nil
}

func (f *Fake) Open(path string, flags int, mode uint32) (int, error) {
	if err := f.record(Call{Operation: "open", Path: path}); err != nil {
		return -1, err
	}
	return f.allocate(), nil
}

func (f *Fake) Dup(fd int) (int, error) {
	if err := f.record(Call{Operation: "dup", FD: fd}); err != nil {
		return -1, err
	}
	return f.allocate(), nil
}

func (f *Fake) Dup2(fd, target int) (int, error) {
	if err := f.record(Call{Operation: "dup2", FD: fd, Target: target}); err != nil {
		return -1, err
	}
	return target, nil
}

func (f *Fake) Dup3(fd, target, flags int) (int, error) {
	if err := f.record(Call{Operation: "dup3", FD: fd, Target: target}); err != nil {
		return -1, err
	}
	if fd == target {
		return -1, unix.EINVAL
	}
	return target, nil
}

func (f *Fake) Close(fd int) error {
	return f.record(Call{Operation: "close", FD: fd})
}

func (f *Fake) IsTerminal(fd int) bool {
	f.record(Call{Operation: "isatty", FD: fd})
	return f.Terminal
}

func (f *Fake) Ptsname(fd int) (string, error) {
	if err := f.record(Call{Operation: "ptsname", FD: fd}); err != nil {
		return "", err
	}
	return fmt.Sprintf("/dev/pts/%d", fd), nil
}

func (f *Fake) Ttyname(fd int) (string, error) {
	if err := f.record(Call{Operation: "ttyname", FD: fd}); err != nil {
		return "", err
	}
	return fmt.Sprintf("/dev/pts/%d", fd), nil
}

func (f *Fake) Grantpt(fd int) error {
	return f.record(Call{Operation: "grantpt", FD: fd})
}

func (f *Fake) Unlockpt(fd int) error {
	return f.record(Call{Operation: "unlockpt", FD: fd})
}

func (f *Fake) Tcgetpgrp(fd int) (int, error) {
	if err := f.record(Call{Operation: "tcgetpgrp", FD: fd}); err != nil {
		return -1, err
	}
	return 4242, nil
}

var _ facility.Facility = (*Fake)(nil)
